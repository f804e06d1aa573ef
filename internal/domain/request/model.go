// Package request defines the favor request model, its lifecycle states and
// the difficulty to reward mapping.
package request

import "time"

// Status tracks a request through its lifecycle. Transitions only move
// forward; there is no cancellation or dispute path.
type Status string

const (
	StatusLive              Status = "Live"
	StatusAccepted          Status = "Accepted"
	StatusConfirmedByHelper Status = "Confirmed_By_Helper"
	StatusCompleted         Status = "Completed"
)

// DefaultDifficulty is assumed when a request form omits the difficulty.
const DefaultDifficulty = "Medium"

// xpMapping fixes the experience value per difficulty label. The coin reward
// always equals the XP value.
var xpMapping = map[string]int64{
	"Easy":   10,
	"Medium": 25,
	"Hard":   50,
}

// Request represents a favor posted by a requester. Reward and XPValue are
// frozen at creation from the difficulty label and never change afterwards,
// even if the mapping does.
type Request struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Difficulty  string    `json:"difficulty" db:"difficulty"`
	Reward      int64     `json:"reward" db:"reward"`
	XPValue     int64     `json:"xp_value" db:"xp_value"`
	RequesterID string    `json:"requester_id" db:"requester_id"`
	HelperID    string    `json:"helper_id" db:"helper_id"`
	Status      Status    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// XPValue returns the experience value for a difficulty label. Unknown labels
// yield a fixed fallback of 10, independent of the mapping.
func XPValue(difficulty string) int64 {
	if xp, ok := xpMapping[difficulty]; ok {
		return xp
	}
	return 10
}

// Difficulties lists the recognized labels in ascending reward order, for
// rendering the create form.
func Difficulties() []string {
	return []string{"Easy", "Medium", "Hard"}
}
