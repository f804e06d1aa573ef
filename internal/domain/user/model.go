// Package user defines the account model and the rank ladder derived from
// experience points.
package user

import "time"

// StartingCoins is the balance granted to every account at signup.
const StartingCoins = 100

// User represents a registered member of the marketplace. Accounts are never
// deleted; coins and experience only change through request settlement.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Coins        int64     `json:"coins" db:"coins"`
	XP           int64     `json:"xp" db:"xp"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Rank labels, lowest band first.
const (
	RankNewbie         = "Newbie"
	RankHelperRecruit  = "Helper Recruit"
	RankActivePeer     = "Active Peer"
	RankCommunityElder = "Community Elder"
	RankKarmicMaster   = "Karmic Master"
)

// Rank maps an experience total to its display label. Ranks are recomputed on
// demand and never stored.
func Rank(xp int64) string {
	switch {
	case xp >= 500:
		return RankKarmicMaster
	case xp >= 200:
		return RankCommunityElder
	case xp >= 50:
		return RankActivePeer
	case xp >= 10:
		return RankHelperRecruit
	default:
		return RankNewbie
	}
}
