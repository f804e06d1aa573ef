// Package message defines the per-request chat message model.
package message

import "time"

// Message is a single chat line on a request thread. Messages are append
// only and always read back in ascending creation order.
type Message struct {
	ID        string    `json:"id" db:"id"`
	RequestID string    `json:"request_id" db:"request_id"`
	SenderID  string    `json:"sender_id" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
