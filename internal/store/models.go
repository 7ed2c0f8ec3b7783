// Package store holds all live session state: the session registry, each
// session's feedback tree, and the vote ledger. Everything lives in process
// memory and dies with the process.
package store

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrEmptyText        = errors.New("empty text")
)

// Comment is a read-only copy of one comment. Votes is derived from the vote
// ledger at snapshot time; it is never stored on the comment itself.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackItem is a read-only copy of one feedback item with its comments in
// insertion order.
type FeedbackItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Votes     int       `json:"votes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSnapshot is a consistent copy of a whole session, taken under the
// session lock. Feedbacks preserve insertion order.
type SessionSnapshot struct {
	Code      string         `json:"code"`
	CreatedAt time.Time      `json:"created_at"`
	Feedbacks []FeedbackItem `json:"feedbacks"`
}
