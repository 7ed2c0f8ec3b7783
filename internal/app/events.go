package app

import (
	"encoding/json"

	"pulse/api/internal/store"
)

// Wire event types. Messages in both directions carry a "type" field; the
// remaining fields are snake_case.
const (
	// client -> server
	msgJoin        = "join"
	msgNewFeedback = "new_feedback"
	msgNewComment  = "new_comment"
	msgVote        = "vote"

	// server -> client
	eventWelcome       = "welcome"
	eventJoined        = "joined"
	eventError         = "error"
	eventFeedbackAdded = "feedback_added"
	eventCommentAdded  = "comment_added"
	eventVoteUpdated   = "vote_updated"
	eventSessionClosed = "session_closed"
)

type wsMessage struct {
	Type       string `json:"type"`
	Code       string `json:"code"`
	Text       string `json:"text"`
	FeedbackID string `json:"feedback_id"`
	ItemID     string `json:"item_id"`
	IsComment  bool   `json:"is_comment"`
}

func welcomeEvent(clientID string) []byte {
	return marshalEvent(struct {
		Type     string `json:"type"`
		ClientID string `json:"client_id"`
	}{eventWelcome, clientID})
}

func joinedEvent(snap store.SessionSnapshot) []byte {
	return marshalEvent(struct {
		Type      string               `json:"type"`
		Code      string               `json:"code"`
		Feedbacks []store.FeedbackItem `json:"feedbacks"`
	}{eventJoined, snap.Code, snap.Feedbacks})
}

func errorEvent(message string) []byte {
	return marshalEvent(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{eventError, message})
}

func feedbackAddedEvent(item store.FeedbackItem) []byte {
	return marshalEvent(struct {
		Type string `json:"type"`
		store.FeedbackItem
	}{eventFeedbackAdded, item})
}

func commentAddedEvent(feedbackID string, c store.Comment) []byte {
	return marshalEvent(struct {
		Type       string        `json:"type"`
		FeedbackID string        `json:"feedback_id"`
		Comment    store.Comment `json:"comment"`
	}{eventCommentAdded, feedbackID, c})
}

func voteUpdatedEvent(itemID string, votes int, isComment bool, feedbackID string) []byte {
	return marshalEvent(struct {
		Type       string `json:"type"`
		ItemID     string `json:"item_id"`
		Votes      int    `json:"votes"`
		IsComment  bool   `json:"is_comment"`
		FeedbackID string `json:"feedback_id,omitempty"`
	}{eventVoteUpdated, itemID, votes, isComment, feedbackID})
}

func sessionClosedEvent(code string) []byte {
	return marshalEvent(struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}{eventSessionClosed, code})
}

func marshalEvent(payload any) []byte {
	data, _ := json.Marshal(payload)
	return data
}
