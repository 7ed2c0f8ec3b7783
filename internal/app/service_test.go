package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"pulse/api/internal/config"
	"pulse/api/internal/export"
	"pulse/api/internal/room"
	"pulse/api/internal/store"
)

type roomEvent struct {
	code    string
	payload []byte
}

type fakeRooms struct {
	mu         sync.Mutex
	joins      []roomEvent
	broadcasts []roomEvent
	closes     []roomEvent
	leaves     int
}

func (f *fakeRooms) Join(code string, c *room.Client, welcome []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, roomEvent{code: code, payload: welcome})
}

func (f *fakeRooms) Leave(c *room.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
}

func (f *fakeRooms) Broadcast(code string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, roomEvent{code: code, payload: payload})
}

func (f *fakeRooms) CloseRoom(code string, farewell []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, roomEvent{code: code, payload: farewell})
}

func (f *fakeRooms) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func (f *fakeRooms) lastBroadcast(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.broadcasts) == 0 {
		t.Fatal("no broadcasts recorded")
	}
	return decodeEvent(t, f.broadcasts[len(f.broadcasts)-1].payload)
}

func decodeEvent(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var event map[string]any
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("event is not valid JSON: %v\n%s", err, payload)
	}
	return event
}

func newTestService(t *testing.T) (*Service, *fakeRooms) {
	t.Helper()
	cfg := config.Config{BaseURL: "http://192.168.1.10:5000", SessionCodeLength: 8}
	rooms := &fakeRooms{}
	svc := New(cfg, store.New(cfg.SessionCodeLength), rooms, export.NewService())
	return svc, rooms
}

func newTestParticipant() *room.Client {
	return room.NewClient(room.NewHub(), nil, nil, nil)
}

func TestCreateSessionPayload(t *testing.T) {
	svc, _ := newTestService(t)

	payload := svc.CreateSession()

	code, _ := payload["code"].(string)
	if len(code) != 8 {
		t.Fatalf("code = %q, want 8 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q contains non-digit %q", code, r)
		}
	}
	if join, _ := payload["join_url"].(string); join != "http://192.168.1.10:5000/join/"+code {
		t.Errorf("join_url = %q", join)
	}
	if host, _ := payload["host_url"].(string); host != "http://192.168.1.10:5000/host/"+code {
		t.Errorf("host_url = %q", host)
	}
	if qrCode, _ := payload["qr_code"].(string); !strings.HasPrefix(qrCode, "data:image/png;base64,") {
		t.Errorf("qr_code is not an inline PNG")
	}
}

func TestJoinDeliversSnapshot(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)
	svc.AddFeedback(newTestParticipant(), code, "more breaks")

	svc.Join(newTestParticipant(), code)

	if len(rooms.joins) != 1 {
		t.Fatalf("joins = %d, want 1", len(rooms.joins))
	}
	welcome := decodeEvent(t, rooms.joins[0].payload)
	if welcome["type"] != "joined" {
		t.Errorf("welcome type = %v", welcome["type"])
	}
	if welcome["code"] != code {
		t.Errorf("welcome code = %v", welcome["code"])
	}
	feedbacks, _ := welcome["feedbacks"].([]any)
	if len(feedbacks) != 1 {
		t.Fatalf("snapshot feedbacks = %d, want 1", len(feedbacks))
	}
}

func TestJoinUnknownSession(t *testing.T) {
	svc, rooms := newTestService(t)

	svc.Join(newTestParticipant(), "00000000")

	if len(rooms.joins) != 0 {
		t.Errorf("join recorded for unknown session")
	}
}

func TestFeedbackBroadcast(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)

	svc.AddFeedback(newTestParticipant(), code, "  slides were rushed  ")

	event := rooms.lastBroadcast(t)
	if event["type"] != "feedback_added" {
		t.Fatalf("type = %v", event["type"])
	}
	if event["text"] != "slides were rushed" {
		t.Errorf("text = %v, want trimmed", event["text"])
	}
	if event["votes"] != float64(0) {
		t.Errorf("votes = %v, want 0", event["votes"])
	}
	if _, ok := event["id"].(string); !ok {
		t.Errorf("missing id: %v", event)
	}
}

func TestEmptyFeedbackIsSilentlyIgnored(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)

	svc.AddFeedback(newTestParticipant(), code, "   ")

	if rooms.broadcastCount() != 0 {
		t.Errorf("empty feedback was broadcast")
	}
	snap, err := svc.GetSession(code)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(snap.Feedbacks) != 0 {
		t.Errorf("empty feedback was stored")
	}
}

func TestCommentBroadcast(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)
	svc.AddFeedback(newTestParticipant(), code, "needs examples")
	snap, _ := svc.GetSession(code)
	feedbackID := snap.Feedbacks[0].ID

	svc.AddComment(newTestParticipant(), code, feedbackID, "agreed, live coding")

	event := rooms.lastBroadcast(t)
	if event["type"] != "comment_added" {
		t.Fatalf("type = %v", event["type"])
	}
	if event["feedback_id"] != feedbackID {
		t.Errorf("feedback_id = %v", event["feedback_id"])
	}
	comment, _ := event["comment"].(map[string]any)
	if comment["text"] != "agreed, live coding" {
		t.Errorf("comment = %v", event["comment"])
	}
}

func TestVoteBroadcastAndRepeatSuppression(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)
	voter := newTestParticipant()
	svc.AddFeedback(voter, code, "great pacing")
	snap, _ := svc.GetSession(code)
	feedbackID := snap.Feedbacks[0].ID

	svc.CastVote(voter, code, feedbackID, false, "")

	event := rooms.lastBroadcast(t)
	if event["type"] != "vote_updated" {
		t.Fatalf("type = %v", event["type"])
	}
	if event["item_id"] != feedbackID || event["votes"] != float64(1) || event["is_comment"] != false {
		t.Errorf("vote event = %v", event)
	}
	if _, present := event["feedback_id"]; present {
		t.Errorf("feedback_id should be omitted for feedback votes: %v", event)
	}

	before := rooms.broadcastCount()
	svc.CastVote(voter, code, feedbackID, false, "")
	if rooms.broadcastCount() != before {
		t.Errorf("repeat vote was broadcast")
	}

	svc.CastVote(newTestParticipant(), code, feedbackID, false, "")
	event = rooms.lastBroadcast(t)
	if event["votes"] != float64(2) {
		t.Errorf("second voter count = %v, want 2", event["votes"])
	}
}

func TestVoteOnComment(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)
	svc.AddFeedback(newTestParticipant(), code, "too long")
	snap, _ := svc.GetSession(code)
	feedbackID := snap.Feedbacks[0].ID
	svc.AddComment(newTestParticipant(), code, feedbackID, "split into two days")
	snap, _ = svc.GetSession(code)
	commentID := snap.Feedbacks[0].Comments[0].ID

	svc.CastVote(newTestParticipant(), code, commentID, true, feedbackID)

	event := rooms.lastBroadcast(t)
	if event["type"] != "vote_updated" {
		t.Fatalf("type = %v", event["type"])
	}
	if event["item_id"] != commentID || event["is_comment"] != true || event["feedback_id"] != feedbackID {
		t.Errorf("comment vote event = %v", event)
	}
}

func TestCloseSessionEvictsRoom(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)

	svc.CloseSession(code)

	if len(rooms.closes) != 1 || rooms.closes[0].code != code {
		t.Fatalf("closes = %v", rooms.closes)
	}
	farewell := decodeEvent(t, rooms.closes[0].payload)
	if farewell["type"] != "session_closed" || farewell["code"] != code {
		t.Errorf("farewell = %v", farewell)
	}
	if _, err := svc.GetSession(code); err == nil {
		t.Error("session still readable after close")
	}

	// Closing again is harmless.
	svc.CloseSession(code)
}

func TestExportRanksByVotes(t *testing.T) {
	svc, _ := newTestService(t)
	code := svc.CreateSession()["code"].(string)
	author := newTestParticipant()
	svc.AddFeedback(author, code, "first")
	svc.AddFeedback(author, code, "second")
	snap, _ := svc.GetSession(code)
	svc.CastVote(newTestParticipant(), code, snap.Feedbacks[1].ID, false, "")

	result, err := svc.Export(code, export.FormatMarkdown)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	markdown := string(result.Data)
	if !strings.Contains(markdown, "### 1. second") || !strings.Contains(markdown, "### 2. first") {
		t.Errorf("voted item not ranked first:\n%s", markdown)
	}
	if !strings.HasPrefix(result.Filename, "feedback-"+code+"-") {
		t.Errorf("filename = %q", result.Filename)
	}
}

func TestExportUnknownSessionService(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Export("00000000", export.FormatMarkdown); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestExportInvalidFormatIsDomainError(t *testing.T) {
	svc, _ := newTestService(t)
	code := svc.CreateSession()["code"].(string)

	_, err := svc.Export(code, export.Format("docx"))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("err = %v, want DomainError", err)
	}
	if domainErr.Status != http.StatusUnprocessableEntity || domainErr.Code != "VALIDATION_ERROR" {
		t.Errorf("domain error = %+v", domainErr)
	}
}

func lockCount(svc *Service) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.locks)
}

func TestUnknownCodesLeaveNoLockBehind(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Join(newTestParticipant(), "00000000")
	svc.AddFeedback(newTestParticipant(), "00000000", "ghost")
	svc.CastVote(newTestParticipant(), "00000000", "f1", false, "")
	svc.CloseSession("00000000")

	if n := lockCount(svc); n != 0 {
		t.Errorf("locks map holds %d entries after probing unknown codes, want 0", n)
	}

	// Ordinary traffic against a live session releases its lock too.
	code := svc.CreateSession()["code"].(string)
	svc.AddFeedback(newTestParticipant(), code, "real")
	if n := lockCount(svc); n != 0 {
		t.Errorf("locks map holds %d entries after a completed operation, want 0", n)
	}
}

func TestHandleMessageDispatch(t *testing.T) {
	svc, rooms := newTestService(t)
	code := svc.CreateSession()["code"].(string)
	client := newTestParticipant()

	svc.HandleMessage(client, []byte(`{"type":"join","code":"`+code+`"}`))
	if len(rooms.joins) != 1 {
		t.Fatalf("join message not dispatched")
	}

	svc.HandleMessage(client, []byte(`{"type":"new_feedback","code":"`+code+`","text":"good demos"}`))
	event := rooms.lastBroadcast(t)
	if event["type"] != "feedback_added" || event["text"] != "good demos" {
		t.Fatalf("feedback message not dispatched: %v", event)
	}
	feedbackID, _ := event["id"].(string)

	svc.HandleMessage(client, []byte(`{"type":"vote","code":"`+code+`","item_id":"`+feedbackID+`","is_comment":false}`))
	event = rooms.lastBroadcast(t)
	if event["type"] != "vote_updated" {
		t.Fatalf("vote message not dispatched: %v", event)
	}

	before := rooms.broadcastCount()
	svc.HandleMessage(client, []byte(`not json`))
	svc.HandleMessage(client, []byte(`{"type":"shout"}`))
	if rooms.broadcastCount() != before {
		t.Errorf("malformed messages caused broadcasts")
	}
}

func TestConcurrentVotersAllRecorded(t *testing.T) {
	svc, _ := newTestService(t)
	code := svc.CreateSession()["code"].(string)
	svc.AddFeedback(newTestParticipant(), code, "contested")
	snap, _ := svc.GetSession(code)
	feedbackID := snap.Feedbacks[0].ID

	const voters = 32
	var wg sync.WaitGroup
	wg.Add(voters)
	for i := 0; i < voters; i++ {
		go func() {
			defer wg.Done()
			svc.CastVote(newTestParticipant(), code, feedbackID, false, "")
		}()
	}
	wg.Wait()

	snap, _ = svc.GetSession(code)
	if snap.Feedbacks[0].Votes != voters {
		t.Errorf("votes = %d, want %d", snap.Feedbacks[0].Votes, voters)
	}
}
