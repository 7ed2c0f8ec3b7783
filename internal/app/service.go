package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"pulse/api/internal/config"
	"pulse/api/internal/export"
	"pulse/api/internal/qr"
	"pulse/api/internal/room"
	"pulse/api/internal/store"
)

// Broadcaster fans events out to the clients of a session room. Satisfied
// by room.Hub for single-node deployments and room.Bridge when a redis
// backplane links several nodes.
type Broadcaster interface {
	Join(code string, c *room.Client, welcome []byte)
	Leave(c *room.Client)
	Broadcast(code string, payload []byte)
	CloseRoom(code string, farewell []byte)
}

type sessionStore interface {
	CreateSession() store.SessionSnapshot
	Snapshot(code string) (store.SessionSnapshot, error)
	CloseSession(code string)
	AddFeedback(code, text string) (store.FeedbackItem, error)
	AddComment(code, feedbackID, text string) (store.Comment, error)
	VoteFeedback(code, feedbackID, voterID string) (votes int, changed bool, err error)
	VoteComment(code, feedbackID, commentID, voterID string) (votes int, changed bool, err error)
}

type exporter interface {
	Export(snap store.SessionSnapshot, format export.Format, exportedAt time.Time) (*export.Result, error)
}

type Service struct {
	cfg    config.Config
	store  sessionStore
	rooms  Broadcaster
	export exporter
	now    func() time.Time

	// Per-session locks held across a store mutation and its broadcast, so
	// every room sees events in commit order and a joiner's snapshot has no
	// gap before the first event it receives.
	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock entries are reference counted and removed once the last
// holder releases, so codes that were only ever probed (bad joins, votes
// against closed sessions) do not accumulate in the map.
type sessionLock struct {
	sync.Mutex
	refs int
}

func New(cfg config.Config, sessionStore *store.Store, rooms Broadcaster, exportService *export.Service) *Service {
	return &Service{
		cfg:    cfg,
		store:  sessionStore,
		rooms:  rooms,
		export: exportService,
		now:    time.Now,
		locks:  make(map[string]*sessionLock),
	}
}

func (s *Service) lockSession(code string) *sessionLock {
	s.mu.Lock()
	l, ok := s.locks[code]
	if !ok {
		l = &sessionLock{}
		s.locks[code] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return l
}

func (s *Service) unlockSession(code string, l *sessionLock) {
	l.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, code)
	}
	s.mu.Unlock()
}

// CreateSession opens a fresh session and returns everything a facilitator
// needs to put on the projector: the code, a join URL, that URL as a QR
// code, and the host view URL.
func (s *Service) CreateSession() map[string]any {
	snap := s.store.CreateSession()

	joinURL := fmt.Sprintf("%s/join/%s", s.cfg.BaseURL, snap.Code)
	hostURL := fmt.Sprintf("%s/host/%s", s.cfg.BaseURL, snap.Code)

	qrCode, err := qr.DataURL(joinURL)
	if err != nil {
		// The session is usable without the image.
		log.Printf("qr code generation failed for session %s: %v", snap.Code, err)
		qrCode = ""
	}

	return map[string]any{
		"code":     snap.Code,
		"join_url": joinURL,
		"qr_code":  qrCode,
		"host_url": hostURL,
	}
}

func (s *Service) GetSession(code string) (store.SessionSnapshot, error) {
	return s.store.Snapshot(code)
}

// CloseSession removes the session and evicts its room. Closing an unknown
// code succeeds; the farewell is only heard by rooms that exist.
func (s *Service) CloseSession(code string) {
	l := s.lockSession(code)
	defer s.unlockSession(code, l)

	s.store.CloseSession(code)
	s.rooms.CloseRoom(code, sessionClosedEvent(code))
}

func (s *Service) Export(code string, format export.Format) (*export.Result, error) {
	snap, err := s.store.Snapshot(code)
	if err != nil {
		return nil, err
	}
	result, err := s.export.Export(snap, format, s.now())
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be md or pdf", nil)
		}
		return nil, err
	}
	return result, nil
}

// Join registers the client in the session's room and hands it the full
// current snapshot. Snapshot and registration happen under the session
// lock, so events broadcast afterwards are exactly the ones the snapshot
// does not contain.
func (s *Service) Join(c *room.Client, code string) {
	l := s.lockSession(code)
	defer s.unlockSession(code, l)

	snap, err := s.store.Snapshot(code)
	if err != nil {
		c.Send(errorEvent("Session not found"))
		return
	}
	s.rooms.Join(code, c, joinedEvent(snap))
}

func (s *Service) AddFeedback(c *room.Client, code, text string) {
	l := s.lockSession(code)
	defer s.unlockSession(code, l)

	item, err := s.store.AddFeedback(code, text)
	if err != nil {
		if errors.Is(err, store.ErrEmptyText) {
			return
		}
		c.Send(errorEvent("Session not found"))
		return
	}
	s.rooms.Broadcast(code, feedbackAddedEvent(item))
}

func (s *Service) AddComment(c *room.Client, code, feedbackID, text string) {
	l := s.lockSession(code)
	defer s.unlockSession(code, l)

	comment, err := s.store.AddComment(code, feedbackID, text)
	if err != nil {
		if errors.Is(err, store.ErrEmptyText) {
			return
		}
		c.Send(errorEvent(notFoundMessage(err)))
		return
	}
	s.rooms.Broadcast(code, commentAddedEvent(feedbackID, comment))
}

// CastVote records one vote by the connection's participant ID. A repeat
// vote changes nothing and broadcasts nothing.
func (s *Service) CastVote(c *room.Client, code, itemID string, isComment bool, feedbackID string) {
	l := s.lockSession(code)
	defer s.unlockSession(code, l)

	var (
		votes   int
		changed bool
		err     error
	)
	if isComment {
		votes, changed, err = s.store.VoteComment(code, feedbackID, itemID, c.ID())
	} else {
		votes, changed, err = s.store.VoteFeedback(code, itemID, c.ID())
	}
	if err != nil {
		c.Send(errorEvent(notFoundMessage(err)))
		return
	}
	if !changed {
		return
	}
	if !isComment {
		feedbackID = ""
	}
	s.rooms.Broadcast(code, voteUpdatedEvent(itemID, votes, isComment, feedbackID))
}

// Disconnect drops the client from whatever room it joined.
func (s *Service) Disconnect(c *room.Client) {
	s.rooms.Leave(c)
}

// HandleMessage dispatches one raw websocket frame from a client.
func (s *Service) HandleMessage(c *room.Client, raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Send(errorEvent("Invalid message"))
		return
	}

	switch msg.Type {
	case msgJoin:
		s.Join(c, msg.Code)
	case msgNewFeedback:
		s.AddFeedback(c, msg.Code, msg.Text)
	case msgNewComment:
		s.AddComment(c, msg.Code, msg.FeedbackID, msg.Text)
	case msgVote:
		s.CastVote(c, msg.Code, msg.ItemID, msg.IsComment, msg.FeedbackID)
	default:
		c.Send(errorEvent("Unknown message type"))
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, store.ErrFeedbackNotFound):
		return "Feedback not found"
	case errors.Is(err, store.ErrCommentNotFound):
		return "Comment not found"
	}
	return "Server error"
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrFeedbackNotFound),
		errors.Is(err, store.ErrCommentNotFound):
		return http.StatusNotFound, "NOT_FOUND", notFoundMessage(err), nil
	case errors.Is(err, store.ErrEmptyText):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF export is not available on this server", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
