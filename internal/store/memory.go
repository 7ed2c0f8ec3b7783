package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse/api/internal/util"
)

type comment struct {
	id        string
	text      string
	createdAt time.Time
}

type feedback struct {
	id        string
	text      string
	createdAt time.Time
	comments  []*comment
}

type session struct {
	mu        sync.Mutex
	code      string
	createdAt time.Time
	feedbacks []*feedback
	// voters maps a votable entity ID (feedback or comment) to the set of
	// participant IDs that voted on it. The vote count is always len(set).
	voters map[string]map[string]struct{}
}

// Store is the in-memory registry of live sessions. The registry map is
// guarded by its own lock; every mutation inside one session is serialized
// by that session's lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	codeLen  int
	now      func() time.Time
}

func New(codeLen int) *Store {
	if codeLen <= 0 {
		codeLen = 8
	}
	return &Store{
		sessions: make(map[string]*session),
		codeLen:  codeLen,
		now:      time.Now,
	}
}

// CreateSession registers an empty session under a fresh code and returns its
// snapshot. Code collisions are retried; with 8 digits they are practically
// impossible until the process hosts millions of live sessions.
func (s *Store) CreateSession() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := util.NewCode(s.codeLen)
	for {
		if _, exists := s.sessions[code]; !exists {
			break
		}
		code = util.NewCode(s.codeLen)
	}

	created := s.now()
	s.sessions[code] = &session{
		code:      code,
		createdAt: created,
		voters:    make(map[string]map[string]struct{}),
	}
	return SessionSnapshot{Code: code, CreatedAt: created, Feedbacks: []FeedbackItem{}}
}

// Snapshot returns a consistent copy of the session: every feedback item with
// its comments in insertion order and vote counts derived from the ledger.
func (s *Store) Snapshot(code string) (SessionSnapshot, error) {
	sess, err := s.lookup(code)
	if err != nil {
		return SessionSnapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// CloseSession removes the session. Closing an absent code is a no-op; room
// eviction is the caller's responsibility.
func (s *Store) CloseSession(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

// AddFeedback appends a new feedback item. Text that trims to empty is
// rejected with ErrEmptyText and leaves the session untouched.
func (s *Store) AddFeedback(code, text string) (FeedbackItem, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return FeedbackItem{}, ErrEmptyText
	}
	sess, err := s.lookup(code)
	if err != nil {
		return FeedbackItem{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	item := &feedback{
		id:        uuid.NewString(),
		text:      trimmed,
		createdAt: s.now(),
	}
	sess.feedbacks = append(sess.feedbacks, item)
	return sess.feedbackSnapshotLocked(item), nil
}

// AddComment appends a comment to the given feedback item.
func (s *Store) AddComment(code, feedbackID, text string) (Comment, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Comment{}, ErrEmptyText
	}
	sess, err := s.lookup(code)
	if err != nil {
		return Comment{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	item := sess.findFeedbackLocked(feedbackID)
	if item == nil {
		return Comment{}, ErrFeedbackNotFound
	}
	c := &comment{
		id:        uuid.NewString(),
		text:      trimmed,
		createdAt: s.now(),
	}
	item.comments = append(item.comments, c)
	return sess.commentSnapshotLocked(c), nil
}

// VoteFeedback records voterID's vote on a feedback item. A repeat vote from
// the same voter changes nothing and reports changed=false; the returned
// count always equals the number of distinct voters recorded so far.
func (s *Store) VoteFeedback(code, feedbackID, voterID string) (votes int, changed bool, err error) {
	sess, err := s.lookup(code)
	if err != nil {
		return 0, false, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.findFeedbackLocked(feedbackID) == nil {
		return 0, false, ErrFeedbackNotFound
	}
	votes, changed = sess.castLocked(feedbackID, voterID)
	return votes, changed, nil
}

// VoteComment records voterID's vote on a comment, addressed through its
// parent feedback item. Same idempotence rules as VoteFeedback.
func (s *Store) VoteComment(code, feedbackID, commentID, voterID string) (votes int, changed bool, err error) {
	sess, err := s.lookup(code)
	if err != nil {
		return 0, false, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	item := sess.findFeedbackLocked(feedbackID)
	if item == nil {
		return 0, false, ErrFeedbackNotFound
	}
	found := false
	for _, c := range item.comments {
		if c.id == commentID {
			found = true
			break
		}
	}
	if !found {
		return 0, false, ErrCommentNotFound
	}
	votes, changed = sess.castLocked(commentID, voterID)
	return votes, changed, nil
}

func (s *Store) lookup(code string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[code]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (sess *session) castLocked(entityID, voterID string) (votes int, changed bool) {
	set, ok := sess.voters[entityID]
	if !ok {
		set = make(map[string]struct{})
		sess.voters[entityID] = set
	}
	if _, voted := set[voterID]; voted {
		return len(set), false
	}
	set[voterID] = struct{}{}
	return len(set), true
}

func (sess *session) findFeedbackLocked(feedbackID string) *feedback {
	for _, item := range sess.feedbacks {
		if item.id == feedbackID {
			return item
		}
	}
	return nil
}

func (sess *session) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		Code:      sess.code,
		CreatedAt: sess.createdAt,
		Feedbacks: make([]FeedbackItem, 0, len(sess.feedbacks)),
	}
	for _, item := range sess.feedbacks {
		snap.Feedbacks = append(snap.Feedbacks, sess.feedbackSnapshotLocked(item))
	}
	return snap
}

func (sess *session) feedbackSnapshotLocked(item *feedback) FeedbackItem {
	out := FeedbackItem{
		ID:        item.id,
		Text:      item.text,
		Votes:     len(sess.voters[item.id]),
		Comments:  make([]Comment, 0, len(item.comments)),
		CreatedAt: item.createdAt,
	}
	for _, c := range item.comments {
		out.Comments = append(out.Comments, sess.commentSnapshotLocked(c))
	}
	return out
}

func (sess *session) commentSnapshotLocked(c *comment) Comment {
	return Comment{
		ID:        c.id,
		Text:      c.text,
		Votes:     len(sess.voters[c.id]),
		CreatedAt: c.createdAt,
	}
}
