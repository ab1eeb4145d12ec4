package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiont/socratex/internal/kv"
)

const (
	sessionKeyPrefix = "session/"
	currentIDKey     = "current"
)

// Store persists sessions and the current-session pointer in a kv
// backend. Persistence is best effort: write failures are logged and
// otherwise ignored so a broken disk never takes down a live
// conversation.
type Store struct {
	backend kv.Store
	logger  *log.Logger
}

// NewStore wraps a kv backend.
func NewStore(backend kv.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// ListAll loads every persisted session, most recently updated first.
// Corrupt records are skipped with a warning rather than failing the
// whole list.
func (s *Store) ListAll() []Session {
	keys, err := s.backend.Keys(sessionKeyPrefix)
	if err != nil {
		s.logger.Warn("list sessions failed", "err", err)
		return nil
	}

	sessions := make([]Session, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Get(key)
		if err != nil {
			s.logger.Warn("load session failed", "key", key, "err", err)
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.logger.Warn("decode session failed", "key", key, "err", err)
			continue
		}
		if sess.ID == "" {
			s.logger.Warn("skip session without id", "key", key)
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions
}

// Load returns one session by id.
func (s *Store) Load(id string) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("chat: session id is required")
	}
	data, err := s.backend.Get(sessionKeyPrefix + id)
	if err != nil {
		return Session{}, fmt.Errorf("chat: load session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("chat: decode session %s: %w", id, err)
	}
	return sess, nil
}

// Upsert writes a full session snapshot. The original CreatedAt is
// preserved when the record already exists.
func (s *Store) Upsert(sess Session) {
	if sess.ID == "" {
		s.logger.Warn("refuse to persist session without id")
		return
	}
	if existing, err := s.Load(sess.ID); err == nil && !existing.CreatedAt.IsZero() {
		sess.CreatedAt = existing.CreatedAt
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	data, err := json.Marshal(sess)
	if err != nil {
		s.logger.Warn("encode session failed", "session", sess.ID, "err", err)
		return
	}
	if err := s.backend.Set(sessionKeyPrefix+sess.ID, data); err != nil {
		s.logger.Warn("persist session failed", "session", sess.ID, "err", err)
	}
}

// Remove deletes a session record. Removing a missing session is a
// no-op.
func (s *Store) Remove(id string) {
	if id == "" {
		return
	}
	if err := s.backend.Delete(sessionKeyPrefix + id); err != nil {
		s.logger.Warn("remove session failed", "session", id, "err", err)
	}
}

// Rename updates a persisted session's title in place.
func (s *Store) Rename(id, title string) {
	sess, err := s.Load(id)
	if err != nil {
		s.logger.Warn("rename session failed", "session", id, "err", err)
		return
	}
	sess.Title = title
	sess.UpdatedAt = time.Now()
	s.Upsert(sess)
}

// CurrentID returns the persisted current-session pointer, or "" when
// none is set.
func (s *Store) CurrentID() string {
	data, err := s.backend.Get(currentIDKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("load current session pointer failed", "err", err)
		}
		return ""
	}
	return string(data)
}

// SetCurrentID persists the current-session pointer. An empty id
// clears the pointer.
func (s *Store) SetCurrentID(id string) {
	if id == "" {
		if err := s.backend.Delete(currentIDKey); err != nil {
			s.logger.Warn("clear current session pointer failed", "err", err)
		}
		return
	}
	if err := s.backend.Set(currentIDKey, []byte(id)); err != nil {
		s.logger.Warn("persist current session pointer failed", "err", err)
	}
}
