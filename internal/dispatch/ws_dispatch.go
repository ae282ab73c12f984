package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/freight-matching/internal/models"
)

var ErrNoSession = errors.New("no ws session")

// DefaultWriteWait bounds a single notice write to a party.
const DefaultWriteWait = 5 * time.Second

// WSSession is one connected party.
type WSSession struct {
	conn      *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
}

// Send writes n, giving up after the session's write wait so a party that
// stopped reading cannot stall the caller.
func (s *WSSession) Send(n models.MatchNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(n)
}

// WSRegistry holds the latest session of each driver or shipper.
type WSRegistry struct {
	mu        sync.RWMutex
	sessions  map[string]*WSSession
	writeWait time.Duration
}

func NewWSRegistry() *WSRegistry { return NewWSRegistryWithWait(DefaultWriteWait) }

func NewWSRegistryWithWait(writeWait time.Duration) *WSRegistry {
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	return &WSRegistry{sessions: make(map[string]*WSSession), writeWait: writeWait}
}

// Add registers conn for partyID, closing any session it replaces.
func (r *WSRegistry) Add(partyID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[partyID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[partyID] = &WSSession{conn: conn, writeWait: r.writeWait}
}

// Remove drops the session of partyID if it still belongs to conn.
func (r *WSRegistry) Remove(partyID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[partyID]; ok && s.conn == conn {
		delete(r.sessions, partyID)
	}
}

// Notify sends n to partyID. A failed write leaves the connection unusable,
// so the session is closed and dropped.
func (r *WSRegistry) Notify(partyID string, n models.MatchNotice) error {
	r.mu.RLock()
	s, ok := r.sessions[partyID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(n); err != nil {
		_ = s.conn.Close()
		r.Remove(partyID, s.conn)
		return err
	}
	return nil
}
