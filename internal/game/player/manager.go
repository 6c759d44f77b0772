package player

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ambonmud/server/internal/game/id"
)

// namePattern enforces 2-20 chars, letter first, then letters, digits,
// or underscores.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{1,19}$`)

// ValidName reports whether a player name is well-formed.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// RenameResult classifies a rename attempt.
type RenameResult int

// Rename outcomes.
const (
	RenameOK RenameResult = iota
	RenameInvalid
	RenameTaken
)

// Manager tracks all connected players by session and by room, and keeps
// live names unique case-insensitively.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*State
	roomSets map[id.RoomID]map[id.SessionID]bool
	// names maps lowercased name to session, for live uniqueness.
	names map[string]id.SessionID
}

// NewManager creates an empty player Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[id.SessionID]*State),
		roomSets: make(map[id.RoomID]map[id.SessionID]bool),
		names:    make(map[string]id.SessionID),
	}
}

// Connect registers a freshly connected session in the first login phase.
//
// Postcondition: Returns the new State, or an error if the session is
// already registered.
func (m *Manager) Connect(sid id.SessionID, transport string, ansi bool, now time.Time) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.sessions[sid]; dup {
		return nil, fmt.Errorf("session %s already connected", sid)
	}
	st := &State{
		SessionID:       sid,
		Transport:       transport,
		ANSIEnabled:     ansi,
		Phase:           PhaseAskName,
		ConnectedAt:     now,
		ActiveQuests:    make(map[string]int),
		CompletedQuests: make(map[string]bool),
	}
	m.sessions[sid] = st
	return st, nil
}

// Get returns the state for a session.
//
// Postcondition: Returns (state, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(sid id.SessionID) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[sid]
	return st, ok
}

// GetByName returns the playing session with the given name,
// case-insensitively.
func (m *Manager) GetByName(name string) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sid, ok := m.names[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	st, ok := m.sessions[sid]
	return st, ok
}

// NameInUse reports whether a live session holds the name.
func (m *Manager) NameInUse(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.names[strings.ToLower(name)]
	return ok
}

// BindName claims a name for a session once login finalizes.
//
// Precondition: The name must be valid and not held by another session.
func (m *Manager) BindName(sid id.SessionID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[sid]
	if !ok {
		return fmt.Errorf("session %s not connected", sid)
	}
	key := strings.ToLower(name)
	if holder, taken := m.names[key]; taken && holder != sid {
		return fmt.Errorf("name %q already bound to session %s", name, holder)
	}
	if st.Name != "" {
		delete(m.names, strings.ToLower(st.Name))
	}
	st.Name = name
	m.names[key] = sid
	return nil
}

// Rename changes a playing session's name.
//
// Postcondition: Returns RenameOK and rebinds the name index, or
// RenameInvalid / RenameTaken without side effects.
func (m *Manager) Rename(sid id.SessionID, newName string) RenameResult {
	if !ValidName(newName) {
		return RenameInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[sid]
	if !ok {
		return RenameInvalid
	}
	key := strings.ToLower(newName)
	if holder, taken := m.names[key]; taken && holder != sid {
		return RenameTaken
	}
	if st.Name != "" {
		delete(m.names, strings.ToLower(st.Name))
	}
	st.Name = newName
	m.names[key] = sid
	return RenameOK
}

// InRoom returns the playing sessions in roomID, ordered by session id.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) InRoom(roomID id.RoomID) []*State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.roomSets[roomID]
	if !ok {
		return []*State{}
	}
	out := make([]*State, 0, len(ids))
	for sid := range ids {
		if st, ok := m.sessions[sid]; ok {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Playing returns every session past login, ordered by session id.
func (m *Manager) Playing() []*State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*State, 0, len(m.sessions))
	for _, st := range m.sessions {
		if st.Playing() {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Count returns the number of connected sessions, login phases included.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EnterWorld marks the session as playing and indexes it in roomID.
//
// Precondition: The session must exist.
func (m *Manager) EnterWorld(sid id.SessionID, roomID id.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[sid]
	if !ok {
		return fmt.Errorf("session %s not connected", sid)
	}
	if st.RoomID != "" {
		m.removeFromRoomLocked(st.RoomID, sid)
	}
	st.RoomID = roomID
	st.Phase = PhasePlaying
	m.addToRoomLocked(roomID, sid)
	return nil
}

// MoveTo relocates a playing session and returns the room it left.
//
// Precondition: The session must be playing.
// Postcondition: The state's RoomID equals roomID and the room index agrees.
func (m *Manager) MoveTo(sid id.SessionID, roomID id.RoomID) (id.RoomID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[sid]
	if !ok {
		return "", fmt.Errorf("session %s not connected", sid)
	}
	if !st.Playing() {
		return "", fmt.Errorf("session %s is still logging in", sid)
	}
	old := st.RoomID
	if old == roomID {
		return old, nil
	}
	m.removeFromRoomLocked(old, sid)
	st.RoomID = roomID
	m.addToRoomLocked(roomID, sid)
	return old, nil
}

// Disconnect removes the session from every index.
//
// Postcondition: Returns the removed state for the caller to persist, or
// (nil, false) if the session was unknown.
func (m *Manager) Disconnect(sid id.SessionID) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[sid]
	if !ok {
		return nil, false
	}
	if st.RoomID != "" {
		m.removeFromRoomLocked(st.RoomID, sid)
	}
	if st.Name != "" {
		delete(m.names, strings.ToLower(st.Name))
	}
	delete(m.sessions, sid)
	return st, true
}

// Remap moves a session's state to a new session id, preserving room and
// name bindings. Used when a gateway reconnect reissues the id.
//
// Precondition: oldSID must exist and newSID must be unused.
func (m *Manager) Remap(oldSID, newSID id.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[oldSID]
	if !ok {
		return fmt.Errorf("session %s not connected", oldSID)
	}
	if _, dup := m.sessions[newSID]; dup {
		return fmt.Errorf("session %s already connected", newSID)
	}
	delete(m.sessions, oldSID)
	st.SessionID = newSID
	m.sessions[newSID] = st
	if st.RoomID != "" {
		m.removeFromRoomLocked(st.RoomID, oldSID)
		m.addToRoomLocked(st.RoomID, newSID)
	}
	if st.Name != "" {
		m.names[strings.ToLower(st.Name)] = newSID
	}
	return nil
}

func (m *Manager) addToRoomLocked(roomID id.RoomID, sid id.SessionID) {
	if m.roomSets[roomID] == nil {
		m.roomSets[roomID] = make(map[id.SessionID]bool)
	}
	m.roomSets[roomID][sid] = true
}

func (m *Manager) removeFromRoomLocked(roomID id.RoomID, sid id.SessionID) {
	if rs, ok := m.roomSets[roomID]; ok {
		delete(rs, sid)
		if len(rs) == 0 {
			delete(m.roomSets, roomID)
		}
	}
}
