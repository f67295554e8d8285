package actor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
)

// memStore is a map-backed Lister with real compare-and-swap semantics,
// enough to exercise the actor without Redis.
type memStore struct {
	mu    sync.Mutex
	rooms map[string]*room.Room

	casErr   error // when set, CompareAndSwap fails with it
	casCalls int
}

func newMemStore(rooms ...*room.Room) *memStore {
	s := &memStore{rooms: make(map[string]*room.Room)}
	for _, r := range rooms {
		s.rooms[r.Code] = r.Clone()
	}
	return s
}

func (s *memStore) Get(ctx context.Context, code string) (*room.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (s *memStore) CompareAndSwap(ctx context.Context, code string, expectedVersion int64, r *room.Room) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.casErr != nil {
		return false, s.casErr
	}
	current, ok := s.rooms[code]
	if !ok || current.Version != expectedVersion {
		return false, nil
	}
	s.rooms[code] = r.Clone()
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *memStore) ListCodes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *memStore) failCAS() {
	s.mu.Lock()
	s.casErr = errors.New("store unavailable")
	s.mu.Unlock()
}

// put writes directly, bypassing CAS, imitating an external writer.
func (s *memStore) put(r *room.Room) {
	s.mu.Lock()
	s.rooms[r.Code] = r.Clone()
	s.mu.Unlock()
}

func (s *memStore) version(code string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[code]; ok {
		return r.Version
	}
	return 0
}

func (s *memStore) has(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[code]
	return ok
}

// nopClock satisfies Deadliner while recording arm/cancel traffic.
type nopClock struct {
	mu       sync.Mutex
	armed    []int64
	cancels  int
	lastCode string
}

func (c *nopClock) Arm(code string, at time.Time, armedVersion int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = append(c.armed, armedVersion)
	c.lastCode = code
}

func (c *nopClock) Cancel(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels++
}

func testModules() map[room.GameKind]rules.Module {
	return map[room.GameKind]rules.Module{
		room.KindFrequency: rules.NewFrequency(),
		room.KindDraw:      rules.NewDraw(60 * time.Second),
	}
}

func playerStub(id string) room.Player {
	return room.Player{ID: id, DisplayName: id, Connected: true}
}

func lobbyRoom(code string, playerIDs ...string) *room.Room {
	host := room.Player{ID: playerIDs[0], DisplayName: playerIDs[0], Connected: true}
	r := room.New(code, room.KindFrequency, host, time.Now().Add(-time.Minute))
	for _, id := range playerIDs[1:] {
		r.Players = append(r.Players, room.Player{ID: id, DisplayName: id, Connected: true})
	}
	return r
}
