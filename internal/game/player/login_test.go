package player

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/world"
)

// fakeRepo is an in-memory Repository for login tests.
type fakeRepo struct {
	records map[string]*Record
	failAll bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*Record)}
}

func (f *fakeRepo) FindByName(_ context.Context, name string) (*Record, error) {
	if f.failAll {
		return nil, context.DeadlineExceeded
	}
	rec, ok := f.records[strings.ToLower(name)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) Save(_ context.Context, rec *Record) error {
	if f.failAll {
		return context.DeadlineExceeded
	}
	cp := *rec
	f.records[strings.ToLower(rec.Name)] = &cp
	return nil
}

func (f *fakeRepo) Exists(_ context.Context, name string) (bool, error) {
	_, ok := f.records[strings.ToLower(name)]
	return ok, nil
}

func loginWorld(t *testing.T) *world.World {
	t.Helper()
	doc := `
zone: midgaard
startRoom: temple
classStartRooms:
  mage: tower
rooms:
  temple:
    title: The Temple
    description: A quiet temple.
  tower:
    title: The Tower
    description: The mage tower.
`
	w, err := world.LoadWorld([][]byte{[]byte(doc)}, world.Options{})
	require.NoError(t, err)
	return w
}

func texts(events []event.OutboundEvent) []string {
	var out []string
	for _, ev := range events {
		switch e := ev.(type) {
		case event.SendText:
			out = append(out, e.Text)
		case event.SendInfo:
			out = append(out, e.Text)
		}
	}
	return out
}

func containsText(t *testing.T, events []event.OutboundEvent, want string) {
	t.Helper()
	for _, line := range texts(events) {
		if strings.Contains(line, want) {
			return
		}
	}
	t.Fatalf("no outbound line contains %q in %v", want, texts(events))
}

func TestLogin_CreateCharacter(t *testing.T) {
	repo := newFakeRepo()
	w := loginWorld(t)
	l := NewLogin(repo, w, zap.NewNop())
	mgr := NewManager()
	st, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	ctx := context.Background()

	containsText(t, l.Greet(st), "Enter your name:")

	out := l.HandleLine(ctx, st, mgr, "Alice")
	containsText(t, out.Events, "Create a new character?")
	require.Equal(t, PhaseConfirmCreate, st.Phase)

	out = l.HandleLine(ctx, st, mgr, "yes")
	containsText(t, out.Events, "Choose a password:")

	out = l.HandleLine(ctx, st, mgr, "secret")
	containsText(t, out.Events, "Choose a class:")

	out = l.HandleLine(ctx, st, mgr, "W")
	containsText(t, out.Events, "Choose a race:")

	out = l.HandleLine(ctx, st, mgr, "H")
	require.True(t, out.EnteredWorld)
	assert.True(t, out.Created)
	require.NotNil(t, out.Record)
	assert.Equal(t, "Warrior", out.Record.Class)
	assert.Equal(t, "Human", out.Record.Race)
	assert.Equal(t, id.RoomID("midgaard:temple"), out.StartRoom)
	assert.Equal(t, "Alice", st.Name)
	assert.Equal(t, 1, st.Level)
	assert.Positive(t, st.HP)

	// The record was persisted and the password hash verifies.
	saved, err := repo.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, CheckPassword(saved.PasswordHash, "secret"))
	assert.False(t, CheckPassword(saved.PasswordHash, "wrong"))
}

func TestLogin_ClassStartRoom(t *testing.T) {
	repo := newFakeRepo()
	l := NewLogin(repo, loginWorld(t), zap.NewNop())
	mgr := NewManager()
	st, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	ctx := context.Background()

	l.HandleLine(ctx, st, mgr, "Merlin")
	l.HandleLine(ctx, st, mgr, "yes")
	l.HandleLine(ctx, st, mgr, "secret")
	l.HandleLine(ctx, st, mgr, "mage")
	out := l.HandleLine(ctx, st, mgr, "elf")
	require.True(t, out.EnteredWorld)
	assert.Equal(t, id.RoomID("midgaard:tower"), out.StartRoom)
}

func TestLogin_ExistingPlayer(t *testing.T) {
	repo := newFakeRepo()
	w := loginWorld(t)
	l := NewLogin(repo, w, zap.NewNop())
	mgr := NewManager()
	ctx := context.Background()

	// Create Alice through the machine first.
	st, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	l.HandleLine(ctx, st, mgr, "Alice")
	l.HandleLine(ctx, st, mgr, "yes")
	l.HandleLine(ctx, st, mgr, "secret")
	l.HandleLine(ctx, st, mgr, "W")
	out := l.HandleLine(ctx, st, mgr, "H")
	require.True(t, out.EnteredWorld)
	_, ok := mgr.Disconnect(1)
	require.True(t, ok)

	st2, err := mgr.Connect(2, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	out = l.HandleLine(ctx, st2, mgr, "alice")
	containsText(t, out.Events, "Password:")

	out = l.HandleLine(ctx, st2, mgr, "wrong")
	containsText(t, out.Events, "Wrong password.")
	assert.False(t, out.EnteredWorld)

	out = l.HandleLine(ctx, st2, mgr, "secret")
	require.True(t, out.EnteredWorld)
	assert.False(t, out.Created)
	assert.Equal(t, "Alice", st2.Name)
	assert.Equal(t, id.RoomID("midgaard:temple"), out.StartRoom)
}

func TestLogin_TooManyPasswordFailures(t *testing.T) {
	repo := newFakeRepo()
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), &Record{Name: "Alice", PasswordHash: hash, Class: "Warrior", Race: "Human", Level: 1}))

	l := NewLogin(repo, loginWorld(t), zap.NewNop())
	mgr := NewManager()
	st, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	ctx := context.Background()

	l.HandleLine(ctx, st, mgr, "Alice")
	out := l.HandleLine(ctx, st, mgr, "nope")
	assert.Empty(t, out.CloseReason)
	out = l.HandleLine(ctx, st, mgr, "nope")
	assert.Empty(t, out.CloseReason)
	out = l.HandleLine(ctx, st, mgr, "nope")
	assert.Equal(t, event.ReasonProtocol, out.CloseReason)
}

func TestLogin_RejectsBadNamesAndLiveDuplicates(t *testing.T) {
	repo := newFakeRepo()
	l := NewLogin(repo, loginWorld(t), zap.NewNop())
	mgr := NewManager()
	ctx := context.Background()

	st, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	out := l.HandleLine(ctx, st, mgr, "x")
	containsText(t, out.Events, "Names are")
	assert.Equal(t, PhaseAskName, st.Phase)

	require.NoError(t, mgr.BindName(1, "Alice"))
	st2, err := mgr.Connect(2, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	out = l.HandleLine(ctx, st2, mgr, "alice")
	containsText(t, out.Events, "already in the world")
	assert.Equal(t, PhaseAskName, st2.Phase)
}

func TestLogin_PasswordRaceBouncesSecondSession(t *testing.T) {
	repo := newFakeRepo()
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), &Record{Name: "Alice", PasswordHash: hash, Class: "Warrior", Race: "Human", Level: 1}))

	l := NewLogin(repo, loginWorld(t), zap.NewNop())
	mgr := NewManager()
	ctx := context.Background()

	// Both sessions pass the name gate before either authenticates.
	st1, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	l.HandleLine(ctx, st1, mgr, "Alice")
	st2, err := mgr.Connect(2, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	l.HandleLine(ctx, st2, mgr, "Alice")
	require.Equal(t, PhaseAskPassword, st2.Phase)

	out := l.HandleLine(ctx, st1, mgr, "secret")
	require.True(t, out.EnteredWorld)
	require.NoError(t, mgr.BindName(1, out.Record.Name))

	// The second session knows the password but the character is live.
	out = l.HandleLine(ctx, st2, mgr, "secret")
	assert.False(t, out.EnteredWorld)
	containsText(t, out.Events, "already in the world")
	assert.Equal(t, PhaseAskName, st2.Phase)

	// Once the first session leaves, the second can log in normally.
	_, ok := mgr.Disconnect(1)
	require.True(t, ok)
	l.HandleLine(ctx, st2, mgr, "Alice")
	out = l.HandleLine(ctx, st2, mgr, "secret")
	assert.True(t, out.EnteredWorld)
}

func TestLogin_CreateRaceBouncesSecondSession(t *testing.T) {
	repo := newFakeRepo()
	l := NewLogin(repo, loginWorld(t), zap.NewNop())
	mgr := NewManager()
	ctx := context.Background()

	// Two sessions walk the creation dialogue for the same name.
	st1, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	st2, err := mgr.Connect(2, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	for _, c := range []struct {
		st       *State
		password string
	}{{st1, "secret"}, {st2, "other"}} {
		l.HandleLine(ctx, c.st, mgr, "Alice")
		l.HandleLine(ctx, c.st, mgr, "yes")
		l.HandleLine(ctx, c.st, mgr, c.password)
		l.HandleLine(ctx, c.st, mgr, "W")
	}

	out := l.HandleLine(ctx, st1, mgr, "H")
	require.True(t, out.EnteredWorld)
	require.NoError(t, mgr.BindName(1, out.Record.Name))

	out = l.HandleLine(ctx, st2, mgr, "H")
	assert.False(t, out.EnteredWorld)
	containsText(t, out.Events, "Someone claimed that name")
	assert.Equal(t, PhaseAskName, st2.Phase)

	// The first creation's record was not overwritten.
	saved, err := repo.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, CheckPassword(saved.PasswordHash, "secret"))
	assert.False(t, CheckPassword(saved.PasswordHash, "other"))
}

func TestLogin_SavedRoomGoneFallsBackToStart(t *testing.T) {
	repo := newFakeRepo()
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), &Record{
		Name: "Alice", PasswordHash: hash, Class: "Warrior", Race: "Human",
		Level: 3, RoomID: "gone:room",
	}))

	l := NewLogin(repo, loginWorld(t), zap.NewNop())
	mgr := NewManager()
	st, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)
	ctx := context.Background()

	l.HandleLine(ctx, st, mgr, "Alice")
	out := l.HandleLine(ctx, st, mgr, "secret")
	require.True(t, out.EnteredWorld)
	assert.Equal(t, id.RoomID("midgaard:temple"), out.StartRoom)
	assert.Equal(t, 3, st.Level)
}

func TestLogin_RepositoryDownClosesSession(t *testing.T) {
	repo := newFakeRepo()
	repo.failAll = true
	l := NewLogin(repo, loginWorld(t), zap.NewNop())
	mgr := NewManager()
	st, err := mgr.Connect(1, event.TransportTelnet, false, connectedAt)
	require.NoError(t, err)

	out := l.HandleLine(context.Background(), st, mgr, "Alice")
	assert.Equal(t, event.ReasonIO, out.CloseReason)
}
