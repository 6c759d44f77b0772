package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/storage/memory"
)

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestAdminPlayers(t *testing.T) {
	f := newWebFixture(t, Options{})

	st, err := f.players.Connect(1, event.TransportTelnet, true, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.players.BindName(1, "Alice"))
	require.NoError(t, f.players.EnterWorld(1, "town:square"))
	st.Level = 3

	var out []adminPlayer
	resp := getJSON(t, f.ts.URL+"/admin/players", &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out, 1)
	assert.Equal(t, "Alice", out[0].Name)
	assert.Equal(t, 3, out[0].Level)
	assert.Equal(t, "town:square", out[0].Room)
	assert.Equal(t, event.TransportTelnet, out[0].Transport)
}

func TestAdminZonesAndRooms(t *testing.T) {
	f := newWebFixture(t, Options{World: testWorldForAdmin()})

	var zones []adminZone
	resp := getJSON(t, f.ts.URL+"/admin/zones", &zones)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, zones, 1)
	assert.Equal(t, "town", zones[0].Name)
	assert.Equal(t, 2, zones[0].Rooms)
	assert.Equal(t, 600, zones[0].LifespanSeconds)

	var rooms []adminRoom
	resp = getJSON(t, f.ts.URL+"/admin/rooms/town", &rooms)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rooms, 2)
	assert.Equal(t, "town:field", rooms[0].ID)
	assert.Equal(t, []string{"south"}, rooms[0].Exits)

	resp = getJSON(t, f.ts.URL+"/admin/rooms/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminStaffToggle(t *testing.T) {
	repo := memory.NewRepository()
	rec := &player.Record{ID: uuid.New(), Name: "Alice"}
	require.NoError(t, repo.Save(t.Context(), rec))

	f := newWebFixture(t, Options{Repo: repo})

	body, _ := json.Marshal(staffRequest{Name: "Alice", Staff: true})
	resp, err := http.Post(f.ts.URL+"/admin/staff", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	saved, err := repo.FindByName(t.Context(), "alice")
	require.NoError(t, err)
	assert.True(t, saved.IsStaff)

	// Unknown players 404.
	body, _ = json.Marshal(staffRequest{Name: "Nobody", Staff: true})
	resp, err = http.Post(f.ts.URL+"/admin/staff", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
