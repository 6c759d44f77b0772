package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
)

// adminPlayer is one row of /admin/players.
type adminPlayer struct {
	Name      string `json:"name"`
	Level     int    `json:"level"`
	Class     string `json:"class"`
	Race      string `json:"race"`
	Room      string `json:"room"`
	Transport string `json:"transport"`
}

// adminZone is one row of /admin/zones.
type adminZone struct {
	Name            string `json:"name"`
	Rooms           int    `json:"rooms"`
	LifespanSeconds int    `json:"lifespanSeconds,omitempty"`
}

// adminRoom is one row of /admin/rooms/{zone}.
type adminRoom struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Exits []string `json:"exits"`
}

// staffRequest toggles the staff flag on a stored player record. The
// change takes effect on the player's next login.
type staffRequest struct {
	Name  string `json:"name"`
	Staff bool   `json:"staff"`
}

func (s *Server) handleAdminPlayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	states := s.players.Playing()
	out := make([]adminPlayer, 0, len(states))
	for _, st := range states {
		out = append(out, adminPlayer{
			Name:      st.Name,
			Level:     st.Level,
			Class:     st.Class.Name,
			Race:      st.Race.Name,
			Room:      string(st.RoomID),
			Transport: st.Transport,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, s.logger, out)
}

func (s *Server) handleAdminZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := make([]adminZone, 0, len(s.world.Zones))
	for _, zone := range s.world.Zones {
		z := adminZone{Name: zone, Rooms: len(s.world.RoomsInZone(zone))}
		if lifespan, ok := s.world.ZoneLifespans[zone]; ok {
			z.LifespanSeconds = int(lifespan.Seconds())
		}
		out = append(out, z)
	}
	writeJSON(w, s.logger, out)
}

func (s *Server) handleAdminRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	zone := strings.TrimPrefix(r.URL.Path, "/admin/rooms/")
	if zone == "" || strings.Contains(zone, "/") {
		http.Error(w, "zone required", http.StatusBadRequest)
		return
	}

	roomIDs := s.world.RoomsInZone(zone)
	if len(roomIDs) == 0 {
		http.Error(w, "unknown zone", http.StatusNotFound)
		return
	}
	out := make([]adminRoom, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		room := s.world.Rooms[roomID]
		exits := make([]string, 0, len(room.Exits))
		for _, dir := range world.AllDirections {
			if _, ok := room.Exits[dir]; ok {
				exits = append(exits, string(dir))
			}
		}
		out = append(out, adminRoom{ID: string(room.ID), Title: room.Title, Exits: exits})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, s.logger, out)
}

func (s *Server) handleAdminStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req staffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := s.repo.FindByName(r.Context(), req.Name)
	if errors.Is(err, player.ErrNotFound) {
		http.Error(w, "unknown player", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("staff toggle lookup failed", zap.String("name", req.Name), zap.Error(err))
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	rec.IsStaff = req.Staff
	if err := s.repo.Save(r.Context(), rec); err != nil {
		s.logger.Error("staff toggle save failed", zap.String("name", req.Name), zap.Error(err))
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("staff flag updated",
		zap.String("name", rec.Name), zap.Bool("staff", req.Staff))
	writeJSON(w, s.logger, map[string]any{"name": rec.Name, "staff": rec.IsStaff})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing admin response failed", zap.Error(err))
	}
}
