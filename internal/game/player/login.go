package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/progression"
	"github.com/ambonmud/server/internal/game/world"
)

const maxPasswordTries = 3

// Login drives the pre-game conversation: name, password, and for new
// characters the create/class/race prompts.
type Login struct {
	repo   Repository
	world  *world.World
	logger *zap.Logger
	now    func() time.Time
}

// NewLogin creates the login state machine.
//
// Precondition: All arguments must be non-nil.
func NewLogin(repo Repository, w *world.World, logger *zap.Logger) *Login {
	return &Login{repo: repo, world: w, logger: logger, now: time.Now}
}

// Outcome is the result of feeding one line to the login machine.
type Outcome struct {
	Events []event.OutboundEvent
	// EnteredWorld is true once the session finished logging in. The state
	// then carries the hydrated player and Record holds the durable form.
	EnteredWorld bool
	// Created is true when EnteredWorld finalized a brand-new character.
	Created bool
	Record  *Record
	// StartRoom is where the caller should place the player.
	StartRoom id.RoomID
	// CloseReason, when non-empty, tells the caller to close the session.
	CloseReason event.DisconnectReason
}

func (o *Outcome) send(sid id.SessionID, text string) {
	o.Events = append(o.Events, event.SendText{SessionID: sid, Text: text})
}

// Greet returns the banner and first prompt for a fresh connection.
func (l *Login) Greet(st *State) []event.OutboundEvent {
	return []event.OutboundEvent{
		event.SendInfo{SessionID: st.SessionID, Text: "Welcome to AmbonMUD."},
		event.SendText{SessionID: st.SessionID, Text: "Enter your name:"},
	}
}

// HandleLine advances the login conversation with one input line.
//
// Precondition: st must not be in PhasePlaying.
// Postcondition: The returned outcome carries every message to send; on
// EnteredWorld the state's player fields are hydrated.
func (l *Login) HandleLine(ctx context.Context, st *State, mgr *Manager, line string) Outcome {
	line = strings.TrimSpace(line)
	switch st.Phase {
	case PhaseAskName:
		return l.handleName(ctx, st, mgr, line)
	case PhaseAskPassword:
		return l.handlePassword(ctx, st, mgr, line)
	case PhaseConfirmCreate:
		return l.handleConfirmCreate(st, line)
	case PhaseNewPassword:
		return l.handleNewPassword(st, line)
	case PhaseAskClass:
		return l.handleClass(st, line)
	case PhaseAskRace:
		return l.handleRace(ctx, st, mgr, line)
	}
	return Outcome{CloseReason: event.ReasonProtocol}
}

func (l *Login) handleName(ctx context.Context, st *State, mgr *Manager, line string) Outcome {
	var out Outcome
	if !ValidName(line) {
		out.send(st.SessionID, "Names are 2-20 characters, a letter followed by letters, digits, or underscores.")
		out.send(st.SessionID, "Enter your name:")
		return out
	}
	if mgr.NameInUse(line) {
		out.send(st.SessionID, "That adventurer is already in the world.")
		out.send(st.SessionID, "Enter your name:")
		return out
	}

	rec, err := l.repo.FindByName(ctx, line)
	switch {
	case err == nil:
		st.pendingName = rec.Name
		st.Phase = PhaseAskPassword
		out.send(st.SessionID, "Password:")
	case errors.Is(err, ErrNotFound):
		st.pendingName = line
		st.Phase = PhaseConfirmCreate
		out.send(st.SessionID, fmt.Sprintf("No adventurer named %s exists. Create a new character? (yes/no)", line))
	default:
		l.logger.Error("login lookup failed", zap.String("name", line), zap.Error(err))
		out.send(st.SessionID, "The world is unavailable right now. Try again later.")
		out.CloseReason = event.ReasonIO
	}
	return out
}

func (l *Login) handlePassword(ctx context.Context, st *State, mgr *Manager, line string) Outcome {
	var out Outcome
	rec, err := l.repo.FindByName(ctx, st.pendingName)
	if err != nil {
		l.logger.Error("login lookup failed", zap.String("name", st.pendingName), zap.Error(err))
		out.send(st.SessionID, "The world is unavailable right now. Try again later.")
		out.CloseReason = event.ReasonIO
		return out
	}
	if !CheckPassword(rec.PasswordHash, line) {
		st.passwordTries++
		if st.passwordTries >= maxPasswordTries {
			out.send(st.SessionID, "Too many failed attempts.")
			out.CloseReason = event.ReasonProtocol
			return out
		}
		out.send(st.SessionID, "Wrong password.")
		out.send(st.SessionID, "Password:")
		return out
	}

	// The name gate ran at name entry; another session may have finished
	// logging in as this character since. Recheck before entering.
	if mgr.NameInUse(rec.Name) {
		st.pendingName = ""
		st.passwordTries = 0
		st.Phase = PhaseAskName
		out.send(st.SessionID, "That adventurer is already in the world.")
		out.send(st.SessionID, "Enter your name:")
		return out
	}

	l.hydrate(st, rec)
	out.send(st.SessionID, fmt.Sprintf("Welcome back, %s.", rec.Name))
	out.EnteredWorld = true
	out.Record = rec
	out.StartRoom = l.resumeRoom(rec)
	return out
}

func (l *Login) handleConfirmCreate(st *State, line string) Outcome {
	var out Outcome
	switch strings.ToLower(line) {
	case "y", "yes":
		st.Phase = PhaseNewPassword
		out.send(st.SessionID, "Choose a password:")
	case "n", "no":
		st.pendingName = ""
		st.Phase = PhaseAskName
		out.send(st.SessionID, "Enter your name:")
	default:
		out.send(st.SessionID, "Please answer yes or no.")
	}
	return out
}

func (l *Login) handleNewPassword(st *State, line string) Outcome {
	var out Outcome
	if len(line) < 4 {
		out.send(st.SessionID, "Passwords need at least 4 characters.")
		out.send(st.SessionID, "Choose a password:")
		return out
	}
	hash, err := HashPassword(line)
	if err != nil {
		l.logger.Error("password hash failed", zap.Error(err))
		out.send(st.SessionID, "Something went wrong. Try again later.")
		out.CloseReason = event.ReasonIO
		return out
	}
	st.pendingPassword = hash
	st.Phase = PhaseAskClass
	out.send(st.SessionID, classPrompt())
	return out
}

func (l *Login) handleClass(st *State, line string) Outcome {
	var out Outcome
	class, ok := progression.ParseClass(line)
	if !ok {
		out.send(st.SessionID, "That is not a class here.")
		out.send(st.SessionID, classPrompt())
		return out
	}
	st.pendingClass = class
	st.Phase = PhaseAskRace
	out.send(st.SessionID, racePrompt())
	return out
}

func (l *Login) handleRace(ctx context.Context, st *State, mgr *Manager, line string) Outcome {
	var out Outcome
	race, ok := progression.ParseRace(line)
	if !ok {
		out.send(st.SessionID, "That is not a race here.")
		out.send(st.SessionID, racePrompt())
		return out
	}

	if mgr.NameInUse(st.pendingName) {
		st.Phase = PhaseAskName
		st.pendingName = ""
		out.send(st.SessionID, "Someone claimed that name while you were deciding.")
		out.send(st.SessionID, "Enter your name:")
		return out
	}

	rec := l.newRecord(st, st.pendingClass, race)
	if err := l.repo.Save(ctx, rec); err != nil {
		if errors.Is(err, ErrNameTaken) {
			st.Phase = PhaseAskName
			st.pendingName = ""
			out.send(st.SessionID, "Someone claimed that name while you were deciding.")
			out.send(st.SessionID, "Enter your name:")
			return out
		}
		l.logger.Error("create player failed", zap.String("name", rec.Name), zap.Error(err))
		out.send(st.SessionID, "The world is unavailable right now. Try again later.")
		out.CloseReason = event.ReasonIO
		return out
	}

	l.hydrate(st, rec)
	out.send(st.SessionID, fmt.Sprintf("Welcome to the world, %s the %s %s.", rec.Name, race.Name, st.Class.Name))
	out.EnteredWorld = true
	out.Created = true
	out.Record = rec
	out.StartRoom = rec.RoomID
	return out
}

// newRecord builds the durable form of a freshly created character.
func (l *Login) newRecord(st *State, class progression.Class, race progression.Race) *Record {
	stats := progression.BaseStats(class, race)
	now := l.now()
	rec := &Record{
		ID:           uuid.New(),
		Name:         st.pendingName,
		PasswordHash: st.pendingPassword,
		Class:        class.Name,
		Race:         race.Name,
		Level:        1,
		Stats:        stats,
		RoomID:       l.world.StartRoomFor(class.Name),
		HP:           progression.MaxHP(class, 1, stats.Constitution, 0),
		Mana:         progression.MaxMana(class, 1, stats.Intelligence, stats.Wisdom),
		Equipment:    make(map[item.Slot]id.ItemID),
		ActiveQuests: make(map[string]int),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return rec
}

// hydrate copies a record into the live state. Vitals are recomputed by
// the caller once equipment is restored.
func (l *Login) hydrate(st *State, rec *Record) {
	class, ok := progression.ParseClass(rec.Class)
	if !ok {
		class = progression.Warrior
	}
	race, ok := progression.ParseRace(rec.Race)
	if !ok {
		race = progression.Human
	}
	st.Name = rec.Name
	st.Class = class
	st.Race = race
	st.Level = rec.Level
	st.XPTotal = rec.XPTotal
	st.Gold = rec.Gold
	st.Stats = rec.Stats
	st.BaseMaxHP = rec.BaseMaxHP
	st.HP = rec.HP
	st.Mana = rec.Mana
	st.IsStaff = rec.IsStaff
	st.ActiveQuests = make(map[string]int, len(rec.ActiveQuests))
	for q, kills := range rec.ActiveQuests {
		st.ActiveQuests[q] = kills
	}
	st.CompletedQuests = make(map[string]bool, len(rec.CompletedQuests))
	for _, q := range rec.CompletedQuests {
		st.CompletedQuests[q] = true
	}
	st.Achievements = append([]string(nil), rec.Achievements...)
	st.pendingName = ""
	st.pendingPassword = nil
	st.passwordTries = 0
}

// resumeRoom returns the saved room if it still exists, else the start
// room for the record's class.
func (l *Login) resumeRoom(rec *Record) id.RoomID {
	if _, ok := l.world.Room(rec.RoomID); ok {
		return rec.RoomID
	}
	return l.world.StartRoomFor(rec.Class)
}

func classPrompt() string {
	names := make([]string, 0, len(progression.Classes))
	for _, c := range progression.Classes {
		names = append(names, "["+c.Name[:1]+"]"+c.Name[1:])
	}
	return "Choose a class: " + strings.Join(names, ", ")
}

func racePrompt() string {
	names := make([]string, 0, len(progression.Races))
	for _, r := range progression.Races {
		names = append(names, r.Name)
	}
	return "Choose a race: " + strings.Join(names, ", ") + " (first letter works)"
}
