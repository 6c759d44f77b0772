// Package behavior drives mob AI with per-mob behavior trees built from
// named templates.
package behavior

import (
	"math/rand"
	"sort"
	"time"

	"github.com/ambonmud/server/internal/game/combat"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/mob"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
)

// Status is a behavior-tree tick result.
type Status int

// Tick results.
const (
	Success Status = iota
	Failure
	Running
)

// EventKind classifies an observable mob action.
type EventKind int

// Behavior event kinds.
const (
	// EventAggro is a mob initiating combat with a player.
	EventAggro EventKind = iota
	// EventMoved is a mob walking through an exit.
	EventMoved
	// EventSaid is a mob speaking to its room.
	EventSaid
	// EventFled is a mob breaking combat and running.
	EventFled
)

// Event is one mob action for the caller to render.
type Event struct {
	Kind     EventKind
	MobID    id.MobID
	MobName  string
	SID      id.SessionID
	FromRoom id.RoomID
	ToRoom   id.RoomID
	Message  string
}

// ScriptRunner executes a named script hook for a mob. Implementations
// live outside this package; a nil runner fails script leaves.
type ScriptRunner interface {
	// RunMobHook returns the hook's status string ("success", "failure",
	// "running") or an error.
	RunMobHook(zone, hook string, m *mob.Mob) (string, error)
}

// Context carries everything one tree tick may touch.
type Context struct {
	Now     time.Time
	Mob     *mob.Mob
	Memory  *Memory
	World   *world.World
	Players *player.Manager
	Mobs    *mob.Registry
	Combat  *combat.System
	Scripts ScriptRunner
	RNG     *rand.Rand

	events *[]Event
}

func (c *Context) emit(ev Event) {
	ev.MobID = c.Mob.ID
	ev.MobName = c.Mob.Name
	*c.events = append(*c.events, ev)
}

// Node is one behavior-tree node.
type Node interface {
	Tick(ctx *Context) Status
}

// Selector returns the first non-Failure child result.
type Selector struct {
	Children []Node
}

func (n *Selector) Tick(ctx *Context) Status {
	for _, child := range n.Children {
		if status := child.Tick(ctx); status != Failure {
			return status
		}
	}
	return Failure
}

// Sequence returns the first non-Success child result.
type Sequence struct {
	Children []Node
}

func (n *Sequence) Tick(ctx *Context) Status {
	for _, child := range n.Children {
		if status := child.Tick(ctx); status != Success {
			return status
		}
	}
	return Success
}

// Inverter swaps Success and Failure; Running passes through.
type Inverter struct {
	Child Node
}

func (n *Inverter) Tick(ctx *Context) Status {
	switch n.Child.Tick(ctx) {
	case Success:
		return Failure
	case Failure:
		return Success
	}
	return Running
}

// Cooldown fails while its key is on cooldown; otherwise ticks the child
// and records the time on Success.
type Cooldown struct {
	Key    string
	Period time.Duration
	Child  Node
}

func (n *Cooldown) Tick(ctx *Context) Status {
	if last, ok := ctx.Memory.Cooldowns[n.Key]; ok && ctx.Now.Sub(last) < n.Period {
		return Failure
	}
	status := n.Child.Tick(ctx)
	if status == Success {
		ctx.Memory.Cooldowns[n.Key] = ctx.Now
	}
	return status
}

// IsInCombat succeeds while any session is engaged with the mob.
type IsInCombat struct{}

func (IsInCombat) Tick(ctx *Context) Status {
	if len(ctx.Combat.EngagedWith(ctx.Mob.ID)) > 0 {
		return Success
	}
	return Failure
}

// IsHpBelow succeeds when the mob's HP fraction is under the threshold.
type IsHpBelow struct {
	Fraction float64
}

func (n IsHpBelow) Tick(ctx *Context) Status {
	if ctx.Mob.MaxHP > 0 && float64(ctx.Mob.HP) < n.Fraction*float64(ctx.Mob.MaxHP) {
		return Success
	}
	return Failure
}

// IsPlayerInRoom succeeds when a non-staff player shares the mob's room.
type IsPlayerInRoom struct{}

func (IsPlayerInRoom) Tick(ctx *Context) Status {
	for _, st := range ctx.Players.InRoom(ctx.Mob.RoomID) {
		if !st.IsStaff {
			return Success
		}
	}
	return Failure
}

// Aggro engages the first non-staff player in the room.
type Aggro struct{}

func (Aggro) Tick(ctx *Context) Status {
	for _, st := range ctx.Players.InRoom(ctx.Mob.RoomID) {
		if st.IsStaff {
			continue
		}
		if err := ctx.Combat.Engage(ctx.Now, st.SessionID, ctx.Mob.ID); err != nil {
			return Failure
		}
		ctx.emit(Event{Kind: EventAggro, SID: st.SessionID, FromRoom: ctx.Mob.RoomID})
		return Success
	}
	return Failure
}

// Wander moves through a random exit that stays in the mob's home zone.
type Wander struct{}

func (Wander) Tick(ctx *Context) Status {
	exits := homeZoneExits(ctx)
	if len(exits) == 0 {
		return Failure
	}
	dest := exits[ctx.RNG.Intn(len(exits))]
	return moveMob(ctx, dest, EventMoved)
}

// Patrol walks the mob's waypoint route in order, one room per tick,
// wrapping at the end. A mob without a route cycles the current room's
// in-zone exits instead, advancing the patrol index each step.
type Patrol struct{}

func (Patrol) Tick(ctx *Context) Status {
	route := ctx.Mob.PatrolRoute
	if len(route) == 0 {
		exits := homeZoneExits(ctx)
		if len(exits) == 0 {
			return Failure
		}
		dest := exits[ctx.Memory.PatrolIndex%len(exits)]
		ctx.Memory.PatrolIndex++
		return moveMob(ctx, dest, EventMoved)
	}

	dest := route[ctx.Memory.PatrolIndex%len(route)]
	if dest == ctx.Mob.RoomID {
		ctx.Memory.PatrolIndex++
		dest = route[ctx.Memory.PatrolIndex%len(route)]
	}
	room, ok := ctx.World.Room(ctx.Mob.RoomID)
	if !ok || !hasExitTo(room, dest) {
		// Off the route; hold position until a reset replaces the mob.
		return Failure
	}
	if status := moveMob(ctx, dest, EventMoved); status != Success {
		return status
	}
	ctx.Memory.PatrolIndex++
	return Success
}

// hasExitTo reports whether any exit of room leads to dest.
func hasExitTo(room *world.Room, dest id.RoomID) bool {
	for _, to := range room.Exits {
		if to == dest {
			return true
		}
	}
	return false
}

// Flee breaks every engagement on the mob and runs through any exit.
type Flee struct{}

func (Flee) Tick(ctx *Context) Status {
	room, ok := ctx.World.Room(ctx.Mob.RoomID)
	if !ok || len(room.Exits) == 0 {
		return Failure
	}
	dests := sortedExits(room)
	dest := dests[ctx.RNG.Intn(len(dests))]
	ctx.Combat.OnMobRemoved(ctx.Mob.ID)
	return moveMob(ctx, dest, EventFled)
}

// Say speaks a fixed line to the mob's room.
type Say struct {
	Message string
}

func (n Say) Tick(ctx *Context) Status {
	ctx.emit(Event{Kind: EventSaid, FromRoom: ctx.Mob.RoomID, Message: n.Message})
	return Success
}

// Stationary does nothing, successfully.
type Stationary struct{}

func (Stationary) Tick(*Context) Status { return Success }

// Script runs a named script hook and maps its status string.
type Script struct {
	Hook string
}

func (n Script) Tick(ctx *Context) Status {
	if ctx.Scripts == nil {
		return Failure
	}
	status, err := ctx.Scripts.RunMobHook(ctx.Mob.ID.Zone(), n.Hook, ctx.Mob)
	if err != nil {
		return Failure
	}
	switch status {
	case "success":
		return Success
	case "running":
		return Running
	}
	return Failure
}

// homeZoneExits returns the destinations of the mob's room that stay in
// its spawn zone, in direction order.
func homeZoneExits(ctx *Context) []id.RoomID {
	room, ok := ctx.World.Room(ctx.Mob.RoomID)
	if !ok {
		return nil
	}
	home := ctx.Mob.SpawnRoomID.Zone()
	var out []id.RoomID
	for _, dir := range world.AllDirections {
		if dest, ok := room.Exits[dir]; ok && dest.Zone() == home {
			out = append(out, dest)
		}
	}
	return out
}

func sortedExits(room *world.Room) []id.RoomID {
	out := make([]id.RoomID, 0, len(room.Exits))
	for _, dest := range room.Exits {
		out = append(out, dest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func moveMob(ctx *Context, dest id.RoomID, kind EventKind) Status {
	from := ctx.Mob.RoomID
	if err := ctx.Mobs.Move(ctx.Mob.ID, dest); err != nil {
		return Failure
	}
	ctx.emit(Event{Kind: kind, FromRoom: from, ToRoom: dest})
	return Success
}
