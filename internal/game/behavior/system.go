package behavior

import (
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/combat"
	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/mob"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
)

// Memory is the per-mob state the tree nodes read and write.
type Memory struct {
	PatrolIndex  int
	Cooldowns    map[string]time.Time
	NextActionAt time.Time
}

func newMemory() *Memory {
	return &Memory{Cooldowns: make(map[string]time.Time)}
}

// System ticks behavior trees for every mob carrying one. Not safe for
// concurrent use; owned by the engine worker.
type System struct {
	players *player.Manager
	mobs    *mob.Registry
	combat  *combat.System
	effects *effect.Engine
	world   *world.World
	scripts ScriptRunner
	rng     *rand.Rand
	logger  *zap.Logger

	minDelay time.Duration
	maxDelay time.Duration

	trees    map[string]Node
	memories map[id.MobID]*Memory
	warned   map[string]bool
}

// NewSystem creates the behavior system with the standard tree templates.
// scripts may be nil; script leaves then fail.
func NewSystem(players *player.Manager, mobs *mob.Registry, cbt *combat.System, effects *effect.Engine, w *world.World, scripts ScriptRunner, rng *rand.Rand, logger *zap.Logger) *System {
	return &System{
		players:  players,
		mobs:     mobs,
		combat:   cbt,
		effects:  effects,
		world:    w,
		scripts:  scripts,
		rng:      rng,
		logger:   logger,
		minDelay: 2 * time.Second,
		maxDelay: 5 * time.Second,
		trees:    Templates(),
		memories: make(map[id.MobID]*Memory),
		warned:   make(map[string]bool),
	}
}

// SetDelays overrides the random per-action delay range.
//
// Precondition: 0 < min <= max.
func (s *System) SetDelays(min, max time.Duration) {
	s.minDelay = min
	s.maxDelay = max
}

// Register adds or replaces a named tree template.
func (s *System) Register(name string, tree Node) {
	s.trees[name] = tree
}

// Tick runs due behavior trees, at most cap mobs per call. Mobs are
// visited in shuffled order so no mob is starved under the cap.
//
// Postcondition: Returns the actions taken, for the caller to render.
// Rooted and dead mobs are skipped but still rescheduled.
func (s *System) Tick(now time.Time, cap int) []Event {
	var events []Event
	all := s.mobs.All()
	ticked := 0
	for _, i := range s.rng.Perm(len(all)) {
		if ticked >= cap {
			break
		}
		m := all[i]
		if m.BehaviorTree == "" {
			continue
		}
		mem, ok := s.memories[m.ID]
		if !ok {
			mem = newMemory()
			mem.NextActionAt = now.Add(s.randomDelay())
			s.memories[m.ID] = mem
			continue
		}
		if now.Before(mem.NextActionAt) {
			continue
		}
		mem.NextActionAt = now.Add(s.randomDelay())
		if !m.Alive() || s.effects.IsRooted(effect.MobTarget(m.ID)) {
			continue
		}
		tree, ok := s.trees[m.BehaviorTree]
		if !ok {
			// "script:<hook>" builds an aggro-aware wrapper around the
			// named Lua hook on first use.
			hook, isScript := strings.CutPrefix(m.BehaviorTree, "script:")
			if !isScript {
				if !s.warned[m.BehaviorTree] {
					s.warned[m.BehaviorTree] = true
					s.logger.Warn("unknown behavior tree", zap.String("tree", m.BehaviorTree), zap.String("mob", string(m.ID)))
				}
				continue
			}
			tree = &Selector{Children: []Node{
				IsInCombat{},
				Script{Hook: hook},
				Stationary{},
			}}
			s.trees[m.BehaviorTree] = tree
		}
		ctx := &Context{
			Now:     now,
			Mob:     m,
			Memory:  mem,
			World:   s.world,
			Players: s.players,
			Mobs:    s.mobs,
			Combat:  s.combat,
			Scripts: s.scripts,
			RNG:     s.rng,
			events:  &events,
		}
		tree.Tick(ctx)
		ticked++
	}
	return events
}

func (s *System) randomDelay() time.Duration {
	if s.maxDelay <= s.minDelay {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.rng.Int63n(int64(s.maxDelay-s.minDelay)))
}

// OnMobRemoved drops the mob's memory.
func (s *System) OnMobRemoved(mobID id.MobID) {
	delete(s.memories, mobID)
}
