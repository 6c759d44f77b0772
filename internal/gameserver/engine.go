// Package gameserver hosts the engine: the single logical worker that owns
// all mutable game state, consumes the inbound bus, drives the tick-ordered
// subsystems, and publishes outbound events for the router to deliver.
package gameserver

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/config"
	"github.com/ambonmud/server/internal/game/ability"
	"github.com/ambonmud/server/internal/game/behavior"
	"github.com/ambonmud/server/internal/game/combat"
	"github.com/ambonmud/server/internal/game/command"
	"github.com/ambonmud/server/internal/game/dialogue"
	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/mob"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/progression"
	"github.com/ambonmud/server/internal/game/regen"
	"github.com/ambonmud/server/internal/game/scheduler"
	"github.com/ambonmud/server/internal/game/world"
	"github.com/ambonmud/server/internal/observability"
	"github.com/ambonmud/server/internal/scripting"
)

// gameHourDuration is how much wall time one game hour lasts.
const gameHourDuration = 2 * time.Minute

// Deps bundles what the engine needs beyond its own subsystems.
type Deps struct {
	Config      config.EngineConfig
	World       *world.World
	Repo        player.Repository
	EffectDefs  map[string]*effect.Definition
	AbilityDefs []*ability.Definition
	// Scripts is optional; a nil manager disables script behavior leaves.
	Scripts  *scripting.Manager
	Inbound  *event.InboundBus
	Outbound *event.OutboundBus
	Clock    Clock
	Metrics  observability.Recorder
	Logger   *zap.Logger
	RNG      *rand.Rand
}

// Engine is the game simulation. All mutable registries are owned by the
// worker running Run (or, in tests, the goroutine calling Tick).
type Engine struct {
	cfg       config.EngineConfig
	world     *world.World
	repo      player.Repository
	players   *player.Manager
	mobs      *mob.Registry
	items     *item.Registry
	effects   *effect.Engine
	abilities *ability.Book
	combat    *combat.System
	behavior  *behavior.System
	dialogue  *dialogue.System
	regen     *regen.System
	sched     *scheduler.Scheduler
	login     *player.Login
	commands  *command.Registry
	calendar  *Calendar
	scripts   *scripting.Manager
	inbound   *event.InboundBus
	outbound  *event.OutboundBus
	clock     Clock
	metrics   observability.Recorder
	logger    *zap.Logger
	rng       *rand.Rand

	ctx context.Context
	// records holds the durable base record each session was hydrated from.
	records map[id.SessionID]*player.Record
	// spawnByMob indexes spawn definitions for respawn scheduling.
	spawnByMob map[id.MobID]world.MobSpawn
	// zoneExpiry is when each lifespanned zone next resets.
	zoneExpiry map[string]time.Time
}

// NewEngine builds the engine, its subsystems, and the initial world
// population.
//
// Precondition: World, Repo, Inbound, Outbound, Logger, and RNG must be
// non-nil. Clock and Metrics default when nil.
func NewEngine(d Deps) (*Engine, error) {
	if d.World == nil || d.Repo == nil || d.Inbound == nil || d.Outbound == nil || d.Logger == nil || d.RNG == nil {
		return nil, fmt.Errorf("gameserver.NewEngine: missing required dependency")
	}
	if d.Clock == nil {
		d.Clock = RealClock{}
	}
	if d.Metrics == nil {
		d.Metrics = observability.NopRecorder{}
	}

	e := &Engine{
		cfg:        d.Config,
		world:      d.World,
		repo:       d.Repo,
		players:    player.NewManager(),
		mobs:       mob.NewRegistry(),
		items:      item.NewRegistry(),
		scripts:    d.Scripts,
		inbound:    d.Inbound,
		outbound:   d.Outbound,
		clock:      d.Clock,
		metrics:    d.Metrics,
		logger:     d.Logger,
		rng:        d.RNG,
		ctx:        context.Background(),
		records:    make(map[id.SessionID]*player.Record),
		spawnByMob: make(map[id.MobID]world.MobSpawn),
		zoneExpiry: make(map[string]time.Time),
	}
	e.effects = effect.NewEngine(d.EffectDefs, d.RNG)
	e.abilities = ability.NewBook(d.AbilityDefs)
	e.combat = combat.NewSystem(e.players, e.mobs, e.items, e.effects, d.RNG,
		time.Duration(d.Config.CombatRoundMillis)*time.Millisecond, e.respawnRoomFor)
	e.regen = regen.NewSystem(e.players, e.items, e.effects,
		time.Duration(d.Config.RegenIntervalMillis)*time.Millisecond)
	e.dialogue = dialogue.NewSystem(d.World)
	e.sched = scheduler.New(d.Logger)
	e.login = player.NewLogin(d.Repo, d.World, d.Logger)
	e.commands = command.DefaultRegistry()
	e.calendar = NewCalendar(8, gameHourDuration)

	var runner behavior.ScriptRunner
	if d.Scripts != nil {
		runner = &scriptRunner{m: d.Scripts}
		d.Scripts.Broadcast = func(roomID, msg string) {
			e.broadcastRoom(id.RoomID(roomID), 0, msg)
		}
		d.Scripts.GetMob = func(mobID string) *scripting.MobInfo {
			m, ok := e.mobs.Get(id.MobID(mobID))
			if !ok {
				return nil
			}
			return &scripting.MobInfo{
				ID: string(m.ID), Name: m.Name, RoomID: string(m.RoomID),
				HP: m.HP, MaxHP: m.MaxHP,
			}
		}
	}
	e.behavior = behavior.NewSystem(e.players, e.mobs, e.combat, e.effects, d.World, runner, d.RNG, d.Logger)
	if d.Config.BehaviorMinActionDelay > 0 {
		e.behavior.SetDelays(d.Config.BehaviorMinActionDelay, d.Config.BehaviorMaxActionDelay)
	}
	for name, tree := range behavior.Templates() {
		e.behavior.Register(name, tree)
	}

	e.populateWorld(e.clock.Now())
	return e, nil
}

// Players exposes the session registry for the router and the admin
// surface. Mutation stays on the engine worker.
func (e *Engine) Players() *player.Manager {
	return e.players
}

// scriptRunner adapts the Lua manager to the behavior package.
type scriptRunner struct {
	m *scripting.Manager
}

func (r *scriptRunner) RunMobHook(zone, hook string, m *mob.Mob) (string, error) {
	return r.m.CallMobHook(zone, hook, scripting.MobInfo{
		ID: string(m.ID), Name: m.Name, RoomID: string(m.RoomID),
		HP: m.HP, MaxHP: m.MaxHP,
	})
}

// populateWorld spawns every zone's mobs and items and arms zone lifespans.
func (e *Engine) populateWorld(now time.Time) {
	for _, sp := range e.world.MobSpawns {
		e.spawnByMob[sp.ID] = sp
	}
	for _, zone := range e.world.Zones {
		e.mobs.ResetZone(zone, e.world.SpawnsInZone(zone))
	}
	for _, sp := range e.world.ItemSpawns {
		e.items.RegisterTemplate(sp.Instance)
		switch {
		case sp.RoomID != "":
			e.items.PlaceInRoom(sp.RoomID, sp.Instance)
		case sp.MobID != "":
			e.items.PlaceOnMob(sp.MobID, sp.Instance)
		default:
			e.items.PlaceUnplaced(sp.Instance)
		}
	}
	for zone, lifespan := range e.world.ZoneLifespans {
		e.zoneExpiry[zone] = now.Add(lifespan)
	}
}

// Run drives the fixed-period tick loop until ctx is cancelled.
//
// Postcondition: Every connected session is saved and told to close before
// Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	period := e.cfg.TickPeriod()
	next := e.clock.Now().Add(period)
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		default:
		}

		start := e.clock.Now()
		if err := e.Tick(start); err != nil {
			e.shutdown()
			return err
		}
		if elapsed := e.clock.Now().Sub(start); elapsed > period {
			e.metrics.IncCounter("engine.tick_overruns", 1)
			e.logger.Warn("tick overran", zap.Duration("elapsed", elapsed))
		}

		// Resync to the tick boundary; never sleep a negative duration.
		sleep := next.Sub(e.clock.Now())
		next = next.Add(period)
		if sleep <= 0 {
			next = e.clock.Now().Add(period)
			continue
		}
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Tick runs one engine tick at now. Exposed so tests can drive the engine
// with a manual clock.
func (e *Engine) Tick(now time.Time) error {
	e.drainInbound(now)

	_, overdue, err := e.sched.RunDue(now, e.cfg.SchedulerMaxActionsPerTick)
	if err != nil {
		return err
	}
	if overdue > 0 {
		e.metrics.SetGauge("scheduler.overdue", int64(overdue))
	}

	e.tickEffects(now)
	e.tickBehavior(now)
	for _, sid := range e.regen.Tick(now, e.cfg.BehaviorMaxActionsPerTick) {
		e.sendVitals(sid)
		e.sendPrompt(sid)
	}
	e.renderCombatEvents(now, e.combat.Tick(now))
	e.tickZones(now)

	if e.calendar.Advance(now) {
		e.announceHour()
	}
	e.metrics.IncCounter("engine.ticks", 1)
	return nil
}

// drainInbound consumes queued inbound events within the configured budget.
func (e *Engine) drainInbound(now time.Time) {
	budget := e.cfg.InboundBudget()
	start := e.clock.Now()
	for {
		if budget > 0 && e.clock.Now().Sub(start) >= budget {
			if e.inbound.Len() > 0 {
				e.metrics.IncCounter("engine.inbound_budget_exceeded", 1)
				e.logger.Warn("inbound budget exceeded",
					zap.Int("queued", e.inbound.Len()))
			}
			return
		}
		select {
		case ev := <-e.inbound.Receive():
			e.handleInbound(now, ev)
		default:
			return
		}
	}
}

func (e *Engine) handleInbound(now time.Time, ev event.InboundEvent) {
	switch in := ev.(type) {
	case event.Connected:
		e.handleConnected(now, in)
	case event.Disconnected:
		e.handleDisconnected(now, in.SessionID, in.Reason)
	case event.LineReceived:
		e.handleLine(now, in.SessionID, in.Text)
	case event.GmcpReceived:
		e.logger.Debug("inbound gmcp ignored",
			zap.Uint64("session_id", uint64(in.SessionID)),
			zap.String("package", in.Package))
	}
}

func (e *Engine) handleConnected(now time.Time, in event.Connected) {
	st, err := e.players.Connect(in.SessionID, in.Transport, in.ANSIEnabled, now)
	if err != nil {
		e.logger.Warn("duplicate session connect",
			zap.Uint64("session_id", uint64(in.SessionID)))
		return
	}
	for _, out := range e.login.Greet(st) {
		e.outbound.Publish(out)
	}
	e.metrics.SetGauge("engine.sessions", int64(e.players.Count()))
}

func (e *Engine) handleDisconnected(now time.Time, sid id.SessionID, reason event.DisconnectReason) {
	st, ok := e.players.Get(sid)
	if !ok {
		return
	}
	if st.Playing() {
		e.save(now, st)
		e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s has left the world.", st.Name))
		e.gmcpRoom(st.RoomID, sid, GmcpRoomRemovePlayer, RoomPlayerPayload{Name: st.Name})
	}
	e.combat.OnPlayerDisconnected(sid)
	e.effects.OnPlayerDisconnected(sid)
	e.abilities.OnPlayerDisconnected(sid)
	e.regen.OnPlayerDisconnected(sid)
	e.dialogue.OnPlayerDisconnected(sid)
	e.items.OnPlayerDisconnected(sid)
	e.players.Disconnect(sid)
	delete(e.records, sid)
	e.metrics.SetGauge("engine.sessions", int64(e.players.Count()))
	e.logger.Info("session disconnected",
		zap.Uint64("session_id", uint64(sid)),
		zap.String("reason", string(reason)))
}

func (e *Engine) handleLine(now time.Time, sid id.SessionID, line string) {
	st, ok := e.players.Get(sid)
	if !ok {
		return
	}
	if !st.Playing() {
		out := e.login.HandleLine(e.ctx, st, e.players, line)
		for _, ev := range out.Events {
			e.outbound.Publish(ev)
		}
		if out.EnteredWorld {
			e.finalizeLogin(now, st, out)
		}
		if out.CloseReason != "" {
			e.outbound.Publish(event.Close{SessionID: sid, Reason: out.CloseReason})
		}
		return
	}
	e.dispatchCommand(now, st, line)
}

// finalizeLogin places a freshly logged-in player in the world, restores
// possessions, and sends the opening view.
func (e *Engine) finalizeLogin(now time.Time, st *player.State, out player.Outcome) {
	sid := st.SessionID
	if err := e.players.BindName(sid, out.Record.Name); err != nil {
		// Losing the bind race here means another live session holds the
		// name; entering anyway would duplicate the character.
		e.logger.Warn("name bind failed", zap.String("name", out.Record.Name), zap.Error(err))
		e.outbound.Publish(event.SendText{SessionID: sid, Text: "That adventurer is already in the world."})
		e.outbound.Publish(event.Close{SessionID: sid, Reason: event.ReasonProtocol})
		return
	}
	e.records[sid] = out.Record
	if err := e.players.EnterWorld(sid, out.StartRoom); err != nil {
		e.logger.Warn("enter world failed", zap.Error(err))
		return
	}

	for _, itemID := range out.Record.Inventory {
		if tmpl, ok := e.items.Template(itemID); ok {
			e.items.AddToInventory(sid, tmpl)
		}
	}
	for _, slot := range item.AllSlots {
		itemID, ok := out.Record.Equipment[slot]
		if !ok {
			continue
		}
		if tmpl, ok := e.items.Template(itemID); ok {
			e.items.AddToInventory(sid, tmpl)
			e.items.Equip(sid, tmpl.Item.Keyword)
		}
	}
	_, _, bonuses := e.items.EquipmentBonuses(sid)
	st.RecomputeVitals(bonuses)
	e.abilities.Sync(sid, st.Level, st.Class.Name)

	e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s has arrived.", st.Name))
	e.gmcpRoom(st.RoomID, sid, GmcpRoomAddPlayer, RoomPlayerPayload{Name: st.Name})

	e.sendGmcp(sid, GmcpCharName, charNamePayload(st))
	e.sendVitals(sid)
	e.sendSkills(sid)
	e.sendGmcp(sid, GmcpCharItemsList, itemPayloads(e.items.Inventory(sid)))
	e.sendLook(st)
	e.sendPrompt(sid)
	e.logger.Info("player entered world",
		zap.Uint64("session_id", uint64(sid)),
		zap.String("name", st.Name),
		zap.Bool("created", out.Created))
}

// shutdown saves every playing session and tells transports to close.
func (e *Engine) shutdown() {
	now := e.clock.Now()
	for _, st := range e.players.Playing() {
		e.save(now, st)
	}
	for _, st := range e.players.Playing() {
		e.outbound.Publish(event.Close{SessionID: st.SessionID, Reason: event.ReasonShutdown})
	}
}

// save snapshots the session into its durable record. Failures are logged
// and metered; the next save trigger retries.
func (e *Engine) save(now time.Time, st *player.State) {
	base, ok := e.records[st.SessionID]
	if !ok {
		return
	}
	inv := e.items.Inventory(st.SessionID)
	invIDs := make([]id.ItemID, 0, len(inv))
	for _, inst := range inv {
		invIDs = append(invIDs, inst.ID)
	}
	eq := make(map[item.Slot]id.ItemID)
	for slot, inst := range e.items.Equipment(st.SessionID) {
		eq[slot] = inst.ID
	}
	rec := player.Snapshot(base, st, invIDs, eq, now)
	if err := e.repo.Save(e.ctx, rec); err != nil {
		e.logger.Error("player save failed",
			zap.String("name", st.Name), zap.Error(err))
		e.metrics.IncCounter("persistence.save_failures", 1)
		return
	}
	e.records[st.SessionID] = rec
}

// respawnRoomFor is the combat system's player respawn policy.
func (e *Engine) respawnRoomFor(st *player.State) id.RoomID {
	return e.world.StartRoomFor(st.Class.Name)
}

// tickEffects advances status effects and applies their damage and healing.
func (e *Engine) tickEffects(now time.Time) {
	for _, res := range e.effects.Tick(now) {
		switch res.Kind {
		case effect.TickExpired:
			if !res.Target.IsMob() {
				e.sendText(res.Target.Player, fmt.Sprintf("The %s effect fades.", res.Def.DisplayName))
			}
		case effect.TickShattered:
			if !res.Target.IsMob() {
				e.sendText(res.Target.Player, fmt.Sprintf("Your %s shatters.", res.Def.DisplayName))
			}
		case effect.TickDamage:
			e.applyEffectDamage(now, res)
		case effect.TickHeal:
			e.applyEffectHeal(res)
		}
	}
}

func (e *Engine) applyEffectDamage(now time.Time, res effect.TickResult) {
	if res.Target.IsMob() {
		m, ok := e.mobs.Get(res.Target.Mob)
		if !ok {
			return
		}
		m.HP -= res.Amount
		if m.HP < 0 {
			m.HP = 0
		}
		if res.Source != 0 {
			e.sendText(res.Source, fmt.Sprintf("Your %s sears %s for %d damage.",
				res.Def.DisplayName, m.Name, res.Amount))
		}
		e.gmcpRoom(m.RoomID, 0, GmcpRoomUpdateMob, roomMobPayload(m))
		if m.HP <= 0 {
			source := res.Source
			if fromDot, ok := e.effects.DotSource(res.Target.Mob); ok {
				source = fromDot
			}
			e.renderCombatEvents(now, e.combat.KillMob(m.ID, source, true))
		}
		return
	}

	sid := res.Target.Player
	st, ok := e.players.Get(sid)
	if !ok || !st.Playing() {
		return
	}
	st.HP -= res.Amount
	if st.HP < 0 {
		st.HP = 0
	}
	e.sendText(sid, fmt.Sprintf("You suffer %d damage from %s.", res.Amount, res.Def.DisplayName))
	e.sendVitals(sid)
	e.sendPrompt(sid)
	if st.HP <= 0 {
		e.respawnPlayer(st)
	}
}

func (e *Engine) applyEffectHeal(res effect.TickResult) {
	if res.Target.IsMob() {
		if m, ok := e.mobs.Get(res.Target.Mob); ok {
			m.HP += res.Amount
			if m.HP > m.MaxHP {
				m.HP = m.MaxHP
			}
			e.gmcpRoom(m.RoomID, 0, GmcpRoomUpdateMob, roomMobPayload(m))
		}
		return
	}
	sid := res.Target.Player
	st, ok := e.players.Get(sid)
	if !ok || !st.Playing() {
		return
	}
	st.HP += res.Amount
	if st.HP > st.MaxHP {
		st.HP = st.MaxHP
	}
	e.sendText(sid, fmt.Sprintf("%s restores %d health.", res.Def.DisplayName, res.Amount))
	e.sendVitals(sid)
	e.sendPrompt(sid)
}

// respawnPlayer handles a death outside the combat swing path (DOTs).
func (e *Engine) respawnPlayer(st *player.State) {
	sid := st.SessionID
	e.combat.OnPlayerDisconnected(sid)
	old := st.RoomID
	dest := e.respawnRoomFor(st)
	e.dialogue.OnPlayerMoved(sid)
	if _, err := e.players.MoveTo(sid, dest); err != nil {
		e.logger.Warn("respawn move failed", zap.Error(err))
		return
	}
	st.HP = st.MaxHP
	st.Mana = st.MaxMana

	e.sendText(sid, "You have died!")
	e.broadcastRoom(old, sid, fmt.Sprintf("%s collapses and vanishes.", st.Name))
	e.gmcpRoom(old, sid, GmcpRoomRemovePlayer, RoomPlayerPayload{Name: st.Name})
	e.broadcastRoom(dest, sid, fmt.Sprintf("%s appears in a flash of light.", st.Name))
	e.gmcpRoom(dest, sid, GmcpRoomAddPlayer, RoomPlayerPayload{Name: st.Name})
	e.sendText(sid, "You awaken, restored.")
	e.sendVitals(sid)
	e.sendLook(st)
	e.sendPrompt(sid)
}

// tickBehavior advances mob behavior and narrates the results.
func (e *Engine) tickBehavior(now time.Time) {
	for _, ev := range e.behavior.Tick(now, e.cfg.BehaviorMaxActionsPerTick) {
		switch ev.Kind {
		case behavior.EventAggro:
			e.sendText(ev.SID, fmt.Sprintf("%s attacks you!", capFirst(ev.MobName)))
			if st, ok := e.players.Get(ev.SID); ok {
				e.broadcastRoom(ev.FromRoom, ev.SID, fmt.Sprintf("%s attacks %s!", capFirst(ev.MobName), st.Name))
			}
			e.sendPrompt(ev.SID)
		case behavior.EventMoved:
			e.broadcastRoom(ev.FromRoom, 0, fmt.Sprintf("%s leaves.", capFirst(ev.MobName)))
			e.gmcpRoom(ev.FromRoom, 0, GmcpRoomRemoveMob, RoomMobPayload{ID: string(ev.MobID), Name: ev.MobName})
			e.broadcastRoom(ev.ToRoom, 0, fmt.Sprintf("%s arrives.", capFirst(ev.MobName)))
			if m, ok := e.mobs.Get(ev.MobID); ok {
				e.gmcpRoom(ev.ToRoom, 0, GmcpRoomAddMob, roomMobPayload(m))
			}
		case behavior.EventFled:
			e.broadcastRoom(ev.FromRoom, 0, fmt.Sprintf("%s flees!", capFirst(ev.MobName)))
			e.gmcpRoom(ev.FromRoom, 0, GmcpRoomRemoveMob, RoomMobPayload{ID: string(ev.MobID), Name: ev.MobName})
			e.broadcastRoom(ev.ToRoom, 0, fmt.Sprintf("%s arrives, panting.", capFirst(ev.MobName)))
			if m, ok := e.mobs.Get(ev.MobID); ok {
				e.gmcpRoom(ev.ToRoom, 0, GmcpRoomAddMob, roomMobPayload(m))
			}
		case behavior.EventSaid:
			e.broadcastRoom(ev.FromRoom, 0, fmt.Sprintf("%s says, '%s'", capFirst(ev.MobName), ev.Message))
			e.gmcpRoom(ev.FromRoom, 0, GmcpCommChannel, CommChannelPayload{
				Channel: "say", Sender: ev.MobName, Text: ev.Message,
			})
		}
	}
}

// renderCombatEvents narrates combat outcomes and applies their follow-ups:
// quest credit, respawn scheduling, and level-ups.
func (e *Engine) renderCombatEvents(now time.Time, events []combat.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case combat.PlayerHit:
			e.sendText(ev.SID, fmt.Sprintf("You hit %s for %d damage.", ev.MobName, ev.Damage))
			if st, ok := e.players.Get(ev.SID); ok {
				e.broadcastRoom(ev.RoomID, ev.SID, fmt.Sprintf("%s hits %s.", st.Name, ev.MobName))
			}
			if m, ok := e.mobs.Get(ev.MobID); ok {
				e.gmcpRoom(ev.RoomID, 0, GmcpRoomUpdateMob, roomMobPayload(m))
			}
			e.sendPrompt(ev.SID)
		case combat.MobHit:
			for _, name := range ev.Shattered {
				e.sendText(ev.SID, fmt.Sprintf("Your %s shatters!", name))
			}
			e.sendText(ev.SID, fmt.Sprintf("%s hits you for %d damage.", capFirst(ev.MobName), ev.Damage))
			if st, ok := e.players.Get(ev.SID); ok {
				e.broadcastRoom(ev.RoomID, ev.SID, fmt.Sprintf("%s hits %s.", capFirst(ev.MobName), st.Name))
			}
			e.sendVitals(ev.SID)
			e.sendPrompt(ev.SID)
		case combat.MobKilled:
			e.renderMobKilled(now, ev)
		case combat.PlayerDied:
			e.renderPlayerDied(ev)
		}
	}
}

func (e *Engine) renderMobKilled(now time.Time, ev combat.Event) {
	e.sendText(ev.SID, fmt.Sprintf("%s is dead!", capFirst(ev.MobName)))
	e.broadcastRoom(ev.RoomID, ev.SID, fmt.Sprintf("%s is dead!", capFirst(ev.MobName)))
	e.gmcpRoom(ev.RoomID, 0, GmcpRoomRemoveMob, RoomMobPayload{ID: string(ev.MobID), Name: ev.MobName})
	if ev.XP > 0 {
		e.sendText(ev.SID, fmt.Sprintf("You gain %d experience.", ev.XP))
	}
	if ev.Gold > 0 {
		e.sendText(ev.SID, fmt.Sprintf("You loot %d gold from the corpse.", ev.Gold))
	}
	for _, drop := range ev.Drops {
		e.broadcastRoom(ev.RoomID, 0, fmt.Sprintf("%s falls to the ground.", capFirst(drop.Item.DisplayName)))
	}
	if len(ev.Drops) > 0 {
		e.gmcpRoom(ev.RoomID, 0, GmcpRoomItems, itemPayloads(e.items.RoomItems(ev.RoomID)))
	}

	st, ok := e.players.Get(ev.SID)
	if ok && st.Playing() {
		e.creditQuestKill(st, ev.MobID)
		e.applyLevelUps(now, st)
		e.sendVitals(ev.SID)
		e.sendPrompt(ev.SID)
	}
	e.scheduleRespawn(now, ev.MobID)
	e.dialogue.OnMobRemoved(ev.MobID)
	e.behavior.OnMobRemoved(ev.MobID)
}

func (e *Engine) renderPlayerDied(ev combat.Event) {
	sid := ev.SID
	st, ok := e.players.Get(sid)
	if !ok {
		return
	}
	e.sendText(sid, "You have died!")
	e.broadcastRoom(ev.RoomID, sid, fmt.Sprintf("%s collapses and vanishes.", st.Name))
	e.gmcpRoom(ev.RoomID, sid, GmcpRoomRemovePlayer, RoomPlayerPayload{Name: st.Name})

	e.dialogue.OnPlayerMoved(sid)
	if _, err := e.players.MoveTo(sid, ev.RespawnRoom); err != nil {
		e.logger.Warn("respawn move failed", zap.Error(err))
		return
	}
	e.broadcastRoom(ev.RespawnRoom, sid, fmt.Sprintf("%s appears in a flash of light.", st.Name))
	e.gmcpRoom(ev.RespawnRoom, sid, GmcpRoomAddPlayer, RoomPlayerPayload{Name: st.Name})
	e.sendText(sid, "You awaken, restored.")
	e.sendVitals(sid)
	e.sendLook(st)
	e.sendPrompt(sid)
}

// creditQuestKill advances the player's kill quests targeting the mob.
func (e *Engine) creditQuestKill(st *player.State, mobID id.MobID) {
	for _, q := range e.world.Quests {
		kills, active := st.ActiveQuests[q.ID]
		if !active || q.TargetMobID != mobID {
			continue
		}
		kills++
		if kills < q.RequiredKills {
			st.ActiveQuests[q.ID] = kills
			e.sendText(st.SessionID, fmt.Sprintf("Quest \"%s\": %d/%d kills.", q.Name, kills, q.RequiredKills))
			continue
		}
		delete(st.ActiveQuests, q.ID)
		st.CompletedQuests[q.ID] = true
		st.XPTotal += q.XPReward
		st.Gold += q.GoldReward
		e.sendText(st.SessionID, fmt.Sprintf("You have completed the quest \"%s\"!", q.Name))
		if q.XPReward > 0 {
			e.sendText(st.SessionID, fmt.Sprintf("You gain %d experience.", q.XPReward))
		}
		if q.GoldReward > 0 {
			e.sendText(st.SessionID, fmt.Sprintf("You receive %d gold.", q.GoldReward))
		}
	}
}

// applyLevelUps raises the player to match earned XP and saves on gain.
func (e *Engine) applyLevelUps(now time.Time, st *player.State) {
	rewards := progression.ApplyLevelUps(st.Level, st.XPTotal, st.Class)
	if len(rewards) == 0 {
		return
	}
	sid := st.SessionID
	for _, r := range rewards {
		st.Level = r.NewLevel
		addStatPoint(&st.Stats, r.StatPoint)
		e.sendInfo(sid, fmt.Sprintf("You are now level %d!", r.NewLevel))
	}
	_, _, bonuses := e.items.EquipmentBonuses(sid)
	st.RecomputeVitals(bonuses)
	for _, def := range e.abilities.Sync(sid, st.Level, st.Class.Name) {
		e.sendInfo(sid, fmt.Sprintf("You have learned %s.", def.DisplayName))
	}
	e.sendSkills(sid)
	e.sendVitals(sid)
	e.save(now, st)
}

// scheduleRespawn queues a dead mob's return when its spawn allows it.
func (e *Engine) scheduleRespawn(now time.Time, mobID id.MobID) {
	sp, ok := e.spawnByMob[mobID]
	if !ok || sp.RespawnSeconds <= 0 {
		return
	}
	delay := time.Duration(sp.RespawnSeconds) * time.Second
	e.sched.ScheduleIn(now, delay, "respawn "+string(mobID), func() error {
		if _, live := e.mobs.Get(mobID); live {
			return nil
		}
		m := mob.FromSpawn(sp)
		if err := e.mobs.Upsert(m); err != nil {
			return err
		}
		e.broadcastRoom(m.RoomID, 0, fmt.Sprintf("%s arrives.", capFirst(m.Name)))
		e.gmcpRoom(m.RoomID, 0, GmcpRoomAddMob, roomMobPayload(m))
		return nil
	})
}

// tickZones expires and resets zones whose lifespan has elapsed.
func (e *Engine) tickZones(now time.Time) {
	if len(e.zoneExpiry) == 0 {
		return
	}
	zones := make([]string, 0, len(e.zoneExpiry))
	for zone := range e.zoneExpiry {
		zones = append(zones, zone)
	}
	sort.Strings(zones)
	for _, zone := range zones {
		if now.Before(e.zoneExpiry[zone]) {
			continue
		}
		e.resetZone(zone)
		e.zoneExpiry[zone] = now.Add(e.world.ZoneLifespans[zone])
	}
}

// resetZone despawns and respawns the zone's mobs and floor items.
// Player inventories and equipment are untouched.
func (e *Engine) resetZone(zone string) {
	var removed []id.MobID
	for _, m := range e.mobs.All() {
		if m.ID.Zone() == zone {
			removed = append(removed, m.ID)
		}
	}
	for _, mobID := range removed {
		e.combat.OnMobRemoved(mobID)
		e.effects.OnMobRemoved(mobID)
		e.dialogue.OnMobRemoved(mobID)
		e.behavior.OnMobRemoved(mobID)
	}
	e.mobs.ResetZone(zone, e.world.SpawnsInZone(zone))

	spawnRoom := make(map[id.RoomID][]item.Instance)
	spawnMob := make(map[id.MobID][]item.Instance)
	for _, sp := range e.world.ItemSpawnsInZone(zone) {
		if sp.RoomID != "" {
			spawnRoom[sp.RoomID] = append(spawnRoom[sp.RoomID], sp.Instance)
		} else if sp.MobID != "" {
			spawnMob[sp.MobID] = append(spawnMob[sp.MobID], sp.Instance)
		}
	}
	mobIDs := make([]id.MobID, 0, len(removed))
	for _, sp := range e.world.SpawnsInZone(zone) {
		mobIDs = append(mobIDs, sp.ID)
	}
	e.items.ResetZone(zone, e.world.RoomsInZone(zone), mobIDs, spawnRoom, spawnMob)

	for _, roomID := range e.world.RoomsInZone(zone) {
		for _, st := range e.players.InRoom(roomID) {
			e.sendInfo(st.SessionID, "The world shifts and renews around you.")
			e.sendLook(st)
			e.sendPrompt(st.SessionID)
		}
	}
	e.metrics.IncCounter("engine.zone_resets", 1)
	e.logger.Info("zone reset", zap.String("zone", zone))
}

// announceHour tells outdoor players that game time moved.
func (e *Engine) announceHour() {
	hour := e.calendar.Hour()
	for _, st := range e.players.Playing() {
		room, ok := e.world.Room(st.RoomID)
		if !ok || !room.Outdoor {
			continue
		}
		if flavor := FlavorText(hour.Period(), true); flavor != "" {
			e.sendInfo(st.SessionID, flavor)
		}
	}
}

// Outbound helpers.

func (e *Engine) sendText(sid id.SessionID, text string) {
	e.outbound.Publish(event.SendText{SessionID: sid, Text: text})
}

func (e *Engine) sendInfo(sid id.SessionID, text string) {
	e.outbound.Publish(event.SendInfo{SessionID: sid, Text: text})
}

func (e *Engine) sendGmcp(sid id.SessionID, pkg string, payload any) {
	e.outbound.Publish(event.SendGmcp{SessionID: sid, Package: pkg, Payload: payload})
}

func (e *Engine) sendPrompt(sid id.SessionID) {
	e.outbound.Publish(event.SendPrompt{SessionID: sid})
}

func (e *Engine) sendVitals(sid id.SessionID) {
	if st, ok := e.players.Get(sid); ok {
		e.sendGmcp(sid, GmcpCharVitals, charVitalsPayload(st))
	}
}

func (e *Engine) sendSkills(sid id.SessionID) {
	known := e.abilities.Known(sid)
	skills := make([]SkillPayload, 0, len(known))
	for _, def := range known {
		skills = append(skills, SkillPayload{ID: def.ID, Name: def.DisplayName, ManaCost: def.ManaCost})
	}
	e.sendGmcp(sid, GmcpCharSkills, skills)
}

// broadcastRoom sends text to every playing session in the room except
// exclude (0 excludes nobody).
func (e *Engine) broadcastRoom(roomID id.RoomID, exclude id.SessionID, text string) {
	for _, st := range e.players.InRoom(roomID) {
		if st.SessionID == exclude {
			continue
		}
		e.sendText(st.SessionID, text)
	}
}

// gmcpRoom sends one GMCP packet to every playing session in the room
// except exclude.
func (e *Engine) gmcpRoom(roomID id.RoomID, exclude id.SessionID, pkg string, payload any) {
	for _, st := range e.players.InRoom(roomID) {
		if st.SessionID == exclude {
			continue
		}
		e.sendGmcp(st.SessionID, pkg, payload)
	}
}
