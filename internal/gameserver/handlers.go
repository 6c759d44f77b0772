package gameserver

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/ability"
	"github.com/ambonmud/server/internal/game/ansi"
	"github.com/ambonmud/server/internal/game/command"
	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/mob"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/progression"
	"github.com/ambonmud/server/internal/game/stat"
	"github.com/ambonmud/server/internal/game/world"
)

const unknownCommand = "Huh? Type 'help' to see what you can do."

// dispatchCommand parses one line from a playing session and runs the
// matching handler. User errors become plain text lines, never log entries.
func (e *Engine) dispatchCommand(now time.Time, st *player.State, line string) {
	sid := st.SessionID
	line = strings.TrimSpace(line)
	if line == "" {
		e.sendPrompt(sid)
		return
	}

	// Numeric input answers an active conversation.
	if e.dialogue.Active(sid) && isDigits(line) {
		res := e.dialogue.Choose(st, line)
		for _, l := range res.Lines {
			e.sendText(sid, l)
		}
		if res.AcceptQuest != "" {
			e.acceptQuest(st, res.AcceptQuest)
		}
		e.sendPrompt(sid)
		return
	}

	parsed := command.Parse(line)
	cmd, ok := e.commands.Resolve(parsed.Command)
	if !ok || (cmd.Staff && !st.IsStaff) {
		e.sendText(sid, unknownCommand)
		e.sendPrompt(sid)
		return
	}

	switch cmd.Handler {
	case command.HandlerMove:
		e.handleMove(now, st, cmd.Name)
	case command.HandlerLook:
		e.sendLook(st)
	case command.HandlerExits:
		e.handleExits(st)
	case command.HandlerSay:
		e.handleSay(st, parsed.RawArgs)
	case command.HandlerGossip:
		e.handleGossip(st, parsed.RawArgs)
	case command.HandlerTell:
		e.handleTell(st, parsed)
	case command.HandlerEmote:
		e.handleEmote(st, parsed.RawArgs)
	case command.HandlerWho:
		e.handleWho(st)
	case command.HandlerScore:
		e.handleScore(st)
	case command.HandlerQuit:
		e.handleQuit(now, st)
		return
	case command.HandlerHelp:
		e.handleHelp(st, parsed.Args)
	case command.HandlerKill:
		e.handleKill(now, st, parsed.RawArgs)
	case command.HandlerFlee:
		e.handleFlee(now, st)
	case command.HandlerCast:
		e.handleCast(now, st, parsed.Args)
	case command.HandlerAbilities:
		e.handleAbilities(now, st)
	case command.HandlerInventory:
		e.handleInventory(st)
	case command.HandlerGet:
		e.handleGet(st, parsed.RawArgs)
	case command.HandlerDrop:
		e.handleDrop(st, parsed.RawArgs)
	case command.HandlerWear:
		e.handleWear(st, parsed.RawArgs)
	case command.HandlerRemove:
		e.handleRemove(st, parsed.RawArgs)
	case command.HandlerUse:
		e.handleUse(now, st, parsed.RawArgs)
	case command.HandlerGive:
		e.handleGive(st, parsed.Args)
	case command.HandlerEquipment:
		e.handleEquipment(st)
	case command.HandlerTalk:
		e.handleTalk(st, parsed.RawArgs)
	case command.HandlerQuests:
		e.handleQuests(st)
	case command.HandlerList:
		e.handleList(st)
	case command.HandlerBuy:
		e.handleBuy(st, parsed.RawArgs)
	case command.HandlerSell:
		e.handleSell(st, parsed.RawArgs)
	case command.HandlerAnsi:
		e.handleAnsi(st)
	case command.HandlerGoto:
		e.handleGoto(st, parsed.RawArgs)
	default:
		e.sendText(sid, unknownCommand)
	}
	e.sendPrompt(sid)
}

func (e *Engine) handleMove(now time.Time, st *player.State, dirName string) {
	sid := st.SessionID
	dir, _ := world.ParseDirection(dirName)
	room, ok := e.world.Room(st.RoomID)
	if !ok {
		e.sendText(sid, "You are nowhere at all.")
		return
	}
	if e.combat.InCombat(sid) {
		e.sendText(sid, "You are in the middle of a fight! Try 'flee'.")
		return
	}
	if room.RemoteExits[dir] {
		e.sendText(sid, "That way lies beyond the known world.")
		return
	}
	dest, ok := room.Exits[dir]
	if !ok {
		e.sendText(sid, "You cannot go that way.")
		return
	}
	e.moveTo(st, dest, fmt.Sprintf("%s leaves %s.", st.Name, dir), fmt.Sprintf("%s arrives.", st.Name))
}

// moveTo relocates a player with room announcements and GMCP updates.
func (e *Engine) moveTo(st *player.State, dest id.RoomID, leaveMsg, arriveMsg string) {
	sid := st.SessionID
	e.dialogue.OnPlayerMoved(sid)
	old, err := e.players.MoveTo(sid, dest)
	if err != nil {
		e.logger.Warn("move failed", zap.Error(err))
		return
	}
	e.broadcastRoom(old, sid, leaveMsg)
	e.gmcpRoom(old, sid, GmcpRoomRemovePlayer, RoomPlayerPayload{Name: st.Name})
	e.broadcastRoom(dest, sid, arriveMsg)
	e.gmcpRoom(dest, sid, GmcpRoomAddPlayer, RoomPlayerPayload{Name: st.Name})
	e.sendLook(st)
}

// sendLook renders the player's room with its GMCP companions.
func (e *Engine) sendLook(st *player.State) {
	sid := st.SessionID
	room, ok := e.world.Room(st.RoomID)
	if !ok {
		e.sendText(sid, "You float in a featureless void.")
		return
	}

	e.sendText(sid, ansi.Wrap(st.ANSIEnabled, ansi.Bold, room.Title))
	e.sendText(sid, room.Description)
	if flavor := FlavorText(e.calendar.Hour().Period(), room.Outdoor); flavor != "" {
		e.sendText(sid, flavor)
	}

	exits := make([]string, 0, len(room.Exits))
	for _, dir := range world.AllDirections {
		if _, open := room.Exits[dir]; open {
			exits = append(exits, string(dir))
		}
	}
	for _, dir := range world.AllDirections {
		if room.RemoteExits[dir] {
			exits = append(exits, string(dir))
		}
	}
	if len(exits) == 0 {
		e.sendText(sid, "There are no obvious exits.")
	} else {
		e.sendText(sid, ansi.Wrap(st.ANSIEnabled, ansi.Cyan, "Exits: "+strings.Join(exits, ", ")))
	}

	floor := e.items.RoomItems(st.RoomID)
	for _, inst := range floor {
		e.sendText(sid, fmt.Sprintf("%s lies here.", capFirst(inst.Item.DisplayName)))
	}
	mobs := e.mobs.InRoom(st.RoomID)
	for _, m := range mobs {
		e.sendText(sid, fmt.Sprintf("%s is here.", capFirst(m.Name)))
	}
	others := e.players.InRoom(st.RoomID)
	for _, other := range others {
		if other.SessionID != sid {
			e.sendText(sid, fmt.Sprintf("%s is standing here.", other.Name))
		}
	}

	e.sendGmcp(sid, GmcpRoomInfo, roomInfoPayload(room))
	e.sendGmcp(sid, GmcpRoomItems, itemPayloads(floor))
	e.sendGmcp(sid, GmcpRoomMobs, roomMobPayloads(mobs))
	e.sendGmcp(sid, GmcpRoomPlayers, roomPlayerPayloads(others, sid))
}

func (e *Engine) handleExits(st *player.State) {
	room, ok := e.world.Room(st.RoomID)
	if !ok {
		return
	}
	var lines []string
	for _, dir := range world.AllDirections {
		if dest, open := room.Exits[dir]; open {
			if target, ok := e.world.Room(dest); ok {
				lines = append(lines, fmt.Sprintf("  %-5s - %s", dir, target.Title))
			}
		}
	}
	for _, dir := range world.AllDirections {
		if room.RemoteExits[dir] {
			lines = append(lines, fmt.Sprintf("  %-5s - (somewhere far away)", dir))
		}
	}
	if len(lines) == 0 {
		e.sendText(st.SessionID, "There are no obvious exits.")
		return
	}
	e.sendText(st.SessionID, "Obvious exits:")
	for _, l := range lines {
		e.sendText(st.SessionID, l)
	}
}

func (e *Engine) handleSay(st *player.State, text string) {
	sid := st.SessionID
	if text == "" {
		e.sendText(sid, "Say what?")
		return
	}
	e.sendText(sid, fmt.Sprintf("You say, '%s'", text))
	e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s says, '%s'", st.Name, text))
	e.gmcpRoom(st.RoomID, 0, GmcpCommChannel, CommChannelPayload{Channel: "say", Sender: st.Name, Text: text})
}

func (e *Engine) handleGossip(st *player.State, text string) {
	sid := st.SessionID
	if text == "" {
		e.sendText(sid, "Gossip what?")
		return
	}
	for _, other := range e.players.Playing() {
		if other.SessionID == sid {
			e.sendText(sid, fmt.Sprintf("You gossip, '%s'", text))
		} else {
			e.sendText(other.SessionID, fmt.Sprintf("%s gossips, '%s'", st.Name, text))
			e.sendPrompt(other.SessionID)
		}
		e.sendGmcp(other.SessionID, GmcpCommChannel, CommChannelPayload{Channel: "gossip", Sender: st.Name, Text: text})
	}
}

func (e *Engine) handleTell(st *player.State, parsed command.ParseResult) {
	sid := st.SessionID
	if len(parsed.Args) < 2 {
		e.sendText(sid, "Tell whom what?")
		return
	}
	target, ok := e.players.GetByName(parsed.Args[0])
	if !ok || !target.Playing() {
		e.sendText(sid, "They are not here.")
		return
	}
	if target.SessionID == sid {
		e.sendText(sid, "You mutter to yourself.")
		return
	}
	text := strings.TrimSpace(strings.TrimPrefix(parsed.RawArgs, parsed.Args[0]))
	e.sendText(sid, fmt.Sprintf("You tell %s, '%s'", target.Name, text))
	e.sendText(target.SessionID, fmt.Sprintf("%s tells you, '%s'", st.Name, text))
	e.sendGmcp(target.SessionID, GmcpCommChannel, CommChannelPayload{Channel: "tell", Sender: st.Name, Text: text})
	e.sendPrompt(target.SessionID)
}

func (e *Engine) handleEmote(st *player.State, text string) {
	sid := st.SessionID
	if text == "" {
		e.sendText(sid, "Emote what?")
		return
	}
	line := fmt.Sprintf("%s %s", st.Name, text)
	e.sendText(sid, line)
	e.broadcastRoom(st.RoomID, sid, line)
}

func (e *Engine) handleWho(st *player.State) {
	sid := st.SessionID
	playing := e.players.Playing()
	e.sendText(sid, "Adventurers in the world:")
	for _, p := range playing {
		title := p.Title
		if title == "" {
			title = fmt.Sprintf("the %s", p.Class.Name)
		}
		e.sendText(sid, fmt.Sprintf("  [%2d %s] %s %s", p.Level, p.Class.Name[:3], p.Name, title))
	}
	e.sendText(sid, fmt.Sprintf("%d adventurer(s) online.", len(playing)))
}

func (e *Engine) handleScore(st *player.State) {
	sid := st.SessionID
	_, armor, bonuses := e.items.EquipmentBonuses(sid)
	mods := e.effects.StatMods(effect.PlayerTarget(sid))
	eff := st.Stats.Add(bonuses).Add(mods)

	e.sendText(sid, fmt.Sprintf("You are %s, level %d %s %s.", st.Name, st.Level, st.Race.Name, st.Class.Name))
	if st.Title != "" {
		e.sendText(sid, fmt.Sprintf("Title: %s", st.Title))
	}
	e.sendText(sid, fmt.Sprintf("HP: %d/%d  Mana: %d/%d  Armor: %d", st.HP, st.MaxHP, st.Mana, st.MaxMana, armor))
	e.sendText(sid, fmt.Sprintf("Str %d  Dex %d  Con %d  Int %d  Wis %d  Cha %d",
		eff.Strength, eff.Dexterity, eff.Constitution, eff.Intelligence, eff.Wisdom, eff.Charisma))
	next := progression.XPForLevel(st.Level + 1)
	if st.Level >= progression.MaxLevel {
		e.sendText(sid, fmt.Sprintf("XP: %d (you can advance no further)", st.XPTotal))
	} else {
		e.sendText(sid, fmt.Sprintf("XP: %d (%d to next level)", st.XPTotal, next-st.XPTotal))
	}
	e.sendText(sid, fmt.Sprintf("Gold: %d", st.Gold))
	if names := e.effects.ActiveNames(effect.PlayerTarget(sid)); len(names) > 0 {
		e.sendText(sid, "Affected by: "+strings.Join(names, ", "))
	}
	e.sendGmcp(sid, GmcpCharStatusEffects, statusEffectPayload(e.effects, sid))
}

func (e *Engine) handleQuit(now time.Time, st *player.State) {
	sid := st.SessionID
	e.save(now, st)
	e.sendText(sid, "Farewell, "+st.Name+".")
	e.outbound.Publish(event.Close{SessionID: sid, Reason: event.ReasonQuit})
}

func (e *Engine) handleHelp(st *player.State, args []string) {
	sid := st.SessionID
	if len(args) > 0 {
		cmd, ok := e.commands.Resolve(strings.ToLower(args[0]))
		if !ok || (cmd.Staff && !st.IsStaff) {
			e.sendText(sid, "No help for that.")
			return
		}
		e.sendText(sid, fmt.Sprintf("%s - %s", cmd.Name, cmd.Help))
		if len(cmd.Aliases) > 0 {
			e.sendText(sid, "Aliases: "+strings.Join(cmd.Aliases, ", "))
		}
		return
	}

	cats := e.commands.CommandsByCategory()
	names := make([]string, 0, len(cats))
	for cat := range cats {
		names = append(names, cat)
	}
	sort.Strings(names)
	for _, cat := range names {
		var visible []string
		for _, cmd := range cats[cat] {
			if cmd.Staff && !st.IsStaff {
				continue
			}
			visible = append(visible, cmd.Name)
		}
		if len(visible) == 0 {
			continue
		}
		e.sendText(sid, fmt.Sprintf("%s: %s", capFirst(cat), strings.Join(visible, ", ")))
	}
	e.sendText(sid, "Type 'help <command>' for details.")
}

func (e *Engine) handleKill(now time.Time, st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Kill what?")
		return
	}
	m, ok := e.mobs.FindInRoom(st.RoomID, target)
	if !ok {
		e.sendText(sid, "You do not see that here.")
		return
	}
	if err := e.combat.Engage(now, sid, m.ID); err != nil {
		e.sendText(sid, "You do not see that here.")
		return
	}
	e.sendText(sid, fmt.Sprintf("You attack %s!", m.Name))
	e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s attacks %s!", st.Name, m.Name))
}

func (e *Engine) handleFlee(now time.Time, st *player.State) {
	sid := st.SessionID
	if _, fighting := e.combat.Disengage(sid); !fighting {
		e.sendText(sid, "You are not fighting anyone.")
		return
	}
	room, ok := e.world.Room(st.RoomID)
	if !ok {
		return
	}
	var open []world.Direction
	for _, dir := range world.AllDirections {
		if _, exit := room.Exits[dir]; exit {
			open = append(open, dir)
		}
	}
	if len(open) == 0 {
		e.sendText(sid, "There is nowhere to run!")
		return
	}
	dir := open[e.rng.Intn(len(open))]
	e.sendText(sid, fmt.Sprintf("You flee %s!", dir))
	e.moveTo(st, room.Exits[dir], fmt.Sprintf("%s flees %s!", st.Name, dir), fmt.Sprintf("%s arrives, panting.", st.Name))
}

func (e *Engine) handleCast(now time.Time, st *player.State, args []string) {
	sid := st.SessionID
	if len(args) == 0 {
		e.sendText(sid, "Cast what?")
		return
	}
	def, ok := e.abilities.Resolve(sid, args[0])
	if !ok {
		e.sendText(sid, "You do not know that spell.")
		return
	}
	switch e.abilities.Gate(now, sid, def, st.Mana) {
	case ability.CastNoMana:
		e.sendText(sid, "You do not have enough mana.")
		return
	case ability.CastOnCooldown:
		remaining := e.abilities.CooldownRemaining(now, sid, def)
		e.sendText(sid, fmt.Sprintf("%s is not ready yet (%.1fs).", def.DisplayName, remaining.Seconds()))
		return
	}

	var target *mob.Mob
	if def.Target == ability.TargetEnemy {
		if len(args) > 1 {
			target, ok = e.mobs.FindInRoom(st.RoomID, args[1])
			if !ok {
				e.sendText(sid, "You do not see that here.")
				return
			}
		} else if mobID, fighting := e.combat.TargetOf(sid); fighting {
			target, _ = e.mobs.Get(mobID)
		}
		if target == nil {
			e.sendText(sid, "Cast it at what?")
			return
		}
	}

	commit := func() {
		st.Mana -= def.ManaCost
		e.abilities.Commit(now, sid, def)
	}

	switch def.Effect {
	case ability.DirectDamage:
		commit()
		target.HP -= def.Amount
		if target.HP < 0 {
			target.HP = 0
		}
		e.sendText(sid, fmt.Sprintf("Your %s hits %s for %d damage.", def.DisplayName, target.Name, def.Amount))
		e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s's %s hits %s.", st.Name, def.DisplayName, target.Name))
		e.gmcpRoom(st.RoomID, 0, GmcpRoomUpdateMob, roomMobPayload(target))
		if target.HP <= 0 {
			e.renderCombatEvents(now, e.combat.KillMob(target.ID, sid, false))
		} else if current, fighting := e.combat.TargetOf(sid); !fighting || current != target.ID {
			if err := e.combat.Engage(now, sid, target.ID); err != nil {
				e.logger.Warn("cast engage failed", zap.Error(err))
			}
		}

	case ability.DirectHeal:
		commit()
		healed := def.Amount
		if st.HP+healed > st.MaxHP {
			healed = st.MaxHP - st.HP
		}
		st.HP += healed
		e.sendText(sid, fmt.Sprintf("Your %s heals you for %d.", def.DisplayName, healed))
		e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s glows briefly with soft light.", st.Name))

	case ability.ApplyStatus:
		var tgt effect.Target
		var targetName string
		if def.Target == ability.TargetSelf {
			tgt = effect.PlayerTarget(sid)
			targetName = "yourself"
		} else {
			tgt = effect.MobTarget(target.ID)
			targetName = target.Name
		}
		outcome := e.effects.Apply(now, tgt, def.StatusID, sid)
		if outcome == effect.UnknownEffect {
			e.logger.Warn("ability references unknown status",
				zap.String("ability", def.ID), zap.String("status", def.StatusID))
			e.sendText(sid, "Nothing happens.")
			return
		}
		if outcome == effect.AlreadyActive {
			e.sendText(sid, fmt.Sprintf("%s is already affected.", capFirst(targetName)))
			return
		}
		commit()
		e.sendText(sid, fmt.Sprintf("You cast %s on %s.", def.DisplayName, targetName))
		if def.Target == ability.TargetEnemy {
			if current, fighting := e.combat.TargetOf(sid); !fighting || current != target.ID {
				if err := e.combat.Engage(now, sid, target.ID); err != nil {
					e.logger.Warn("cast engage failed", zap.Error(err))
				}
			}
		} else {
			e.sendGmcp(sid, GmcpCharStatusEffects, statusEffectPayload(e.effects, sid))
		}

	case ability.AreaDamage:
		if !e.combat.InCombat(sid) {
			e.sendText(sid, "You are not fighting anyone.")
			return
		}
		commit()
		for _, m := range e.mobs.InRoom(st.RoomID) {
			engaged := false
			for _, fighter := range e.combat.EngagedWith(m.ID) {
				if fighter == sid {
					engaged = true
					break
				}
			}
			if !engaged {
				continue
			}
			m.HP -= def.Amount
			if m.HP < 0 {
				m.HP = 0
			}
			e.sendText(sid, fmt.Sprintf("Your %s hits %s for %d damage.", def.DisplayName, m.Name, def.Amount))
			e.gmcpRoom(st.RoomID, 0, GmcpRoomUpdateMob, roomMobPayload(m))
			if m.HP <= 0 {
				e.renderCombatEvents(now, e.combat.KillMob(m.ID, sid, false))
			}
		}
		e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s unleashes %s!", st.Name, def.DisplayName))

	case ability.Taunt:
		if !e.combat.Taunt(sid) {
			e.sendText(sid, "You are not fighting anyone.")
			return
		}
		commit()
		mobID, _ := e.combat.TargetOf(sid)
		name := "your foe"
		if m, ok := e.mobs.Get(mobID); ok {
			name = m.Name
		}
		e.sendText(sid, fmt.Sprintf("You taunt %s into attacking you!", name))
		e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s shouts a challenge!", st.Name))
	}
	e.sendVitals(sid)
}

func (e *Engine) handleAbilities(now time.Time, st *player.State) {
	sid := st.SessionID
	known := e.abilities.Known(sid)
	if len(known) == 0 {
		e.sendText(sid, "You know no abilities yet.")
		return
	}
	e.sendText(sid, "You know:")
	for _, def := range known {
		line := fmt.Sprintf("  %-20s %d mana", def.DisplayName, def.ManaCost)
		if remaining := e.abilities.CooldownRemaining(now, sid, def); remaining > 0 {
			line += fmt.Sprintf(" (ready in %.1fs)", remaining.Seconds())
		}
		e.sendText(sid, line)
	}
	e.sendSkills(sid)
}

func (e *Engine) handleInventory(st *player.State) {
	sid := st.SessionID
	inv := e.items.Inventory(sid)
	if len(inv) == 0 {
		e.sendText(sid, "You are carrying nothing.")
		return
	}
	e.sendText(sid, "You are carrying:")
	for _, inst := range inv {
		e.sendText(sid, "  "+inst.Item.DisplayName)
	}
	e.sendGmcp(sid, GmcpCharItemsList, itemPayloads(inv))
}

func (e *Engine) handleGet(st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Get what?")
		return
	}
	if strings.EqualFold(target, "all") {
		taken := e.items.TakeAllFromRoom(sid, st.RoomID)
		if len(taken) == 0 {
			e.sendText(sid, "There is nothing here to take.")
			return
		}
		for _, inst := range taken {
			e.sendText(sid, fmt.Sprintf("You pick up %s.", inst.Item.DisplayName))
			e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s picks up %s.", st.Name, inst.Item.DisplayName))
			e.sendGmcp(sid, GmcpCharItemsAdd, ItemPayload{ID: string(inst.ID), Name: inst.Item.DisplayName})
		}
		e.gmcpRoom(st.RoomID, 0, GmcpRoomItems, itemPayloads(e.items.RoomItems(st.RoomID)))
		return
	}
	inst, ok := e.items.TakeFromRoom(sid, st.RoomID, target)
	if !ok {
		e.sendText(sid, "You do not see that here.")
		return
	}
	e.sendText(sid, fmt.Sprintf("You pick up %s.", inst.Item.DisplayName))
	e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s picks up %s.", st.Name, inst.Item.DisplayName))
	e.sendGmcp(sid, GmcpCharItemsAdd, ItemPayload{ID: string(inst.ID), Name: inst.Item.DisplayName})
	e.gmcpRoom(st.RoomID, 0, GmcpRoomItems, itemPayloads(e.items.RoomItems(st.RoomID)))
}

func (e *Engine) handleDrop(st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Drop what?")
		return
	}
	inst, ok := e.items.DropToRoom(sid, st.RoomID, target)
	if !ok {
		e.sendText(sid, "You are not carrying that.")
		return
	}
	e.sendText(sid, fmt.Sprintf("You drop %s.", inst.Item.DisplayName))
	e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s drops %s.", st.Name, inst.Item.DisplayName))
	e.sendGmcp(sid, GmcpCharItemsRemove, ItemPayload{ID: string(inst.ID), Name: inst.Item.DisplayName})
	e.gmcpRoom(st.RoomID, 0, GmcpRoomItems, itemPayloads(e.items.RoomItems(st.RoomID)))
}

func (e *Engine) handleWear(st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Wear what?")
		return
	}
	res := e.items.Equip(sid, target)
	switch res.Outcome {
	case item.Equipped:
		verb := "wear"
		if res.Slot == item.SlotHand {
			verb = "wield"
		}
		e.sendText(sid, fmt.Sprintf("You %s %s.", verb, res.Item.Item.DisplayName))
		e.broadcastRoom(st.RoomID, sid, fmt.Sprintf("%s equips %s.", st.Name, res.Item.Item.DisplayName))
		_, _, bonuses := e.items.EquipmentBonuses(sid)
		st.RecomputeVitals(bonuses)
		e.sendVitals(sid)
	case item.EquipNotFound:
		e.sendText(sid, "You are not carrying that.")
	case item.NotWearable:
		e.sendText(sid, fmt.Sprintf("You cannot wear %s.", res.Item.Item.DisplayName))
	case item.SlotOccupied:
		e.sendText(sid, fmt.Sprintf("You are already using %s there.", res.Blocking.Item.DisplayName))
	}
}

func (e *Engine) handleRemove(st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Remove what?")
		return
	}
	inst, ok := e.items.Unequip(sid, target)
	if !ok {
		e.sendText(sid, "You are not wearing that.")
		return
	}
	e.sendText(sid, fmt.Sprintf("You remove %s.", inst.Item.DisplayName))
	_, _, bonuses := e.items.EquipmentBonuses(sid)
	st.RecomputeVitals(bonuses)
	e.sendVitals(sid)
}

func (e *Engine) handleUse(now time.Time, st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Use what?")
		return
	}
	res := e.items.Use(sid, target)
	switch res.Outcome {
	case item.Used:
		e.sendText(sid, fmt.Sprintf("You use %s.", res.Item.Item.DisplayName))
		if res.Effect.HealHP > 0 {
			healed := res.Effect.HealHP
			if st.HP+healed > st.MaxHP {
				healed = st.MaxHP - st.HP
			}
			st.HP += healed
			e.sendText(sid, fmt.Sprintf("You feel better (%d HP).", healed))
		}
		if res.Effect.GrantXP > 0 {
			st.XPTotal += res.Effect.GrantXP
			e.sendText(sid, fmt.Sprintf("You gain %d experience.", res.Effect.GrantXP))
			e.applyLevelUps(now, st)
		}
		if res.Consumed {
			e.sendText(sid, fmt.Sprintf("%s crumbles to dust.", capFirst(res.Item.Item.DisplayName)))
			e.sendGmcp(sid, GmcpCharItemsRemove, ItemPayload{ID: string(res.Item.ID), Name: res.Item.Item.DisplayName})
		}
		e.sendVitals(sid)
	case item.UseNotFound:
		e.sendText(sid, "You are not carrying that.")
	case item.NotUsable:
		e.sendText(sid, fmt.Sprintf("You cannot use %s.", res.Item.Item.DisplayName))
	}
}

func (e *Engine) handleGive(st *player.State, args []string) {
	sid := st.SessionID
	if len(args) < 2 {
		e.sendText(sid, "Give what to whom?")
		return
	}
	target, ok := e.players.GetByName(args[1])
	if !ok || !target.Playing() || target.RoomID != st.RoomID {
		e.sendText(sid, "They are not here.")
		return
	}
	if target.SessionID == sid {
		e.sendText(sid, "You already have it.")
		return
	}
	res := e.items.Give(sid, target.SessionID, args[0])
	if res.Outcome != item.Given {
		e.sendText(sid, "You are not carrying that.")
		return
	}
	e.sendText(sid, fmt.Sprintf("You give %s to %s.", res.Item.Item.DisplayName, target.Name))
	e.sendText(target.SessionID, fmt.Sprintf("%s gives you %s.", st.Name, res.Item.Item.DisplayName))
	e.sendGmcp(sid, GmcpCharItemsRemove, ItemPayload{ID: string(res.Item.ID), Name: res.Item.Item.DisplayName})
	e.sendGmcp(target.SessionID, GmcpCharItemsAdd, ItemPayload{ID: string(res.Item.ID), Name: res.Item.Item.DisplayName})
	e.sendPrompt(target.SessionID)
}

func (e *Engine) handleEquipment(st *player.State) {
	sid := st.SessionID
	eq := e.items.Equipment(sid)
	if len(eq) == 0 {
		e.sendText(sid, "You are wearing nothing special.")
		return
	}
	e.sendText(sid, "You are using:")
	for _, slot := range item.AllSlots {
		if inst, ok := eq[slot]; ok {
			e.sendText(sid, fmt.Sprintf("  %-5s %s", strings.ToLower(string(slot))+":", inst.Item.DisplayName))
		}
	}
}

func (e *Engine) handleTalk(st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Talk to whom?")
		return
	}
	m, ok := e.mobs.FindInRoom(st.RoomID, target)
	if !ok {
		e.sendText(sid, "You do not see that here.")
		return
	}
	if m.DialogueID == "" {
		e.sendText(sid, fmt.Sprintf("%s has nothing to say.", capFirst(m.Name)))
		return
	}
	res, ok := e.dialogue.Start(st, m.ID, m.Name, m.DialogueID)
	if !ok {
		e.sendText(sid, fmt.Sprintf("%s has nothing to say.", capFirst(m.Name)))
		return
	}
	for _, l := range res.Lines {
		e.sendText(sid, l)
	}
	if res.AcceptQuest != "" {
		e.acceptQuest(st, res.AcceptQuest)
	}
}

// acceptQuest puts a quest in the player's journal after gating checks.
func (e *Engine) acceptQuest(st *player.State, questID string) {
	sid := st.SessionID
	q, ok := e.world.QuestByID(questID)
	if !ok {
		return
	}
	if st.CompletedQuests[q.ID] {
		e.sendText(sid, "You have already completed that quest.")
		return
	}
	if _, active := st.ActiveQuests[q.ID]; active {
		e.sendText(sid, "You are already on that quest.")
		return
	}
	if q.MinLevel > 0 && st.Level < q.MinLevel {
		e.sendText(sid, fmt.Sprintf("You must be level %d for that quest.", q.MinLevel))
		return
	}
	st.ActiveQuests[q.ID] = 0
	e.sendInfo(sid, fmt.Sprintf("Quest accepted: %s", q.Name))
	e.sendText(sid, q.Description)
}

func (e *Engine) handleQuests(st *player.State) {
	sid := st.SessionID
	if len(st.ActiveQuests) == 0 && len(st.CompletedQuests) == 0 {
		e.sendText(sid, "Your journal is empty.")
		return
	}
	if len(st.ActiveQuests) > 0 {
		e.sendText(sid, "Active quests:")
		ids := make([]string, 0, len(st.ActiveQuests))
		for qid := range st.ActiveQuests {
			ids = append(ids, qid)
		}
		sort.Strings(ids)
		for _, qid := range ids {
			q, ok := e.world.QuestByID(qid)
			if !ok {
				continue
			}
			e.sendText(sid, fmt.Sprintf("  %s (%d/%d kills)", q.Name, st.ActiveQuests[qid], q.RequiredKills))
		}
	}
	if n := len(st.CompletedQuests); n > 0 {
		e.sendText(sid, fmt.Sprintf("Completed quests: %d", n))
	}
}

func (e *Engine) handleList(st *player.State) {
	sid := st.SessionID
	shop, ok := e.world.ShopInRoom(st.RoomID)
	if !ok {
		e.sendText(sid, "There is no shop here.")
		return
	}
	e.sendText(sid, fmt.Sprintf("%s sells:", shop.Name))
	for _, itemID := range shop.ItemIDs {
		tmpl, ok := e.items.Template(itemID)
		if !ok {
			continue
		}
		e.sendText(sid, fmt.Sprintf("  %-25s %d gold", tmpl.Item.DisplayName, tmpl.Item.BasePrice))
	}
}

func (e *Engine) handleBuy(st *player.State, target string) {
	sid := st.SessionID
	shop, ok := e.world.ShopInRoom(st.RoomID)
	if !ok {
		e.sendText(sid, "There is no shop here.")
		return
	}
	if target == "" {
		e.sendText(sid, "Buy what?")
		return
	}
	for _, itemID := range shop.ItemIDs {
		tmpl, ok := e.items.Template(itemID)
		if !ok {
			continue
		}
		if !strings.EqualFold(tmpl.Item.Keyword, target) &&
			!strings.Contains(strings.ToLower(tmpl.Item.DisplayName), strings.ToLower(target)) {
			continue
		}
		price := tmpl.Item.BasePrice
		if st.Gold < price {
			e.sendText(sid, "You cannot afford that.")
			return
		}
		st.Gold -= price
		e.items.AddToInventory(sid, tmpl)
		e.sendText(sid, fmt.Sprintf("You buy %s for %d gold.", tmpl.Item.DisplayName, price))
		e.sendGmcp(sid, GmcpCharItemsAdd, ItemPayload{ID: string(tmpl.ID), Name: tmpl.Item.DisplayName})
		e.sendVitals(sid)
		return
	}
	e.sendText(sid, "The shop does not sell that.")
}

func (e *Engine) handleSell(st *player.State, target string) {
	sid := st.SessionID
	if _, ok := e.world.ShopInRoom(st.RoomID); !ok {
		e.sendText(sid, "There is no shop here.")
		return
	}
	if target == "" {
		e.sendText(sid, "Sell what?")
		return
	}
	inst, ok := e.items.RemoveFromInventory(sid, target)
	if !ok {
		e.sendText(sid, "You are not carrying that.")
		return
	}
	// Shops pay half the list price.
	price := inst.Item.BasePrice / 2
	st.Gold += price
	e.items.PlaceUnplaced(inst)
	e.sendText(sid, fmt.Sprintf("You sell %s for %d gold.", inst.Item.DisplayName, price))
	e.sendGmcp(sid, GmcpCharItemsRemove, ItemPayload{ID: string(inst.ID), Name: inst.Item.DisplayName})
	e.sendVitals(sid)
}

func (e *Engine) handleAnsi(st *player.State) {
	st.ANSIEnabled = !st.ANSIEnabled
	if st.ANSIEnabled {
		e.sendText(st.SessionID, "ANSI color enabled.")
	} else {
		e.sendText(st.SessionID, "ANSI color disabled.")
	}
}

func (e *Engine) handleGoto(st *player.State, target string) {
	sid := st.SessionID
	if target == "" {
		e.sendText(sid, "Goto where?")
		return
	}
	dest := id.RoomID(target)
	if _, ok := e.world.Room(dest); !ok {
		e.sendText(sid, "No such room.")
		return
	}
	e.combat.OnPlayerDisconnected(sid)
	e.moveTo(st, dest,
		fmt.Sprintf("%s vanishes in a puff of smoke.", st.Name),
		fmt.Sprintf("%s appears in a puff of smoke.", st.Name))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// capFirst upper-cases the first rune for sentence starts.
func capFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// addStatPoint applies a level-up stat point by name.
func addStatPoint(b *stat.Block, name string) {
	switch name {
	case "strength":
		b.Strength++
	case "dexterity":
		b.Dexterity++
	case "constitution":
		b.Constitution++
	case "intelligence":
		b.Intelligence++
	case "wisdom":
		b.Wisdom++
	case "charisma":
		b.Charisma++
	}
}
