// Package command provides the command registry, parser, and built-in command definitions.
package command

// Categories for organizing commands.
const (
	CategoryMovement      = "movement"
	CategoryWorld         = "world"
	CategoryCombat        = "combat"
	CategoryItems         = "items"
	CategoryCommunication = "communication"
	CategorySystem        = "system"
	CategoryAdmin         = "admin"
)

// Handler identifiers mapping commands to engine handlers.
const (
	HandlerMove      = "move"
	HandlerLook      = "look"
	HandlerExits     = "exits"
	HandlerSay       = "say"
	HandlerGossip    = "gossip"
	HandlerTell      = "tell"
	HandlerEmote     = "emote"
	HandlerWho       = "who"
	HandlerScore     = "score"
	HandlerQuit      = "quit"
	HandlerHelp      = "help"
	HandlerKill      = "kill"
	HandlerFlee      = "flee"
	HandlerCast      = "cast"
	HandlerAbilities = "abilities"
	HandlerInventory = "inventory"
	HandlerGet       = "get"
	HandlerDrop      = "drop"
	HandlerWear      = "wear"
	HandlerRemove    = "remove"
	HandlerUse       = "use"
	HandlerGive      = "give"
	HandlerEquipment = "equipment"
	HandlerTalk      = "talk"
	HandlerQuests    = "quests"
	HandlerList      = "list"
	HandlerBuy       = "buy"
	HandlerSell      = "sell"
	HandlerAnsi      = "ansi"
	HandlerGoto      = "goto"
)

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the short help text displayed to players.
	Help string
	// Category groups the command for the help listing.
	Category string
	// Handler maps to the engine handler that executes it.
	Handler string
	// Staff restricts the command to staff characters.
	Staff bool
}

// BuiltinCommands returns all built-in commands for the game.
func BuiltinCommands() []Command {
	return []Command{
		// Movement commands
		{Name: "north", Aliases: []string{"n"}, Help: "Move north", Category: CategoryMovement, Handler: HandlerMove},
		{Name: "south", Aliases: []string{"s"}, Help: "Move south", Category: CategoryMovement, Handler: HandlerMove},
		{Name: "east", Aliases: []string{"e"}, Help: "Move east", Category: CategoryMovement, Handler: HandlerMove},
		{Name: "west", Aliases: []string{"w"}, Help: "Move west", Category: CategoryMovement, Handler: HandlerMove},
		{Name: "up", Aliases: []string{"u"}, Help: "Move up", Category: CategoryMovement, Handler: HandlerMove},
		{Name: "down", Aliases: []string{"d"}, Help: "Move down", Category: CategoryMovement, Handler: HandlerMove},

		// World commands
		{Name: "look", Aliases: []string{"l"}, Help: "Look around the current room", Category: CategoryWorld, Handler: HandlerLook},
		{Name: "exits", Aliases: nil, Help: "List available exits", Category: CategoryWorld, Handler: HandlerExits},
		{Name: "talk", Aliases: nil, Help: "Talk to someone in the room (talk <name>)", Category: CategoryWorld, Handler: HandlerTalk},
		{Name: "quests", Aliases: []string{"quest", "journal"}, Help: "Show your quest journal", Category: CategoryWorld, Handler: HandlerQuests},
		{Name: "list", Aliases: nil, Help: "List a shopkeeper's wares", Category: CategoryWorld, Handler: HandlerList},
		{Name: "buy", Aliases: nil, Help: "Buy an item from a shop (buy <item>)", Category: CategoryWorld, Handler: HandlerBuy},
		{Name: "sell", Aliases: nil, Help: "Sell an item to a shop (sell <item>)", Category: CategoryWorld, Handler: HandlerSell},

		// Combat commands
		{Name: "kill", Aliases: []string{"k", "attack", "att"}, Help: "Attack a target (kill <name>)", Category: CategoryCombat, Handler: HandlerKill},
		{Name: "flee", Aliases: []string{"run"}, Help: "Break off combat and run", Category: CategoryCombat, Handler: HandlerFlee},
		{Name: "cast", Aliases: []string{"c"}, Help: "Use an ability (cast <ability> [target])", Category: CategoryCombat, Handler: HandlerCast},
		{Name: "abilities", Aliases: []string{"spells"}, Help: "List abilities you know", Category: CategoryCombat, Handler: HandlerAbilities},

		// Item commands
		{Name: "inventory", Aliases: []string{"inv", "i"}, Help: "Show what you are carrying", Category: CategoryItems, Handler: HandlerInventory},
		{Name: "get", Aliases: []string{"take"}, Help: "Pick up an item (get <item>)", Category: CategoryItems, Handler: HandlerGet},
		{Name: "drop", Aliases: nil, Help: "Drop an item (drop <item>)", Category: CategoryItems, Handler: HandlerDrop},
		{Name: "wear", Aliases: []string{"wield"}, Help: "Equip an item (wear <item>)", Category: CategoryItems, Handler: HandlerWear},
		{Name: "remove", Aliases: []string{"rem"}, Help: "Unequip an item (remove <item>)", Category: CategoryItems, Handler: HandlerRemove},
		{Name: "use", Aliases: nil, Help: "Use a consumable (use <item>)", Category: CategoryItems, Handler: HandlerUse},
		{Name: "give", Aliases: nil, Help: "Give an item to a player (give <item> <player>)", Category: CategoryItems, Handler: HandlerGive},
		{Name: "equipment", Aliases: []string{"eq", "gear"}, Help: "Show what you are wearing", Category: CategoryItems, Handler: HandlerEquipment},

		// Communication commands
		{Name: "say", Aliases: nil, Help: "Say something to the room", Category: CategoryCommunication, Handler: HandlerSay},
		{Name: "gossip", Aliases: []string{"gs", "chat"}, Help: "Speak on the global channel", Category: CategoryCommunication, Handler: HandlerGossip},
		{Name: "tell", Aliases: []string{"t", "whisper"}, Help: "Send a private message (tell <player> <message>)", Category: CategoryCommunication, Handler: HandlerTell},
		{Name: "emote", Aliases: []string{"em"}, Help: "Perform an emote action", Category: CategoryCommunication, Handler: HandlerEmote},

		// System commands
		{Name: "who", Aliases: nil, Help: "List players online", Category: CategorySystem, Handler: HandlerWho},
		{Name: "score", Aliases: []string{"sc", "stats"}, Help: "Show your character sheet", Category: CategorySystem, Handler: HandlerScore},
		{Name: "ansi", Aliases: []string{"color"}, Help: "Toggle ANSI color (ansi on|off)", Category: CategorySystem, Handler: HandlerAnsi},
		{Name: "quit", Aliases: []string{"exit"}, Help: "Save and disconnect", Category: CategorySystem, Handler: HandlerQuit},
		{Name: "help", Aliases: []string{"?", "commands"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},

		// Admin commands
		{Name: "goto", Aliases: []string{"tp"}, Help: "Teleport to a room (goto <zone:room>)", Category: CategoryAdmin, Handler: HandlerGoto, Staff: true},
	}
}

// IsMovementCommand reports whether the command name is a movement direction.
func IsMovementCommand(name string) bool {
	switch name {
	case "north", "south", "east", "west", "up", "down":
		return true
	default:
		return false
	}
}
