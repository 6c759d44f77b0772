package scripting

import lua "github.com/yuin/gopher-lua"

// RegisterModules registers the mud.* Lua table into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: mud global is defined in L with say, mob, and roll.
func (m *Manager) RegisterModules(L *lua.LState) {
	mud := L.NewTable()

	// mud.say(roomID, msg) speaks to a room via the injected broadcaster.
	L.SetField(mud, "say", L.NewFunction(func(ls *lua.LState) int {
		roomID := ls.CheckString(1)
		msg := ls.CheckString(2)
		if m.Broadcast != nil {
			m.Broadcast(roomID, msg)
		}
		return 0
	}))

	// mud.mob(mobID) returns a mob snapshot table, or nil.
	L.SetField(mud, "mob", L.NewFunction(func(ls *lua.LState) int {
		mobID := ls.CheckString(1)
		if m.GetMob == nil {
			ls.Push(lua.LNil)
			return 1
		}
		info := m.GetMob(mobID)
		if info == nil {
			ls.Push(lua.LNil)
			return 1
		}
		tbl := ls.NewTable()
		ls.SetField(tbl, "id", lua.LString(info.ID))
		ls.SetField(tbl, "name", lua.LString(info.Name))
		ls.SetField(tbl, "room", lua.LString(info.RoomID))
		ls.SetField(tbl, "hp", lua.LNumber(info.HP))
		ls.SetField(tbl, "max_hp", lua.LNumber(info.MaxHP))
		ls.Push(tbl)
		return 1
	}))

	// mud.roll(min, max) returns a uniform integer in [min, max].
	L.SetField(mud, "roll", L.NewFunction(func(ls *lua.LState) int {
		min := ls.CheckInt(1)
		max := ls.CheckInt(2)
		if max < min {
			min, max = max, min
		}
		ls.Push(lua.LNumber(min + m.rng.Intn(max-min+1)))
		return 1
	}))

	L.SetGlobal("mud", mud)
}
