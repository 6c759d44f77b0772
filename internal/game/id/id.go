// Package id provides the identifier value types shared by every game
// subsystem: session ids and the namespaced room/mob/item ids.
package id

import (
	"fmt"
	"strings"
)

// SessionID uniquely identifies one connected client for its lifetime.
// In single-node deployments ids come from a monotonic counter; multi-gateway
// deployments use the snowflake allocator so ids never collide across
// gateways.
type SessionID uint64

// String renders the session id in decimal.
func (s SessionID) String() string {
	return fmt.Sprintf("%d", uint64(s))
}

// RoomID identifies a room as "<zone>:<local>".
type RoomID string

// MobID identifies a mob spawn or live mob as "<zone>:<local>".
type MobID string

// ItemID identifies an item template or instance as "<zone>:<local>".
type ItemID string

// splitNamespaced splits a namespaced id at its first colon.
func splitNamespaced(s string) (zone, local string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// qualify prefixes s with zone unless s is already namespaced.
func qualify(zone, s string) string {
	if strings.ContainsRune(s, ':') {
		return s
	}
	return zone + ":" + s
}

// NewRoomID validates and returns a RoomID.
//
// Postcondition: Returns an error unless s has the "<zone>:<local>" shape
// with both segments non-empty.
func NewRoomID(s string) (RoomID, error) {
	if _, _, ok := splitNamespaced(s); !ok {
		return "", fmt.Errorf("room id %q: must be \"<zone>:<local>\"", s)
	}
	return RoomID(s), nil
}

// Zone returns the zone segment, or "" for a malformed id.
func (r RoomID) Zone() string {
	z, _, _ := splitNamespaced(string(r))
	return z
}

// Local returns the local segment, or "" for a malformed id.
func (r RoomID) Local() string {
	_, l, _ := splitNamespaced(string(r))
	return l
}

// Valid reports whether the id has the namespaced shape.
func (r RoomID) Valid() bool {
	_, _, ok := splitNamespaced(string(r))
	return ok
}

// QualifyRoomID prefixes s with zone unless it is already namespaced.
func QualifyRoomID(zone, s string) RoomID {
	return RoomID(qualify(zone, s))
}

// NewMobID validates and returns a MobID.
func NewMobID(s string) (MobID, error) {
	if _, _, ok := splitNamespaced(s); !ok {
		return "", fmt.Errorf("mob id %q: must be \"<zone>:<local>\"", s)
	}
	return MobID(s), nil
}

// Zone returns the zone segment, or "" for a malformed id.
func (m MobID) Zone() string {
	z, _, _ := splitNamespaced(string(m))
	return z
}

// Local returns the local segment, or "" for a malformed id.
func (m MobID) Local() string {
	_, l, _ := splitNamespaced(string(m))
	return l
}

// Valid reports whether the id has the namespaced shape.
func (m MobID) Valid() bool {
	_, _, ok := splitNamespaced(string(m))
	return ok
}

// QualifyMobID prefixes s with zone unless it is already namespaced.
func QualifyMobID(zone, s string) MobID {
	return MobID(qualify(zone, s))
}

// NewItemID validates and returns an ItemID.
func NewItemID(s string) (ItemID, error) {
	if _, _, ok := splitNamespaced(s); !ok {
		return "", fmt.Errorf("item id %q: must be \"<zone>:<local>\"", s)
	}
	return ItemID(s), nil
}

// Zone returns the zone segment, or "" for a malformed id.
func (i ItemID) Zone() string {
	z, _, _ := splitNamespaced(string(i))
	return z
}

// Local returns the local segment, or "" for a malformed id.
func (i ItemID) Local() string {
	_, l, _ := splitNamespaced(string(i))
	return l
}

// Valid reports whether the id has the namespaced shape.
func (i ItemID) Valid() bool {
	_, _, ok := splitNamespaced(string(i))
	return ok
}

// QualifyItemID prefixes s with zone unless it is already namespaced.
func QualifyItemID(zone, s string) ItemID {
	return ItemID(qualify(zone, s))
}
