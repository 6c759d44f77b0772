// Package dialogue runs mob conversations: one active multi-node
// conversation per session, with level- and class-gated choices.
package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
)

// conversation is one session talking to one mob.
type conversation struct {
	tree  *world.DialogueTree
	node  string
	mobID id.MobID
	// choices are the gated options shown last render, by displayed number.
	choices []world.DialogueChoice
}

// Result is what one dialogue step produced.
type Result struct {
	// Lines are the text to send to the player.
	Lines []string
	// Ended reports that the conversation is over.
	Ended bool
	// AcceptQuest names a quest the chosen option accepted, if any.
	AcceptQuest string
}

// System tracks active conversations. Not safe for concurrent use; owned
// by the engine worker.
type System struct {
	world  *world.World
	active map[id.SessionID]*conversation
}

// NewSystem creates the dialogue system.
func NewSystem(w *world.World) *System {
	return &System{world: w, active: make(map[id.SessionID]*conversation)}
}

// Active reports whether the session is mid-conversation.
func (s *System) Active(sid id.SessionID) bool {
	_, ok := s.active[sid]
	return ok
}

// Start opens a conversation with a mob's dialogue tree.
//
// Postcondition: Returns the opening node's render, or ok=false when the
// mob has no dialogue.
func (s *System) Start(st *player.State, mobID id.MobID, mobName, dialogueID string) (Result, bool) {
	tree, ok := s.world.Dialogues[dialogueID]
	if !ok {
		return Result{}, false
	}
	conv := &conversation{tree: tree, node: tree.Start, mobID: mobID}
	s.active[st.SessionID] = conv
	lines := s.render(st, conv, mobName)
	if len(conv.choices) == 0 {
		delete(s.active, st.SessionID)
		return Result{Lines: lines, Ended: true}, true
	}
	return Result{Lines: lines}, true
}

// Choose advances the conversation with the player's numbered selection.
//
// Precondition: The session must have an active conversation.
// Postcondition: The conversation advances, ends, or reports an invalid
// choice without changing state.
func (s *System) Choose(st *player.State, input string) Result {
	conv, ok := s.active[st.SessionID]
	if !ok {
		return Result{Lines: []string{"You are not talking to anyone."}, Ended: true}
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(conv.choices) {
		return Result{Lines: []string{fmt.Sprintf("Pick a number between 1 and %d.", len(conv.choices))}}
	}
	choice := conv.choices[n-1]

	var res Result
	res.AcceptQuest = choice.AcceptQuest
	if choice.Next == "" {
		delete(s.active, st.SessionID)
		res.Ended = true
		return res
	}
	conv.node = choice.Next
	res.Lines = s.render(st, conv, "")
	if len(conv.choices) == 0 {
		delete(s.active, st.SessionID)
		res.Ended = true
	}
	return res
}

// render produces the node text plus the numbered, gated choice list, and
// caches the visible choices on the conversation.
func (s *System) render(st *player.State, conv *conversation, mobName string) []string {
	node := conv.tree.Nodes[conv.node]
	conv.choices = conv.choices[:0]

	var lines []string
	if mobName != "" {
		lines = append(lines, fmt.Sprintf("%s says:", mobName))
	}
	lines = append(lines, node.Text)
	for _, choice := range node.Choices {
		if choice.MinLevel > 0 && st.Level < choice.MinLevel {
			continue
		}
		if choice.Class != "" && !strings.EqualFold(choice.Class, st.Class.Name) {
			continue
		}
		conv.choices = append(conv.choices, choice)
		lines = append(lines, fmt.Sprintf("  %d) %s", len(conv.choices), choice.Text))
	}
	return lines
}

// OnPlayerMoved ends the session's conversation; walking away stops the
// talk.
func (s *System) OnPlayerMoved(sid id.SessionID) {
	delete(s.active, sid)
}

// OnPlayerDisconnected purges the session's conversation.
func (s *System) OnPlayerDisconnected(sid id.SessionID) {
	delete(s.active, sid)
}

// OnMobRemoved ends every conversation with a despawned mob.
func (s *System) OnMobRemoved(mobID id.MobID) {
	for sid, conv := range s.active {
		if conv.mobID == mobID {
			delete(s.active, sid)
		}
	}
}

// Remap moves a conversation to a new session id.
func (s *System) Remap(oldSID, newSID id.SessionID) {
	if conv, ok := s.active[oldSID]; ok {
		delete(s.active, oldSID)
		s.active[newSID] = conv
	}
}
