package behavior

import "time"

// Templates returns the standard named trees. Tree instances hold no
// state of their own; all mutable state lives in the per-mob Memory, so
// one instance serves every mob using the template.
func Templates() map[string]Node {
	return map[string]Node{
		// Attacks any player who enters; never leaves its post.
		"aggro_guard": &Selector{Children: []Node{
			IsInCombat{},
			&Sequence{Children: []Node{IsPlayerInRoom{}, Aggro{}}},
			Stationary{},
		}},

		// Attacks on sight but with a taunt first, then stands still.
		"stationary_aggro": &Selector{Children: []Node{
			IsInCombat{},
			&Sequence{Children: []Node{
				IsPlayerInRoom{},
				&Cooldown{Key: "taunt", Period: 30 * time.Second, Child: Say{Message: "You should not have come here."}},
				Aggro{},
			}},
			&Sequence{Children: []Node{IsPlayerInRoom{}, Aggro{}}},
			Stationary{},
		}},

		// Walks a fixed circuit of its zone.
		"patrol": &Selector{Children: []Node{
			IsInCombat{},
			Patrol{},
			Stationary{},
		}},

		// Patrols, but attacks any player it finds along the way.
		"patrol_aggro": &Selector{Children: []Node{
			IsInCombat{},
			&Sequence{Children: []Node{IsPlayerInRoom{}, Aggro{}}},
			Patrol{},
			Stationary{},
		}},

		// Drifts randomly around its home zone.
		"wander": &Selector{Children: []Node{
			IsInCombat{},
			Wander{},
			Stationary{},
		}},

		// Wanders and attacks players it stumbles into.
		"wander_aggro": &Selector{Children: []Node{
			IsInCombat{},
			&Sequence{Children: []Node{IsPlayerInRoom{}, Aggro{}}},
			Wander{},
			Stationary{},
		}},

		// Fights until badly hurt, then bolts through any exit.
		"coward": &Selector{Children: []Node{
			&Sequence{Children: []Node{IsInCombat{}, IsHpBelow{Fraction: 0.3}, Flee{}}},
			IsInCombat{},
			Wander{},
			Stationary{},
		}},
	}
}
