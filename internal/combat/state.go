package combat

import (
	"fmt"                      // Error wrapping
	"slices"                   // Slice helpers
	"tabletop/internal/domain" // Domain models and errors
)

// CombatantType tells player characters apart from DM-controlled NPCs
type CombatantType string

const (
	TypeCharacter CombatantType = "character" // ID is a character id
	TypeNPC       CombatantType = "npc"       // Free-form, not persisted
)

// CombatantID is a character id for character combatants, free-form for NPCs
type CombatantID = domain.EntityID

// Combatant is one entry of the initiative order
type Combatant struct {
	ID         CombatantID   `json:"id" binding:"required,max=64"`
	Name       string        `json:"name" binding:"max=100"`
	Initiative int           `json:"initiative" binding:"min=-100,max=100"`
	Type       CombatantType `json:"type" binding:"omitempty,oneof=character npc"`
}

// State is the tracker of one table
type State struct {
	Table       string      `json:"table"`
	Active      bool        `json:"active"`
	Round       int         `json:"round"`
	CurrentTurn int         `json:"current_turn"`
	Combatants  []Combatant `json:"combatants"`
}

func idleState(table string) State {
	return State{Table: table, Combatants: []Combatant{}}
}

// newEncounter orders combatants by initiative, highest first. Ties keep the
// order in which they were submitted and the order is never recomputed.
func newEncounter(table string, combatants []Combatant) (State, error) {
	if len(combatants) == 0 {
		return State{}, fmt.Errorf("%w: combat needs at least one combatant", domain.ErrValidation)
	}
	ordered := make([]Combatant, len(combatants))
	copy(ordered, combatants)
	seen := make(map[CombatantID]struct{}, len(ordered))
	for i := range ordered {
		if ordered[i].Type == "" {
			ordered[i].Type = TypeNPC // Untyped combatants are NPCs
		}
		if _, dup := seen[ordered[i].ID]; dup {
			return State{}, fmt.Errorf("%w: duplicate combatant id %q", domain.ErrValidation, ordered[i].ID)
		}
		seen[ordered[i].ID] = struct{}{}
	}
	slices.SortStableFunc(ordered, func(a, b Combatant) int {
		return b.Initiative - a.Initiative
	})
	return State{Table: table, Active: true, Round: 1, CurrentTurn: 0, Combatants: ordered}, nil
}

// advance moves to the next combatant, starting a new round on wrap-around
func (s *State) advance() error {
	if !s.Active || len(s.Combatants) == 0 {
		return fmt.Errorf("%w: no active combat", domain.ErrValidation)
	}
	s.CurrentTurn = (s.CurrentTurn + 1) % len(s.Combatants) // Wrap to the top of the order
	if s.CurrentTurn == 0 {
		s.Round++ // New round
	}
	return nil
}

// Current returns the combatant whose turn it is
func (s State) Current() (Combatant, bool) {
	if !s.Active || s.CurrentTurn >= len(s.Combatants) {
		return Combatant{}, false
	}
	return s.Combatants[s.CurrentTurn], true
}

func (s State) clone() State {
	s.Combatants = slices.Clone(s.Combatants)
	if s.Combatants == nil {
		s.Combatants = []Combatant{}
	}
	return s
}
