// Package combat runs the initiative tracker of each table and keeps the
// in_combat flags and hit points of characters in step with it.
package combat

import (
	"context"                    // Cancellation and deadlines
	"errors"                     // Error classification
	"fmt"                        // Error wrapping
	"strconv"                    // String conversion
	"sync"                       // Mutexes
	"tabletop/internal/domain"   // Domain models and errors
	"tabletop/internal/realtime" // Socket broadcasts

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// HPUpdate is the payload of hp_updated
type HPUpdate struct {
	CharacterID uint   `json:"character_id"`
	HPCurrent   int    `json:"hp_current"`
	HPMax       int    `json:"hp_max"`
	UpdatedBy   string `json:"updated_by"`
}

// Ended is the payload of combat_ended
type Ended struct {
	Table string `json:"table"`
}

// Service owns the tracker state of every table. All mutations hold mu from
// the database write through the broadcast, so the broadcast order is the
// state order.
type Service struct {
	db  *gorm.DB
	pub realtime.Publisher

	mu     sync.Mutex
	tables map[string]*State
}

// NewService creates a tracker with every table idle
func NewService(db *gorm.DB, pub realtime.Publisher) *Service {
	return &Service{db: db, pub: pub, tables: make(map[string]*State)}
}

// State returns a snapshot of the tracker of table. Tables never started,
// and names no table could have, read as idle.
func (s *Service) State(table string) State {
	name, err := domain.TableName(table)
	if err != nil {
		return idleState(table)
	}
	table = name
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.tables[table]; ok {
		return st.clone()
	}
	return idleState(table)
}

// Start begins an encounter. Character combatants are flagged in_combat with
// their initiative in a single transaction.
func (s *Service) Start(ctx context.Context, id domain.Identity, table string, combatants []Combatant) (State, error) {
	if !id.IsDM() {
		return State{}, fmt.Errorf("%w: only the DM can start combat", domain.ErrForbidden)
	}
	table, err := domain.TableName(table)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.tables[table]; ok && st.Active { // One encounter per table
		return State{}, fmt.Errorf("%w: combat already running on table %q", domain.ErrValidation, table)
	}
	st, err := newEncounter(table, combatants) // Validate and order
	if err != nil {
		return State{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range st.Combatants {
			if c.Type != TypeCharacter {
				continue // NPCs are not persisted
			}
			cid, err := characterID(c.ID)
			if err != nil {
				return err
			}
			res := tx.Model(&domain.Character{}).Where("id = ?", cid).
				Updates(map[string]any{"in_combat": true, "initiative": c.Initiative})
			if res.Error != nil {
				return fmt.Errorf("%w: flag character %d: %v", domain.ErrStorage, cid, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: character %d", domain.ErrNotFound, cid)
			}
		}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"table": table, "error": err.Error()}).Warn("Combat start rejected")
		return State{}, err
	}

	s.tables[table] = &st // Commit only after the flags are saved
	snapshot := st.clone()
	s.pub.Publish(realtime.RoomCampaign, realtime.EventCombatStarted, snapshot) // Broadcast while holding mu

	logrus.WithFields(logrus.Fields{
		"table":      table,
		"combatants": len(st.Combatants),
		"dm":         id.Username,
	}).Info("Combat started")
	return snapshot, nil
}

// NextTurn advances the tracker of table by one turn
func (s *Service) NextTurn(ctx context.Context, id domain.Identity, table string) (State, error) {
	if !id.IsDM() {
		return State{}, fmt.Errorf("%w: only the DM can advance turns", domain.ErrForbidden)
	}
	table, err := domain.TableName(table)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tables[table]
	if !ok {
		return State{}, fmt.Errorf("%w: no active combat", domain.ErrValidation)
	}
	if err := st.advance(); err != nil { // Next combatant, new round on wrap
		return State{}, err
	}
	snapshot := st.clone()
	s.pub.Publish(realtime.RoomCampaign, realtime.EventCombatTurnChanged, snapshot)

	logrus.WithFields(logrus.Fields{"table": table, "round": st.Round, "turn": st.CurrentTurn}).Debug("Turn advanced")
	return snapshot, nil
}

// End resets the tracker of table and clears combat flags. Ending the default
// table clears every flagged character; other tables clear only their own.
// Ending an idle table is allowed.
func (s *Service) End(ctx context.Context, id domain.Identity, table string) (State, error) {
	if !id.IsDM() {
		return State{}, fmt.Errorf("%w: only the DM can end combat", domain.ErrForbidden)
	}
	table, err := domain.TableName(table)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uint
	if st, ok := s.tables[table]; ok {
		for _, c := range st.Combatants {
			if c.Type != TypeCharacter {
				continue // NPCs are not persisted
			}
			if cid, err := characterID(c.ID); err == nil {
				ids = append(ids, cid)
			}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.Character{})
		if table == domain.DefaultTable {
			q = q.Where("in_combat = ?", true) // Everyone flagged
		} else if len(ids) > 0 {
			q = q.Where("id IN ?", ids) // Only this table's characters
		} else {
			return nil
		}
		if err := q.Updates(map[string]any{"in_combat": false, "initiative": 0}).Error; err != nil {
			return fmt.Errorf("%w: clear combat flags: %v", domain.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"table": table, "error": err.Error()}).Error("Failed to end combat")
		return State{}, err
	}

	delete(s.tables, table) // Back to idle
	s.pub.Publish(realtime.RoomCampaign, realtime.EventCombatEnded, Ended{Table: table})

	logrus.WithFields(logrus.Fields{"table": table, "dm": id.Username}).Info("Combat ended")
	return idleState(table), nil
}

// UpdateHP sets a character's current hit points, clamped to [0, hp_max]
func (s *Service) UpdateHP(ctx context.Context, id domain.Identity, characterID uint, hp int) (HPUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ch domain.Character
	if err := s.db.WithContext(ctx).First(&ch, characterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return HPUpdate{}, fmt.Errorf("%w: character %d", domain.ErrNotFound, characterID)
		}
		return HPUpdate{}, fmt.Errorf("%w: load character: %v", domain.ErrStorage, err)
	}
	if !id.CanManage(ch.UserID) {
		return HPUpdate{}, fmt.Errorf("%w: character %d belongs to another player", domain.ErrForbidden, characterID)
	}

	hp = max(0, min(hp, ch.HPMax)) // Clamp to [0, hp_max]
	if err := s.db.WithContext(ctx).Model(&ch).Update("hp_current", hp).Error; err != nil {
		logrus.WithFields(logrus.Fields{"character_id": characterID, "error": err.Error()}).Error("Failed to update HP")
		return HPUpdate{}, fmt.Errorf("%w: update hp: %v", domain.ErrStorage, err)
	}

	update := HPUpdate{CharacterID: ch.ID, HPCurrent: hp, HPMax: ch.HPMax, UpdatedBy: id.Username}
	s.pub.Publish(realtime.RoomCampaign, realtime.EventHPUpdated, update)

	logrus.WithFields(logrus.Fields{
		"character_id": ch.ID,
		"hp_current":   hp,
		"updated_by":   id.Username,
	}).Info("HP updated")
	return update, nil
}

func characterID(raw CombatantID) (uint, error) {
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: character combatant id %q is not a character id", domain.ErrValidation, raw)
	}
	return uint(v), nil
}
