// Package battlemap holds the grid and token positions of each table.
package battlemap

import (
	"context"                    // Cancellation and deadlines
	"errors"                     // Error classification
	"fmt"                        // Error wrapping
	"maps"                       // Map helpers
	"slices"                     // Slice helpers
	"strconv"                    // String conversion
	"sync"                       // Mutexes
	"tabletop/internal/domain"   // Domain models and errors
	"tabletop/internal/realtime" // Socket broadcasts

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Map defaults
const (
	DefaultWidth    = 20
	DefaultHeight   = 20
	DefaultGridSize = 40
	DefaultLighting = "normal"
)

// Position is a grid cell
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Wall is a segment between two grid points
type Wall struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// State is the battle map of one table
type State struct {
	Table    string              `json:"table"`
	Width    int                 `json:"width"`
	Height   int                 `json:"height"`
	GridSize int                 `json:"grid_size"`
	Tokens   map[string]Position `json:"tokens"`
	FogOfWar bool                `json:"fog_of_war"`
	Walls    []Wall              `json:"walls"`
	Lighting string              `json:"lighting"`
	ShowGrid bool                `json:"showGrid"`
}

func (s *State) inBounds(x, y int) bool {
	return x >= 0 && x < s.Width && y >= 0 && y < s.Height
}

func (s *State) clone() State {
	c := *s
	c.Tokens = maps.Clone(s.Tokens)
	c.Walls = slices.Clone(s.Walls)
	if c.Walls == nil {
		c.Walls = []Wall{}
	}
	return c
}

// TokenMoved is the payload of token_moved
type TokenMoved struct {
	Table   string `json:"table"`
	TokenID string `json:"token_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	MovedBy string `json:"moved_by"`
}

// Settings are the DM-controlled display options. Nil fields are left unchanged.
type Settings struct {
	Width    *int    `json:"width" binding:"omitempty,min=1,max=200"`
	Height   *int    `json:"height" binding:"omitempty,min=1,max=200"`
	GridSize *int    `json:"grid_size" binding:"omitempty,min=10,max=200"`
	FogOfWar *bool   `json:"fog_of_war"`
	ShowGrid *bool   `json:"showGrid"`
	Lighting *string `json:"lighting" binding:"omitempty,oneof=bright normal dim dark"`
	Walls    []Wall  `json:"walls"`
}

// Service owns the map state of every table
type Service struct {
	db  *gorm.DB
	pub realtime.Publisher

	mu     sync.Mutex
	tables map[string]*State
}

// NewService creates the battle map service
func NewService(db *gorm.DB, pub realtime.Publisher) *Service {
	return &Service{db: db, pub: pub, tables: make(map[string]*State)}
}

// blank builds the default map of table, seeding tokens from the characters'
// stored positions
func (s *Service) blank(ctx context.Context, table string) (*State, error) {
	var characters []domain.Character // Stored token positions
	if err := s.db.WithContext(ctx).Select("id", "token_x", "token_y").Find(&characters).Error; err != nil {
		return nil, fmt.Errorf("%w: load token positions: %v", domain.ErrStorage, err)
	}
	st := &State{
		Table:    table,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		GridSize: DefaultGridSize,
		Tokens:   make(map[string]Position, len(characters)),
		Walls:    []Wall{},
		Lighting: DefaultLighting,
		ShowGrid: true,
	}
	for _, ch := range characters {
		st.Tokens[strconv.FormatUint(uint64(ch.ID), 10)] = Position{X: ch.TokenX, Y: ch.TokenY}
	}
	return st, nil
}

// open returns the stored map of table, creating it when the caller may.
// Any player may open the default table; other tables are set up by the DM.
// Callers hold mu.
func (s *Service) open(ctx context.Context, id domain.Identity, table string) (*State, error) {
	if st, ok := s.tables[table]; ok {
		return st, nil // Already in play
	}
	if table != domain.DefaultTable && !id.IsDM() {
		return nil, fmt.Errorf("%w: table %q has no battle map yet", domain.ErrNotFound, table)
	}
	st, err := s.blank(ctx, table)
	if err != nil {
		return nil, err
	}
	s.tables[table] = st // Keep it from now on
	logrus.WithFields(logrus.Fields{"table": table, "opened_by": id.Username}).Info("Battle map opened")
	return st, nil
}

// State returns a snapshot of the map of table. A table nobody has touched
// reads as the default map and is not kept.
func (s *Service) State(ctx context.Context, table string) (State, error) {
	table, err := domain.TableName(table)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.tables[table]; ok {
		return st.clone(), nil
	}
	st, err := s.blank(ctx, table)
	if err != nil {
		return State{}, err
	}
	return st.clone(), nil
}

// Tables returns how many maps are held in memory
func (s *Service) Tables() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}

// MoveToken places a token. Character tokens (numeric ids) may be moved by
// their owner or the DM and are persisted on the character; any other token
// is an NPC marker only the DM may move.
func (s *Service) MoveToken(ctx context.Context, id domain.Identity, table, tokenID string, x, y int) (TokenMoved, error) {
	table, err := domain.TableName(table)
	if err != nil {
		return TokenMoved{}, err
	}
	if tokenID == "" {
		return TokenMoved{}, fmt.Errorf("%w: token_id is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.open(ctx, id, table)
	if err != nil {
		return TokenMoved{}, err
	}
	if !st.inBounds(x, y) {
		return TokenMoved{}, fmt.Errorf("%w: position (%d,%d) is outside the %dx%d map", domain.ErrValidation, x, y, st.Width, st.Height)
	}

	if cid, perr := strconv.ParseUint(tokenID, 10, 64); perr == nil { // Numeric ids are characters
		if err := s.persistCharacterToken(ctx, id, uint(cid), x, y); err != nil {
			return TokenMoved{}, err
		}
	} else if !id.IsDM() { // Anything else is an NPC marker
		return TokenMoved{}, fmt.Errorf("%w: only the DM can move NPC tokens", domain.ErrForbidden)
	}

	st.Tokens[tokenID] = Position{X: x, Y: y} // Stored positions may sit outside a later, smaller grid
	moved := TokenMoved{Table: table, TokenID: tokenID, X: x, Y: y, MovedBy: id.Username}
	s.pub.Publish(realtime.RoomBattlemap, realtime.EventTokenMoved, moved) // Map viewers only

	logrus.WithFields(logrus.Fields{
		"table":    table,
		"token_id": tokenID,
		"x":        x,
		"y":        y,
		"moved_by": id.Username,
	}).Debug("Token moved")
	return moved, nil
}

func (s *Service) persistCharacterToken(ctx context.Context, id domain.Identity, characterID uint, x, y int) error {
	var ch domain.Character
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&ch, characterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: character %d", domain.ErrNotFound, characterID)
		}
		return fmt.Errorf("%w: load character: %v", domain.ErrStorage, err)
	}
	if !id.CanManage(ch.UserID) {
		return fmt.Errorf("%w: token belongs to another player", domain.ErrForbidden)
	}
	err := s.db.WithContext(ctx).Model(&domain.Character{}).Where("id = ?", characterID).
		Updates(map[string]any{"token_x": x, "token_y": y}).Error
	if err != nil {
		logrus.WithFields(logrus.Fields{"character_id": characterID, "error": err.Error()}).Error("Failed to persist token position")
		return fmt.Errorf("%w: save token position: %v", domain.ErrStorage, err)
	}
	return nil
}

// UpdateSettings changes the display options of a map. Tokens left outside a
// shrunken grid keep their position until moved.
func (s *Service) UpdateSettings(ctx context.Context, id domain.Identity, table string, in Settings) (State, error) {
	if !id.IsDM() {
		return State{}, fmt.Errorf("%w: only the DM can change the map", domain.ErrForbidden)
	}
	table, err := domain.TableName(table)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.open(ctx, id, table)
	if err != nil {
		return State{}, err
	}
	if in.Width != nil {
		st.Width = *in.Width
	}
	if in.Height != nil {
		st.Height = *in.Height
	}
	if in.GridSize != nil {
		st.GridSize = *in.GridSize
	}
	if in.FogOfWar != nil {
		st.FogOfWar = *in.FogOfWar
	}
	if in.ShowGrid != nil {
		st.ShowGrid = *in.ShowGrid
	}
	if in.Lighting != nil {
		st.Lighting = *in.Lighting
	}
	if in.Walls != nil {
		st.Walls = slices.Clone(in.Walls) // Replaced as a whole
	}

	snapshot := st.clone()
	s.pub.Publish(realtime.RoomBattlemap, realtime.EventBattlemapState, snapshot) // Everyone redraws
	logrus.WithFields(logrus.Fields{"table": table, "dm": id.Username}).Info("Battle map updated")
	return snapshot, nil
}

// RemoveToken drops a token from every loaded map, used when its character is deleted
func (s *Service) RemoveToken(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.tables {
		delete(st.Tokens, tokenID) // No-op when absent
	}
}
