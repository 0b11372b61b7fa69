// Package treasury keeps the gold of each character and an append-only
// ledger of every movement between purses.
package treasury

import (
	"context"                    // Cancellation and deadlines
	"errors"                     // Error classification
	"fmt"                        // Error wrapping
	"strconv"                    // String conversion
	"tabletop/internal/domain"   // Domain models and errors
	"tabletop/internal/metrics"  // Prometheus collectors
	"tabletop/internal/realtime" // Socket broadcasts
	"tabletop/internal/utils"    // Cache helpers

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// MaxAmount bounds a single movement
const MaxAmount = 1_000_000

// PurseEvent is the payload of purse_update, one per affected purse
type PurseEvent struct {
	CharacterID uint              `json:"character_id"`
	Gold        int64             `json:"gold"`
	Type        domain.LedgerType `json:"type"`
	Amount      int64             `json:"amount"`
	UpdatedBy   string            `json:"updated_by"`
}

// Service moves gold between purses
type Service struct {
	db  *gorm.DB
	rdb *redis.Client
	pub realtime.Publisher
}

// NewService wires the treasury. rdb may be nil to disable caching.
func NewService(db *gorm.DB, rdb *redis.Client, pub realtime.Publisher) *Service {
	return &Service{db: db, rdb: rdb, pub: pub}
}

func cacheKey(characterID uint) string {
	return "purse:character:" + strconv.FormatUint(uint64(characterID), 10)
}

func checkAmount(amount int64) error {
	if amount <= 0 || amount > MaxAmount {
		return fmt.Errorf("%w: amount must be between 1 and %d", domain.ErrValidation, MaxAmount)
	}
	return nil
}

// authorize loads the character and checks the caller may manage it
func authorize(tx *gorm.DB, id domain.Identity, characterID uint) error {
	var ch domain.Character
	if err := tx.Select("id", "user_id").First(&ch, characterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: character %d", domain.ErrNotFound, characterID)
		}
		return fmt.Errorf("%w: load character: %v", domain.ErrStorage, err)
	}
	if !id.CanManage(ch.UserID) {
		return fmt.Errorf("%w: character %d belongs to another player", domain.ErrForbidden, characterID)
	}
	return nil
}

// purseFor returns the purse of a character, opening an empty one on first use
func purseFor(tx *gorm.DB, characterID uint) (domain.Purse, error) {
	var p domain.Purse
	if err := tx.Where(domain.Purse{CharacterID: characterID}).FirstOrCreate(&p).Error; err != nil { // Purses open lazily
		return domain.Purse{}, fmt.Errorf("%w: open purse: %v", domain.ErrStorage, err)
	}
	return p, nil
}

func reload(tx *gorm.DB, p *domain.Purse) error {
	if err := tx.First(p, p.ID).Error; err != nil {
		return fmt.Errorf("%w: reload purse: %v", domain.ErrStorage, err)
	}
	return nil
}

// Balance returns the purse of a character
func (s *Service) Balance(ctx context.Context, id domain.Identity, characterID uint) (domain.Purse, error) {
	gdb := s.db.WithContext(ctx)
	if err := authorize(gdb, id, characterID); err != nil {
		return domain.Purse{}, err
	}
	gen, genErr := utils.CacheGeneration(ctx, s.rdb, cacheKey(characterID)) // Before the database read
	if genErr != nil {
		logrus.WithError(genErr).Warn("Purse cache generation read failed")
	}
	var p domain.Purse
	// Try the cache first
	if hit, err := utils.GetCache(ctx, s.rdb, cacheKey(characterID), &p); err == nil && hit {
		return p, nil
	} else if err != nil {
		logrus.WithError(err).Warn("Purse cache read failed")
	}
	p, err := purseFor(gdb, characterID)
	if err != nil {
		return domain.Purse{}, err
	}
	// Skipped when a movement settled while we were reading
	if genErr == nil {
		if _, err := utils.FillCache(ctx, s.rdb, cacheKey(characterID), gen, p, utils.CacheTTL); err != nil {
			logrus.WithError(err).Warn("Purse cache write failed")
		}
	}
	return p, nil
}

// Grant adds gold to a character's purse. Only the DM hands out gold.
func (s *Service) Grant(ctx context.Context, id domain.Identity, characterID uint, amount int64, note string) (domain.Purse, error) {
	if !id.IsDM() {
		return domain.Purse{}, fmt.Errorf("%w: only the DM can grant gold", domain.ErrForbidden)
	}
	if err := checkAmount(amount); err != nil {
		return domain.Purse{}, err
	}
	var p domain.Purse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := authorize(tx, id, characterID); err != nil {
			return err
		}
		var err error
		if p, err = purseFor(tx, characterID); err != nil {
			return err
		}
		// Increment purse balance
		if err := tx.Model(&p).Update("gold", gorm.Expr("gold + ?", amount)).Error; err != nil { // Atomic credit
			return fmt.Errorf("%w: credit purse: %v", domain.ErrStorage, err)
		}
		entry := domain.LedgerEntry{ToPurseID: &p.ID, Amount: amount, Type: domain.LedgerGrant, Note: note, CreatedBy: id.Username}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("%w: record grant: %v", domain.ErrStorage, err)
		}
		return reload(tx, &p)
	})
	if err != nil {
		s.logFailure("Grant failed", id, characterID, amount, err)
		return domain.Purse{}, err
	}
	s.settled(ctx, id, domain.LedgerGrant, amount, p)
	return p, nil
}

// Spend removes gold from a character's purse. The balance never goes negative.
func (s *Service) Spend(ctx context.Context, id domain.Identity, characterID uint, amount int64, note string) (domain.Purse, error) {
	if err := checkAmount(amount); err != nil {
		return domain.Purse{}, err
	}
	var p domain.Purse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := authorize(tx, id, characterID); err != nil {
			return err
		}
		var err error
		if p, err = purseFor(tx, characterID); err != nil {
			return err
		}
		if err := debit(tx, p.ID, amount); err != nil {
			return err
		}
		entry := domain.LedgerEntry{FromPurseID: &p.ID, Amount: amount, Type: domain.LedgerSpend, Note: note, CreatedBy: id.Username}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("%w: record spend: %v", domain.ErrStorage, err)
		}
		return reload(tx, &p)
	})
	if err != nil {
		s.logFailure("Spend failed", id, characterID, amount, err)
		return domain.Purse{}, err
	}
	s.settled(ctx, id, domain.LedgerSpend, amount, p)
	return p, nil
}

// Transfer moves gold from one character to another. The caller must be
// able to manage the source character; any character may receive.
func (s *Service) Transfer(ctx context.Context, id domain.Identity, fromCharacterID, toCharacterID uint, amount int64, note string) (from, to domain.Purse, err error) {
	if err := checkAmount(amount); err != nil {
		return domain.Purse{}, domain.Purse{}, err
	}
	// Prevent transferring to self
	if fromCharacterID == toCharacterID { // Same purse
		return domain.Purse{}, domain.Purse{}, fmt.Errorf("%w: cannot transfer to the same character", domain.ErrValidation)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := authorize(tx, id, fromCharacterID); err != nil {
			return err
		}
		var recipient domain.Character
		if err := tx.Select("id").First(&recipient, toCharacterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: recipient character %d", domain.ErrNotFound, toCharacterID)
			}
			return fmt.Errorf("%w: load recipient: %v", domain.ErrStorage, err)
		}
		var err error
		if from, err = purseFor(tx, fromCharacterID); err != nil {
			return err
		}
		if to, err = purseFor(tx, toCharacterID); err != nil {
			return err
		}
		// Deduct from sender
		if err := debit(tx, from.ID, amount); err != nil {
			return err
		}
		// Add to recipient
		if err := tx.Model(&to).Update("gold", gorm.Expr("gold + ?", amount)).Error; err != nil {
			return fmt.Errorf("%w: credit recipient: %v", domain.ErrStorage, err)
		}
		entry := domain.LedgerEntry{FromPurseID: &from.ID, ToPurseID: &to.ID, Amount: amount, Type: domain.LedgerTransfer, Note: note, CreatedBy: id.Username}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("%w: record transfer: %v", domain.ErrStorage, err)
		}
		if err := reload(tx, &from); err != nil {
			return err
		}
		return reload(tx, &to)
	})
	if err != nil {
		s.logFailure("Transfer failed", id, fromCharacterID, amount, err)
		return domain.Purse{}, domain.Purse{}, err
	}
	s.settled(ctx, id, domain.LedgerTransfer, amount, from, to)
	return from, to, nil
}

// debit takes gold only if the purse holds enough, in one statement so two
// concurrent spends cannot both pass the check
func debit(tx *gorm.DB, purseID uint, amount int64) error {
	res := tx.Model(&domain.Purse{}).Where("id = ? AND gold >= ?", purseID, amount).
		Update("gold", gorm.Expr("gold - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("%w: debit purse: %v", domain.ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: insufficient gold", domain.ErrValidation)
	}
	return nil
}

// History returns the ledger entries touching a character's purse, newest first
func (s *Service) History(ctx context.Context, id domain.Identity, characterID uint, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	gdb := s.db.WithContext(ctx)
	if err := authorize(gdb, id, characterID); err != nil {
		return nil, 0, err
	}
	p, err := purseFor(gdb, characterID)
	if err != nil {
		return nil, 0, err
	}
	var total int64 // Total count of entries
	if err := gdb.Model(&domain.LedgerEntry{}).
		Where("from_purse_id = ? OR to_purse_id = ?", p.ID, p.ID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: count ledger: %v", domain.ErrStorage, err)
	}
	entries := []domain.LedgerEntry{}
	if err := gdb.Where("from_purse_id = ? OR to_purse_id = ?", p.ID, p.ID).
		Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: load ledger: %v", domain.ErrStorage, err)
	}
	return entries, total, nil
}

// settled invalidates cached balances and announces the new ones
func (s *Service) settled(ctx context.Context, id domain.Identity, typ domain.LedgerType, amount int64, purses ...domain.Purse) {
	keys := make([]string, len(purses))
	for i, p := range purses {
		keys[i] = cacheKey(p.CharacterID)
	}
	if err := utils.InvalidateCache(ctx, s.rdb, keys...); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate purse cache")
	}
	for _, p := range purses {
		s.pub.Publish(realtime.RoomCampaign, realtime.EventPurseUpdate, PurseEvent{
			CharacterID: p.CharacterID,
			Gold:        p.Gold,
			Type:        typ,
			Amount:      amount,
			UpdatedBy:   id.Username,
		})
	}
	metrics.GoldMovedTotal.WithLabelValues(string(typ)).Add(float64(amount))
	logrus.WithFields(logrus.Fields{
		"type":       typ,
		"amount":     amount,
		"updated_by": id.Username,
	}).Info("Gold moved")
}

func (s *Service) logFailure(msg string, id domain.Identity, characterID uint, amount int64, err error) {
	entry := logrus.WithFields(logrus.Fields{
		"character_id": characterID,
		"amount":       amount,
		"username":     id.Username,
		"error":        err.Error(),
	})
	// Rejections are routine, only storage trouble is an error
	if errors.Is(err, domain.ErrStorage) {
		entry.Error(msg)
		return
	}
	entry.Warn(msg)
}
