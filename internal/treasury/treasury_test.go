package treasury

import (
	"context"
	"sync"
	"testing"

	"tabletop/internal/db/dbtest"
	"tabletop/internal/domain"
	"tabletop/internal/realtime"
	"tabletop/internal/realtime/realtimetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *Service
	db     *gorm.DB
	mr     *miniredis.Miniredis
	rec    *realtimetest.Recorder
	dm     domain.Identity
	player domain.Identity
	aria   domain.Character // owned by player
	bram   domain.Character // owned by someone else
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gdb := dbtest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rec := &realtimetest.Recorder{}
	dm := dbtest.CreateUser(t, gdb, "dm", domain.RoleDM, "password")
	player := dbtest.CreateUser(t, gdb, "player", domain.RolePlayer, "password")
	other := dbtest.CreateUser(t, gdb, "other", domain.RolePlayer, "password")
	return fixture{
		svc:    NewService(gdb, rdb, rec),
		db:     gdb,
		mr:     mr,
		rec:    rec,
		dm:     dbtest.Identity(dm),
		player: dbtest.Identity(player),
		aria:   dbtest.CreateCharacter(t, gdb, player, "Aria"),
		bram:   dbtest.CreateCharacter(t, gdb, other, "Bram"),
	}
}

func (f fixture) ledger(t *testing.T) []domain.LedgerEntry {
	t.Helper()
	var entries []domain.LedgerEntry
	require.NoError(t, f.db.Order("id").Find(&entries).Error)
	return entries
}

func TestGrantIsDMOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Grant(ctx, f.player, f.aria.ID, 10, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	p, err := f.svc.Grant(ctx, f.dm, f.aria.ID, 150, "Skull Island chest")
	require.NoError(t, err)
	assert.EqualValues(t, 150, p.Gold)
	assert.Equal(t, f.aria.ID, p.CharacterID)

	entries := f.ledger(t)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LedgerGrant, entries[0].Type)
	assert.Nil(t, entries[0].FromPurseID)
	assert.Equal(t, "dm", entries[0].CreatedBy)

	events := f.rec.Named(realtime.EventPurseUpdate)
	require.Len(t, events, 1)
	assert.EqualValues(t, 150, events[0].Data["gold"])
	assert.Equal(t, realtime.RoomCampaign, events[0].Room)

	_, err = f.svc.Grant(ctx, f.dm, 999, 10, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAmountBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, amount := range []int64{0, -5, MaxAmount + 1} {
		_, err := f.svc.Grant(ctx, f.dm, f.aria.ID, amount, "")
		assert.ErrorIs(t, err, domain.ErrValidation, "amount %d", amount)
	}
	assert.Empty(t, f.ledger(t))
}

func TestSpendNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Grant(ctx, f.dm, f.aria.ID, 50, "")
	require.NoError(t, err)

	_, err = f.svc.Spend(ctx, f.player, f.aria.ID, 51, "ship repairs")
	assert.ErrorIs(t, err, domain.ErrValidation)

	p, err := f.svc.Spend(ctx, f.player, f.aria.ID, 50, "ship repairs")
	require.NoError(t, err)
	assert.Zero(t, p.Gold)

	_, err = f.svc.Spend(ctx, f.player, f.bram.ID, 1, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Len(t, f.ledger(t), 2)
}

func TestConcurrentSpends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Grant(ctx, f.dm, f.aria.ID, 100, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Spend(ctx, f.player, f.aria.ID, 10, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	p, err := f.svc.Balance(ctx, f.player, f.aria.ID)
	require.NoError(t, err)
	assert.Zero(t, p.Gold)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Grant(ctx, f.dm, f.aria.ID, 100, "")
	require.NoError(t, err)
	f.rec.Reset()

	from, to, err := f.svc.Transfer(ctx, f.player, f.aria.ID, f.bram.ID, 40, "share of the loot")
	require.NoError(t, err)
	assert.EqualValues(t, 60, from.Gold)
	assert.EqualValues(t, 40, to.Gold)
	assert.Len(t, f.rec.Named(realtime.EventPurseUpdate), 2)

	entries := f.ledger(t)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.LedgerTransfer, last.Type)
	require.NotNil(t, last.FromPurseID)
	require.NotNil(t, last.ToPurseID)
	assert.Equal(t, from.ID, *last.FromPurseID)
	assert.Equal(t, to.ID, *last.ToPurseID)

	// The recipient's owner cannot pull gold back out of Aria
	_, _, err = f.svc.Transfer(ctx, domain.Identity{UserID: f.bram.UserID, Username: "other", Role: domain.RolePlayer}, f.aria.ID, f.bram.ID, 1, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = f.svc.Transfer(ctx, f.player, f.aria.ID, f.aria.ID, 1, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = f.svc.Transfer(ctx, f.player, f.aria.ID, 999, 1, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = f.svc.Transfer(ctx, f.player, f.aria.ID, f.bram.ID, 61, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Failed transfers leave both purses as they were
	a, err := f.svc.Balance(ctx, f.dm, f.aria.ID)
	require.NoError(t, err)
	b, err := f.svc.Balance(ctx, f.dm, f.bram.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 60, a.Gold)
	assert.EqualValues(t, 40, b.Gold)
}

func TestBalanceCacheInvalidatedOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Balance(ctx, f.player, f.aria.ID)
	require.NoError(t, err)
	assert.Zero(t, p.Gold)
	assert.True(t, f.mr.Exists(cacheKey(f.aria.ID)))

	_, err = f.svc.Grant(ctx, f.dm, f.aria.ID, 5, "")
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(cacheKey(f.aria.ID)))

	p, err = f.svc.Balance(ctx, f.player, f.aria.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, p.Gold)

	_, err = f.svc.Balance(ctx, f.player, f.bram.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestHistoryPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for range 3 {
		_, err := f.svc.Grant(ctx, f.dm, f.aria.ID, 10, "")
		require.NoError(t, err)
	}
	_, err := f.svc.Spend(ctx, f.player, f.aria.ID, 5, "rope")
	require.NoError(t, err)
	_, err = f.svc.Grant(ctx, f.dm, f.bram.ID, 10, "")
	require.NoError(t, err)

	entries, total, err := f.svc.History(ctx, f.player, f.aria.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LedgerSpend, entries[0].Type)
	assert.Equal(t, "rope", entries[0].Note)

	entries, _, err = f.svc.History(ctx, f.player, f.aria.ID, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPurseRemovedWithCharacter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Grant(ctx, f.dm, f.aria.ID, 5, "")
	require.NoError(t, err)

	require.NoError(t, f.db.Delete(&domain.Character{}, f.aria.ID).Error)
	var count int64
	require.NoError(t, f.db.Model(&domain.Purse{}).Count(&count).Error)
	assert.Zero(t, count)
}
