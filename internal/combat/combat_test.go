package combat

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"tabletop/internal/db/dbtest"
	"tabletop/internal/domain"
	"tabletop/internal/realtime"
	"tabletop/internal/realtime/realtimetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *Service
	db     *gorm.DB
	rec    *realtimetest.Recorder
	dm     domain.Identity
	player domain.Identity
	owner  domain.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gdb := dbtest.New(t)
	rec := &realtimetest.Recorder{}
	dm := dbtest.CreateUser(t, gdb, "dm", domain.RoleDM, "password")
	player := dbtest.CreateUser(t, gdb, "player", domain.RolePlayer, "password")
	return fixture{
		svc:    NewService(gdb, rec),
		db:     gdb,
		rec:    rec,
		dm:     dbtest.Identity(dm),
		player: dbtest.Identity(player),
		owner:  player,
	}
}

func TestTurnOrderScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Start(ctx, f.dm, "", []Combatant{
		{ID: "a", Name: "Goblin", Initiative: 2},
		{ID: "b", Name: "Orc", Initiative: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTable, st.Table)
	assert.Equal(t, 1, st.Round)
	assert.Equal(t, 0, st.CurrentTurn)
	assert.Equal(t, CombatantID("a"), st.Combatants[0].ID)

	st, err = f.svc.NextTurn(ctx, f.dm, "")
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentTurn)
	assert.Equal(t, 1, st.Round)

	st, err = f.svc.NextTurn(ctx, f.dm, "")
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentTurn)
	assert.Equal(t, 2, st.Round)

	st, err = f.svc.NextTurn(ctx, f.dm, "")
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentTurn)
	assert.Equal(t, 2, st.Round)

	assert.Len(t, f.rec.Named(realtime.EventCombatStarted), 1)
	assert.Len(t, f.rec.Named(realtime.EventCombatTurnChanged), 3)
}

func TestThreeCombatantsWrapToNextRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.dm, "", []Combatant{
		{ID: "a", Name: "A", Initiative: 10},
		{ID: "b", Name: "B", Initiative: 5},
		{ID: "c", Name: "C", Initiative: 1},
	})
	require.NoError(t, err)

	var st State
	for i := 0; i < 3; i++ {
		st, err = f.svc.NextTurn(ctx, f.dm, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, st.CurrentTurn)
	assert.Equal(t, 2, st.Round)
}

func TestStartSortIsStable(t *testing.T) {
	st, err := newEncounter("main", []Combatant{
		{ID: "first", Initiative: 12},
		{ID: "low", Initiative: 3},
		{ID: "second", Initiative: 12},
		{ID: "high", Initiative: 20},
	})
	require.NoError(t, err)

	ids := make([]CombatantID, len(st.Combatants))
	for i, c := range st.Combatants {
		ids[i] = c.ID
	}
	assert.Equal(t, []CombatantID{"high", "first", "second", "low"}, ids)
}

func TestCombatantIDAcceptsNumbers(t *testing.T) {
	var got []Combatant
	require.NoError(t, json.Unmarshal([]byte(`[{"id":1,"initiative":15},{"id":"goblin","initiative":20}]`), &got))
	assert.Equal(t, CombatantID("1"), got[0].ID)
	assert.Equal(t, CombatantID("goblin"), got[1].ID)

	assert.Error(t, json.Unmarshal([]byte(`[{"id":true}]`), &got))
}

func TestStartRejectsEmptyAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.dm, "", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Start(ctx, f.dm, "", []Combatant{{ID: "x", Name: "X"}, {ID: "x", Name: "Y"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.False(t, f.svc.State("").Active)
	assert.Empty(t, f.rec.Events())
}

func TestNextTurnWhenIdleIsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.NextTurn(context.Background(), f.dm, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.rec.Events())
}

func TestPlayersCannotDriveCombat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.player, "", []Combatant{{ID: "a", Name: "A"}})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.NextTurn(ctx, f.player, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.End(ctx, f.player, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestStartAndEndFlagCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hero := dbtest.CreateCharacter(t, f.db, f.owner, "Hero")

	_, err := f.svc.Start(ctx, f.dm, "", []Combatant{
		{ID: CombatantID(strconv.Itoa(int(hero.ID))), Name: hero.Name, Initiative: 17, Type: TypeCharacter},
		{ID: "goblin", Name: "Goblin", Initiative: 9},
	})
	require.NoError(t, err)

	var stored domain.Character
	require.NoError(t, f.db.First(&stored, hero.ID).Error)
	assert.True(t, stored.InCombat)
	assert.Equal(t, 17, stored.Initiative)

	_, err = f.svc.End(ctx, f.dm, "")
	require.NoError(t, err)
	require.NoError(t, f.db.First(&stored, hero.ID).Error)
	assert.False(t, stored.InCombat)
	assert.Equal(t, 0, stored.Initiative)
	assert.False(t, f.svc.State("").Active)
	assert.Len(t, f.rec.Named(realtime.EventCombatEnded), 1)
}

func TestStartWithUnknownCharacterChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hero := dbtest.CreateCharacter(t, f.db, f.owner, "Hero")

	_, err := f.svc.Start(ctx, f.dm, "", []Combatant{
		{ID: CombatantID(strconv.Itoa(int(hero.ID))), Name: hero.Name, Initiative: 5, Type: TypeCharacter},
		{ID: "9999", Name: "Ghost", Initiative: 3, Type: TypeCharacter},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var stored domain.Character
	require.NoError(t, f.db.First(&stored, hero.ID).Error)
	assert.False(t, stored.InCombat)
	assert.False(t, f.svc.State("").Active)
}

func TestTablesAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.dm, "crypt", []Combatant{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
	require.NoError(t, err)

	assert.True(t, f.svc.State("crypt").Active)
	assert.False(t, f.svc.State("").Active)

	_, err = f.svc.Start(ctx, f.dm, "crypt", []Combatant{{ID: "c", Name: "C"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestConcurrentNextTurnNeverLosesAnAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	combatants := make([]Combatant, 5)
	for i := range combatants {
		combatants[i] = Combatant{ID: CombatantID(strconv.Itoa(i + 100)), Name: "npc", Initiative: i}
	}
	_, err := f.svc.Start(ctx, f.dm, "", combatants)
	require.NoError(t, err)

	const advances = 50
	var wg sync.WaitGroup
	for i := 0; i < advances; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.NextTurn(ctx, f.dm, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st := f.svc.State("")
	assert.Equal(t, advances%5, st.CurrentTurn)
	assert.Equal(t, 1+advances/5, st.Round)

	// Broadcasts carry the turns in the order they were applied.
	events := f.rec.Named(realtime.EventCombatTurnChanged)
	require.Len(t, events, advances)
	for i, e := range events {
		assert.EqualValues(t, (i+1)%5, e.Data["current_turn"])
	}
}

func TestUpdateHPClampsAndChecksOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hero := dbtest.CreateCharacter(t, f.db, f.owner, "Hero")
	other := dbtest.CreateUser(t, f.db, "other", domain.RolePlayer, "password")

	upd, err := f.svc.UpdateHP(ctx, f.player, hero.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, hero.HPMax, upd.HPCurrent)

	upd, err = f.svc.UpdateHP(ctx, f.dm, hero.ID, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, upd.HPCurrent)
	assert.Equal(t, "dm", upd.UpdatedBy)

	_, err = f.svc.UpdateHP(ctx, dbtest.Identity(other), hero.ID, 5)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateHP(ctx, f.dm, 9999, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var stored domain.Character
	require.NoError(t, f.db.First(&stored, hero.ID).Error)
	assert.Equal(t, 0, stored.HPCurrent)
	assert.Len(t, f.rec.Named(realtime.EventHPUpdated), 2)
}
