package api

import (
	"net/http"
	"strconv"
	"testing"

	"tabletop/internal/domain"
	"tabletop/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func npcNames(t *testing.T, body map[string]any) []string {
	t.Helper()
	var names []string
	for _, n := range body["npcs"].([]any) {
		names = append(names, n.(map[string]any)["name"].(string))
	}
	return names
}

func TestNPCRoster(t *testing.T) {
	s := newTestServer(t)

	blackwater := map[string]any{
		"name": "Captain Blackwater", "location": "The Rusty Anchor", "role": "Quest Giver",
		"importance": "high", "personality": "Gruff",
		"responses": map[string]any{"greeting": []string{"Sit down."}},
	}
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/npcs", blackwater, &s.player).Code)

	for _, body := range []map[string]any{
		{"name": "Zed", "location": "Docks", "role": "Smuggler", "importance": "medium"},
		{"name": "Anna", "location": "Docks", "role": "Fisher"},
		blackwater,
		{"name": "Bo", "location": "Docks", "role": "Sailor", "importance": "medium"},
	} {
		w := s.do(http.MethodPost, "/api/npcs", body, &s.dm)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// Importance first (not alphabetical), then name
	w := s.do(http.MethodGet, "/api/npcs", nil, &s.dm)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, []string{"Captain Blackwater", "Bo", "Zed", "Anna"}, npcNames(t, body))
	top := body["npcs"].([]any)[0].(map[string]any)
	assert.Equal(t, "Gruff", top["personality"])
	assert.Equal(t, []any{"Sit down."}, top["responses"].(map[string]any)["greeting"])
	assert.Equal(t, "low", body["npcs"].([]any)[3].(map[string]any)["importance"])

	// Players see who and where, not the DM's notes
	body = decodeBody(t, s.do(http.MethodGet, "/api/npcs", nil, &s.player))
	top = body["npcs"].([]any)[0].(map[string]any)
	assert.Equal(t, "Captain Blackwater", top["name"])
	assert.NotContains(t, top, "personality")
	assert.NotContains(t, top, "responses")

	assert.Len(t, s.rec.Named(realtime.EventNPCUpdate), 4)
}

func TestNPCValidation(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []any{
		map[string]any{"location": "Docks", "role": "Sailor"},
		map[string]any{"name": "Bo", "location": "Docks", "role": "Sailor", "importance": "legendary"},
		`{"name": "Bo"`,
	} {
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/npcs", body, &s.dm).Code)
	}
	assert.Empty(t, s.rec.Named(realtime.EventNPCUpdate))
}

func TestNPCUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	npc := domain.NPC{Name: "Martha", Location: "Tavern", Role: "Keeper", Importance: domain.ImportanceLow, Personality: "Kind"}
	require.NoError(t, s.db.Create(&npc).Error)
	path := "/api/npcs/" + strconv.Itoa(int(npc.ID))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, path, map[string]any{"importance": "high"}, &s.player).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, path, map[string]any{"importance": "epic"}, &s.dm).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/api/npcs/999", map[string]any{"role": "X"}, &s.dm).Code)

	w := s.do(http.MethodPut, path, map[string]any{"importance": "high", "responses": map[string]any{"help": []string{"Ask Rodriguez."}}}, &s.dm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored domain.NPC
	require.NoError(t, s.db.First(&stored, npc.ID).Error)
	assert.Equal(t, domain.ImportanceHigh, stored.Importance)
	assert.Equal(t, "Martha", stored.Name)
	assert.Equal(t, "Kind", stored.Personality)
	assert.Equal(t, domain.Responses{"help": {"Ask Rodriguez."}}, stored.Responses)
	assert.Equal(t, "dm", stored.UpdatedBy)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, path, nil, &s.player).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, path, nil, &s.dm).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, nil, &s.dm).Code)

	events := s.rec.Named(realtime.EventNPCUpdate)
	require.Len(t, events, 2)
	assert.Equal(t, "delete", events[1].Data["action"])
}
