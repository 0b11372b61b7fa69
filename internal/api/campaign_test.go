package api

import (
	"net/http"
	"testing"

	"tabletop/internal/domain"
	"tabletop/internal/realtime"
	"tabletop/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignLastWriteWins(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPut, "/api/campaign/location", map[string]any{"value": "X"}, &s.player)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/campaign", nil, &s.player)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "X", decodeBody(t, w)["location"])
	assert.True(t, s.mr.Exists(utils.CacheKeyCampaign))

	w = s.do(http.MethodPut, "/api/campaign/location", map[string]any{"value": "Y"}, &s.dm)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.mr.Exists(utils.CacheKeyCampaign))

	w = s.do(http.MethodGet, "/api/campaign", nil, &s.player)
	assert.Equal(t, "Y", decodeBody(t, w)["location"])

	var entries []domain.CampaignEntry
	require.NoError(t, s.db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "dm", entries[0].UpdatedBy)

	events := s.rec.Named(realtime.EventCampaignUpdate)
	require.Len(t, events, 2)
	assert.Equal(t, "Y", events[1].Data["value"])
	assert.Equal(t, "location", events[1].Data["key"])
}

func TestCampaignStoresStructuredValues(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPut, "/api/campaign/npcs", `{"value": [{"name": "Martha", "friendly": true}]}`, &s.player)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Values that are not JSON come back as raw text
	require.NoError(t, s.db.Create(&domain.CampaignEntry{Key: "legacy", Value: "plain words", UpdatedBy: "System"}).Error)

	body := decodeBody(t, s.do(http.MethodGet, "/api/campaign", nil, &s.player))
	assert.Equal(t, []any{map[string]any{"name": "Martha", "friendly": true}}, body["npcs"])
	assert.Equal(t, "plain words", body["legacy"])
}

func TestCampaignRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/campaign/bad%20key", map[string]any{"value": 1}, &s.player).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/campaign/ok", map[string]any{}, &s.player).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/campaign/ok", `{"value": `, &s.player).Code)
	assert.Empty(t, s.rec.Events())
}

func TestBookSections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/dm/book/overview", nil, &s.dm)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["content"])

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/dm/book/overview", nil, &s.player).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/dm/book/appendix", nil, &s.dm).Code)
}
