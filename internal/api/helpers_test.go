package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tabletop/internal/battlemap"
	"tabletop/internal/chat"
	"tabletop/internal/combat"
	"tabletop/internal/config"
	"tabletop/internal/db/dbtest"
	"tabletop/internal/dice"
	"tabletop/internal/domain"
	"tabletop/internal/realtime"
	"tabletop/internal/realtime/realtimetest"
	"tabletop/internal/treasury"
	"tabletop/internal/utils"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	mr     *miniredis.Miniredis
	rec    *realtimetest.Recorder
	hub    *realtime.Hub
	cfg    *config.Config
	maps   *battlemap.Service
	router *gin.Engine
	dm     domain.User
	player domain.User
}

type serverOption func(*Deps)

func withRateLimit(limit uint) serverOption {
	return func(d *Deps) {
		d.RateLimit = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Minute, Limit: limit})
	}
}

// withHubPublisher routes broadcasts through the real hub instead of the recorder
func withHubPublisher() serverOption {
	return func(d *Deps) {
		d.Publisher = d.Hub
		d.Chat = chat.NewService(d.DB, d.Redis, d.Hub, dice.NewSeededRoller(1))
		d.Combat = combat.NewService(d.DB, d.Hub)
		d.Maps = battlemap.NewService(d.DB, d.Hub)
		d.Treasury = treasury.NewService(d.DB, d.Redis, d.Hub)
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gdb := dbtest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rec := &realtimetest.Recorder{}
	hub := realtime.NewHub()
	cfg := &config.Config{
		AppVersion:    "test",
		JWTSecret:     testSecret,
		UploadDir:     t.TempDir(),
		MaxUploadSize: 1024,
	}
	deps := Deps{
		Config:    cfg,
		DB:        gdb,
		Redis:     rdb,
		Hub:       hub,
		Publisher: rec,
		Chat:      chat.NewService(gdb, rdb, rec, dice.NewSeededRoller(1)),
		Combat:    combat.NewService(gdb, rec),
		Maps:      battlemap.NewService(gdb, rec),
		Treasury:  treasury.NewService(gdb, rdb, rec),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testServer{
		t:      t,
		db:     gdb,
		mr:     mr,
		rec:    rec,
		hub:    hub,
		cfg:    cfg,
		maps:   deps.Maps,
		router: NewRouter(deps),
		dm:     dbtest.CreateUser(t, gdb, "dm", domain.RoleDM, "password"),
		player: dbtest.CreateUser(t, gdb, "player", domain.RolePlayer, "password"),
	}
}

func (s *testServer) token(u domain.User) string {
	s.t.Helper()
	token, err := utils.GenerateJWT(dbtest.Identity(u), testSecret)
	require.NoError(s.t, err)
	return token
}

// do sends a JSON request as user, or anonymously when user is nil
func (s *testServer) do(method, path string, body any, user *domain.User) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(s.t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*user))
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
