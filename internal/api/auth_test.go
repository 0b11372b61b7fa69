package api

import (
	"net/http"
	"testing"

	"tabletop/internal/domain"
	"tabletop/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]map[string]string{
		"short username":   {"username": "ab", "password": "secret1"},
		"bad characters":   {"username": "bad name!", "password": "secret1"},
		"short password":   {"username": "valid_name", "password": "12345"},
		"missing password": {"username": "valid_name"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/register", body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, decodeBody(t, w)["success"])
		})
	}

	var count int64
	require.NoError(t, s.db.Model(&domain.User{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestRegisterThenLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/register", map[string]string{"username": "Newbie", "password": "hunter22"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user domain.User
	require.NoError(t, s.db.Where("username = ?", "newbie").First(&user).Error)
	assert.Equal(t, domain.RolePlayer, user.Role)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	w = s.do(http.MethodPost, "/register", map[string]string{"username": "newbie", "password": "hunter22"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/login", map[string]string{"username": "NEWBIE", "password": "hunter22"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "player", body["role"])
	assert.NotEmpty(t, body["token"])

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, body["token"], session.Value)

	require.NoError(t, s.db.First(&user, user.ID).Error)
	assert.NotNil(t, user.LastLogin)

	// The cookie alone authenticates API calls
	req := newRequest(http.MethodGet, "/api/characters")
	req.AddCookie(session)
	assert.Equal(t, http.StatusOK, s.serve(req).Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/login", map[string]string{"username": "player", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])

	w = s.do(http.MethodPost, "/login", map[string]string{"username": "nobody", "password": "password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutExpiresCookie(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/logout", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestProtectedRoutesRequireIdentity(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/characters", "/api/campaign", "/api/messages", "/api/combat/state", "/api/battlemap/state", "/api/files", "/ws"} {
		w := s.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, false, decodeBody(t, w)["success"], path)
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t, withRateLimit(2))
	creds := map[string]string{"username": "player", "password": "wrong"}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/login", creds, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/login", creds, nil).Code)

	w := s.do(http.MethodPost, "/login", creds, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["timestamp"])
}
