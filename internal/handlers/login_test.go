package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lthummus/loginguard/internal/loginlimit"
	"github.com/lthummus/loginguard/internal/mocks"
	"github.com/lthummus/loginguard/internal/trueip"
	"github.com/lthummus/loginguard/internal/user"
)

var (
	samplePasswordHash = mustHash("test1")

	sampleUser = &user.User{
		Id:           uuid.New().String(),
		Username:     "regularuser",
		PasswordHash: samplePasswordHash,
		CreatedAt:    time.Now().Add(-10 * time.Hour).Unix(),
	}

	sampleDisabledUser = &user.User{
		Id:           uuid.New().String(),
		Username:     "disableduser",
		PasswordHash: samplePasswordHash,
		Disabled:     true,
		CreatedAt:    time.Now().Add(-10 * time.Hour).Unix(),
	}
)

func mustHash(password string) string {
	hash, err := user.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}

func makeTestEnv(t *testing.T) (*mocks.MockDB, *mocks.MockLoginService, *Env) {
	database := mocks.NewMockDB(t)
	logins := mocks.NewMockLoginService(t)

	return database, logins, &Env{
		Database: database,
		Logins:   logins,
	}
}

func makeRealTrackerEnv(t *testing.T) (*mocks.MockDB, *loginlimit.AttemptTracker, *Env) {
	database := mocks.NewMockDB(t)
	tracker := loginlimit.NewAttemptTracker(loginlimit.Settings{})

	return database, tracker, &Env{
		Database: database,
		Logins:   loginlimit.NewLoginService(tracker),
	}
}

func makeLoginRequest(t *testing.T, username string, password string) *http.Request {
	t.Helper()

	v := url.Values{}
	v.Add("username", username)
	v.Add("password", password)

	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(v.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return r
}

func decodeLoginResponse(t *testing.T, w *httptest.ResponseRecorder) loginResponse {
	t.Helper()

	var res loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func forUsername(username string) any {
	return mock.MatchedBy(func(u *user.User) bool {
		return u != nil && u.Username == username
	})
}

func TestEnv_HandleLogin(t *testing.T) {
	t.Run("only POST is routed", func(t *testing.T) {
		_, _, e := makeTestEnv(t)

		r := httptest.NewRequest(http.MethodGet, "/login", nil)
		w := httptest.NewRecorder()

		e.BuildRouter().ServeHTTP(w, r)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Result().StatusCode)
	})

	t.Run("CSRF detection", func(t *testing.T) {
		_, _, e := makeTestEnv(t)

		r := makeLoginRequest(t, "regularuser", "test1")
		r.Header.Set("Sec-Fetch-Site", "cross-origin")
		w := httptest.NewRecorder()

		e.BuildRouter().ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
	})

	t.Run("locked account never reaches the database", func(t *testing.T) {
		_, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("regularuser")).Return(true)
		ll.On("LockoutWindow").Return(1 * time.Hour)

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "test1"))

		assert.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode)
		assert.Equal(t, "3600", w.Result().Header.Get("Retry-After"))

		res := decodeLoginResponse(t, w)
		assert.False(t, res.Authenticated)
		assert.Equal(t, "This account is temporarily locked. Try again in 1 hour", res.Message)
	})

	t.Run("gracefully handle database error", func(t *testing.T) {
		db, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("regularuser")).Return(false)
		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(nil, errors.New("whoops"))

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "test1"))

		assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	})

	t.Run("unknown user counts as a failure", func(t *testing.T) {
		db, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("nobody")).Return(false)
		db.On("GetUserByUsername", mock.Anything, "nobody").Return(nil, nil)
		ll.On("ReserveAttempt", loginlimit.NewAuthenticationEvent("nobody")).Return(true)
		ll.On("AttemptsRemaining", "nobody").Return(4)

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "nobody", "test1"))

		assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)

		res := decodeLoginResponse(t, w)
		assert.False(t, res.Authenticated)
		require.NotNil(t, res.AttemptsRemaining)
		assert.Equal(t, 4, *res.AttemptsRemaining)
		assert.Equal(t, "Invalid username or password. You have 4 more attempts before the account is temporarily locked", res.Message)
	})

	t.Run("wrong password counts as a failure", func(t *testing.T) {
		db, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("regularuser")).Return(false)
		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)
		ll.On("ReserveAttempt", loginlimit.NewAuthenticationEvent("regularuser")).Return(true)
		ll.On("AttemptsRemaining", "regularuser").Return(2)

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "wrong"))

		assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
		assert.Equal(t, 2, *decodeLoginResponse(t, w).AttemptsRemaining)
	})

	t.Run("failure that uses up the last attempt", func(t *testing.T) {
		db, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("regularuser")).Return(false)
		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)
		ll.On("ReserveAttempt", loginlimit.NewAuthenticationEvent("regularuser")).Return(true)
		ll.On("AttemptsRemaining", "regularuser").Return(0)
		ll.On("LockoutWindow").Return(90 * time.Minute)

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "wrong"))

		assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)

		res := decodeLoginResponse(t, w)
		assert.Equal(t, 0, *res.AttemptsRemaining)
		assert.Equal(t, "Invalid username or password. This account has been locked for 1 hour 30 minutes due to multiple failures", res.Message)
	})

	t.Run("successful login", func(t *testing.T) {
		db, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("regularuser")).Return(false)
		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)
		ll.On("ReserveAttempt", loginlimit.NewAuthenticationEvent("regularuser")).Return(true)
		ll.On("RegisterAuthenticationSuccess", loginlimit.NewAuthenticationEvent("regularuser")).Return()

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "test1"))

		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		assert.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))

		res := decodeLoginResponse(t, w)
		assert.True(t, res.Authenticated)
		assert.Nil(t, res.AttemptsRemaining)
	})

	t.Run("attempt over the limit is refused even with the right password", func(t *testing.T) {
		db, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("regularuser")).Return(false)
		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)
		ll.On("ReserveAttempt", loginlimit.NewAuthenticationEvent("regularuser")).Return(false)
		ll.On("LockoutWindow").Return(1 * time.Hour)

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "test1"))

		assert.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode)
		assert.False(t, decodeLoginResponse(t, w).Authenticated)
	})

	t.Run("disabled account", func(t *testing.T) {
		db, ll, e := makeTestEnv(t)

		ll.On("IsBlocked", forUsername("disableduser")).Return(false)
		db.On("GetUserByUsername", mock.Anything, "disableduser").Return(sampleDisabledUser, nil)
		ll.On("ReserveAttempt", loginlimit.NewAuthenticationEvent("disableduser")).Return(true)
		ll.On("RegisterAuthenticationSuccess", loginlimit.NewAuthenticationEvent("disableduser")).Return()

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "disableduser", "test1"))

		assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
		assert.False(t, decodeLoginResponse(t, w).Authenticated)
	})
}

func TestEnv_HandleLogin_WithTracker(t *testing.T) {
	t.Run("lock after five failures", func(t *testing.T) {
		db, tracker, e := makeRealTrackerEnv(t)

		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)

		for i := range 5 {
			w := httptest.NewRecorder()
			e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "wrong"))

			assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
			assert.Equal(t, 4-i, *decodeLoginResponse(t, w).AttemptsRemaining)
		}

		// the right password doesn't help once the account is locked
		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "test1"))
		assert.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode)

		assert.Equal(t, 5, tracker.Failures("regularuser"))
		db.AssertNumberOfCalls(t, "GetUserByUsername", 5)
	})

	t.Run("success resets the count", func(t *testing.T) {
		db, tracker, e := makeRealTrackerEnv(t)

		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)

		for range 4 {
			w := httptest.NewRecorder()
			e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "wrong"))
			assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
		}

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "test1"))
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		assert.Equal(t, 0, tracker.Failures("regularuser"))

		w = httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "wrong"))
		assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
		assert.Equal(t, 4, *decodeLoginResponse(t, w).AttemptsRemaining)
	})

	t.Run("unknown usernames get locked too", func(t *testing.T) {
		db, tracker, e := makeRealTrackerEnv(t)

		db.On("GetUserByUsername", mock.Anything, "ghost").Return(nil, nil)

		for range 5 {
			w := httptest.NewRecorder()
			e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "ghost", "anything"))
			assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
		}

		assert.False(t, tracker.HasAttemptsRemaining("ghost"))

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "ghost", "anything"))
		assert.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode)
	})

	t.Run("locking one user leaves others alone", func(t *testing.T) {
		db, tracker, e := makeRealTrackerEnv(t)

		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)

		for range 5 {
			tracker.RegisterFailure("someoneelse")
		}

		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, makeLoginRequest(t, "regularuser", "test1"))
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	})

	t.Run("concurrent guesses stop at the limit", func(t *testing.T) {
		db, tracker, e := makeRealTrackerEnv(t)

		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil)

		router := e.BuildRouter()
		codes := make(chan int, 20)

		var wg sync.WaitGroup
		for range 20 {
			wg.Go(func() {
				w := httptest.NewRecorder()
				router.ServeHTTP(w, makeLoginRequest(t, "regularuser", "wrong"))
				codes <- w.Result().StatusCode
			})
		}
		wg.Wait()
		close(codes)

		seen := map[int]int{}
		for curr := range codes {
			seen[curr]++
		}

		assert.Equal(t, 5, seen[http.StatusUnauthorized])
		assert.Equal(t, 15, seen[http.StatusTooManyRequests])
		assert.False(t, tracker.HasAttemptsRemaining("regularuser"))
	})

	t.Run("lockout follows the username across client addresses", func(t *testing.T) {
		db, _, e := makeRealTrackerEnv(t)
		e.Proxies = trueip.NewResolver("", []string{"192.0.2.0/24"})

		db.On("GetUserByUsername", mock.Anything, "regularuser").Return(sampleUser, nil).Times(5)

		for i := range 5 {
			r := makeLoginRequest(t, "regularuser", "wrong")
			r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
			w := httptest.NewRecorder()
			e.BuildRouter().ServeHTTP(w, r)
			assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
		}

		r := makeLoginRequest(t, "regularuser", "test1")
		r.Header.Set("X-Forwarded-For", "198.51.100.99")
		w := httptest.NewRecorder()
		e.BuildRouter().ServeHTTP(w, r)
		assert.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode)
	})
}

func TestEnv_HandleHealth(t *testing.T) {
	_, _, e := makeTestEnv(t)

	r := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	e.BuildRouter().ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "ok", w.Body.String())
}
