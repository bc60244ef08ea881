package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"titleCountdown/internal/app/events"
	"titleCountdown/internal/app/runtime"
	"titleCountdown/internal/domain"
	"titleCountdown/internal/infrastructure/config"
)

type twitchStub struct {
	mu      sync.Mutex
	forms   []url.Values
	auth    []string
	patches []string
	title   string
}

func (s *twitchStub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		s.mu.Lock()
		s.forms = append(s.forms, r.PostForm)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok1","token_type":"bearer","expires_in":14400}`)
	})

	mux.HandleFunc("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("login") != "teststreamer" {
			_, _ = io.WriteString(w, `{"data":[]}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"42","login":"teststreamer"}]}`)
	})

	mux.HandleFunc("/helix/channels", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		id := r.URL.Query().Get("broadcaster_id")

		switch r.Method {
		case http.MethodGet:
			s.mu.Lock()
			title := s.title
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{"broadcaster_id": id, "title": title}},
			})
		case http.MethodPatch:
			var body struct {
				Title string `json:"title"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			s.mu.Lock()
			s.title = body.Title
			s.patches = append(s.patches, id+"="+body.Title)
			s.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return mux
}

func (s *twitchStub) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = append(s.auth, r.Header.Get("Authorization"))
}

func (s *twitchStub) snapshot() (forms []url.Values, auth, patches []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(forms, s.forms...), append(auth, s.auth...), append(patches, s.patches...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	cfg    *config.Config
	stub   *twitchStub
	clock  *clock
	opened chan string
	bus    *events.Bus
	rt     *runtime.Runtime
}

func newFixture(t *testing.T, credentials string) *fixture {
	t.Helper()

	dir := t.TempDir()
	if credentials != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.CredentialsFile), []byte(credentials), 0o600))
	}

	stub := &twitchStub{title: "Hello World"}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		UpdateInterval:     time.Hour,
		LoginTimeout:       10 * time.Second,
		TwitchAPIBaseURL:   srv.URL + "/helix",
		TwitchAuthorizeURL: config.DefaultTwitchAuthorizeURL,
		TwitchTokenURL:     srv.URL + "/oauth2/token",
	}
	cfg.SetDir(dir)

	f := &fixture{
		cfg:    cfg,
		stub:   stub,
		clock:  &clock{now: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)},
		opened: make(chan string, 2),
		bus:    events.NewBus(zap.NewNop()),
	}
	f.rt = runtime.New(runtime.Options{
		Config: cfg,
		Logger: zap.NewNop(),
		Bus:    f.bus,
		Opener: func(u string) error {
			f.opened <- u
			return nil
		},
		Now: f.clock.Now,
	})
	require.NoError(t, f.rt.Load(context.Background()))
	t.Cleanup(f.rt.Unload)

	return f
}

const validCredentials = `{"client_id":"abc","client_secret":"xyz"}`

func TestLoginThenTick(t *testing.T) {
	t.Parallel()

	f := newFixture(t, validCredentials)

	attempt, err := f.rt.Login(context.Background())
	require.NoError(t, err)

	authURL, err := url.Parse(<-f.opened)
	require.NoError(t, err)
	assert.Equal(t, "abc", authURL.Query().Get("client_id"))
	assert.Equal(t, "code", authURL.Query().Get("response_type"))
	assert.Equal(t, "channel:manage:broadcast", authURL.Query().Get("scope"))
	assert.Equal(t, attempt.RedirectURI, authURL.Query().Get("redirect_uri"))

	resp, err := http.Get(attempt.RedirectURI + "/?code=authcode123&state=" + url.QueryEscape(authURL.Query().Get("state")))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Authentication successful! You can close this window.", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, attempt.Wait(ctx))

	saved, err := os.ReadFile(f.cfg.TokenPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"tok1"}`, string(saved))

	forms, _, _ := f.stub.snapshot()
	require.Len(t, forms, 1)
	assert.Equal(t, "authorization_code", forms[0].Get("grant_type"))
	assert.Equal(t, "authcode123", forms[0].Get("code"))
	assert.Equal(t, "abc", forms[0].Get("client_id"))
	assert.Equal(t, "xyz", forms[0].Get("client_secret"))
	assert.Equal(t, attempt.RedirectURI, forms[0].Get("redirect_uri"))

	require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 60, ChannelName: "teststreamer"}))
	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.rt.Tick(context.Background()))

	_, auth, patches := f.stub.snapshot()
	assert.Equal(t, []string{"42=Hello World — Stream ends 00:59:30"}, patches)
	for _, header := range auth {
		assert.Equal(t, "Bearer tok1", header)
	}

	f.clock.Advance(time.Minute)
	require.NoError(t, f.rt.Tick(context.Background()))
	_, _, patches = f.stub.snapshot()
	assert.Equal(t, "42=Hello World — Stream ends 00:58:30", patches[len(patches)-1])

	st := f.rt.Status()
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "teststreamer", st.Channel)
	assert.Equal(t, "00:58:30", st.Remaining)
	assert.Equal(t, "idle", st.AuthState)
}

func TestSavedTokenIsUsed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.TokenFile), []byte(`{"access_token":"saved"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CredentialsFile), []byte(validCredentials), 0o600))

	stub := &twitchStub{title: "Hello World"}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{UpdateInterval: time.Hour, TwitchAPIBaseURL: srv.URL + "/helix"}
	cfg.SetDir(dir)

	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	rt := runtime.New(runtime.Options{Config: cfg, Now: func() time.Time { return now }})
	require.NoError(t, rt.Load(context.Background()))
	t.Cleanup(rt.Unload)

	require.NoError(t, rt.ApplySettings(domain.Settings{DurationMinutes: 90, ChannelName: "teststreamer"}))
	require.NoError(t, rt.Tick(context.Background()))

	_, auth, patches := stub.snapshot()
	assert.Equal(t, []string{"42=Hello World — Stream ends 01:30:00"}, patches)
	assert.Contains(t, auth, "Bearer saved")
}

func TestMissingCredentialsDisableRuntime(t *testing.T) {
	t.Parallel()

	tt := map[string]string{
		"missing file":   "",
		"malformed json": `{"client_id":`,
		"missing secret": `{"client_id":"abc"}`,
	}

	for scenario, credentials := range tt {
		credentials := credentials
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, credentials)

			_, err := f.rt.Login(context.Background())
			assert.True(t, errors.Is(err, domain.ErrFeatureDisabled))

			assert.True(t, errors.Is(f.rt.Tick(context.Background()), domain.ErrFeatureDisabled))

			require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 10, ChannelName: "teststreamer", Enabled: true}))
			assert.False(t, f.rt.TimerActive())

			st := f.rt.Status()
			assert.True(t, st.Disabled)
			assert.True(t, st.Enabled)
			assert.Equal(t, "00:10:00", st.Remaining)

			_, _, patches := f.stub.snapshot()
			assert.Empty(t, patches)
		})
	}
}

func TestApplySettingsRejectsInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t, validCredentials)
	require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 30, ChannelName: "teststreamer"}))

	err := f.rt.ApplySettings(domain.Settings{DurationMinutes: 0, ChannelName: "teststreamer", Enabled: true})
	require.Error(t, err)

	assert.False(t, f.rt.TimerActive())
	assert.Equal(t, "00:30:00", f.rt.Status().Remaining)
}

func TestApplySettingsTogglesTimer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, validCredentials)
	applied, unsubscribe := f.bus.Subscribe(events.TopicSettingsApplied)
	defer unsubscribe()

	require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 5, ChannelName: " teststreamer ", Enabled: true}))
	assert.True(t, f.rt.TimerActive())

	ev := (<-applied).(events.SettingsAppliedEvent)
	assert.Equal(t, "teststreamer", ev.ChannelName)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), ev.EndTime)

	require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 5, ChannelName: "teststreamer", Enabled: true}))
	assert.True(t, f.rt.TimerActive())

	require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 5, ChannelName: "teststreamer"}))
	assert.False(t, f.rt.TimerActive())
}

func TestTickStopsTimerWhenElapsed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, validCredentials)
	f.rt.Session().SetToken("tok1")

	require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 1, ChannelName: "teststreamer", Enabled: true}))
	require.True(t, f.rt.TimerActive())

	f.clock.Advance(2 * time.Minute)
	err := f.rt.Tick(context.Background())
	assert.True(t, errors.Is(err, domain.ErrCountdownElapsed))
	assert.False(t, f.rt.TimerActive())

	_, _, patches := f.stub.snapshot()
	assert.Empty(t, patches)
}

func TestTickWithoutLoginMakesNoRequests(t *testing.T) {
	t.Parallel()

	f := newFixture(t, validCredentials)
	require.NoError(t, f.rt.ApplySettings(domain.Settings{DurationMinutes: 60, ChannelName: "teststreamer"}))

	assert.True(t, errors.Is(f.rt.Tick(context.Background()), domain.ErrNotLoggedIn))

	_, auth, _ := f.stub.snapshot()
	assert.Empty(t, auth)
}

func TestLoginWhileInProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t, validCredentials)

	first, err := f.rt.Login(context.Background())
	require.NoError(t, err)
	<-f.opened

	_, err = f.rt.Login(context.Background())
	assert.True(t, errors.Is(err, domain.ErrAuthInProgress))
	assert.Equal(t, "listening", f.rt.Status().AuthState)

	f.rt.Unload()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.Error(t, first.Wait(ctx))
	assert.False(t, f.rt.Session().AuthInProgress())
	assert.False(t, strings.Contains(f.rt.Status().AuthState, "listening"))
}
