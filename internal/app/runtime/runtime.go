package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"titleCountdown/internal/app/events"
	"titleCountdown/internal/domain"
	"titleCountdown/internal/infrastructure/config"
	"titleCountdown/internal/infrastructure/persistence/tokenfile"
	twitchinfra "titleCountdown/internal/infrastructure/platform/twitch"
	"titleCountdown/internal/usecase/countdown"
	"titleCountdown/internal/usecase/oauth"
)

type Options struct {
	Config *config.Config
	Logger *zap.Logger
	Bus    *events.Bus
	Opener domain.URLOpener

	// Now defaults to time.Now.
	Now func() time.Time
	// HTTPClient is shared by the Helix client and the token exchange.
	HTTPClient *http.Client
	// Channels replaces the Helix-backed channel service.
	Channels domain.ChannelService
}

type tokenUpdater interface {
	UpdateAccessToken(token string)
}

// Status is a point-in-time view of the runtime for the control API.
type Status struct {
	Enabled     bool      `json:"enabled"`
	Disabled    bool      `json:"disabled"`
	LoggedIn    bool      `json:"logged_in"`
	Channel     string    `json:"channel"`
	EndTime     time.Time `json:"end_time"`
	Remaining   string    `json:"remaining"`
	EndsIn      string    `json:"ends_in,omitempty"`
	TimerActive bool      `json:"timer_active"`
	AuthState   string    `json:"auth_state"`
}

// Runtime ties the session, the login flow and the periodic title update to
// the process lifecycle: Load on start, ApplySettings whenever settings
// change, Login on request and Unload on shutdown.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg    *config.Config
	logger *zap.Logger
	bus    *events.Bus
	opener domain.URLOpener
	now    func() time.Time
	client *http.Client

	session  *domain.Session
	tokens   *tokenfile.Store
	channels domain.ChannelService
	updater  *countdown.Updater
	flow     *oauth.Flow

	scheduler *gocron.Scheduler
	jobMu     sync.Mutex
	job       *gocron.Job

	mu       sync.RWMutex
	loaded   bool
	disabled bool
}

func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		bus:      opts.Bus,
		opener:   opts.Opener,
		now:      now,
		client:   opts.HTTPClient,
		channels: opts.Channels,
		session:  domain.NewSession(),
		tokens:   tokenfile.NewStore(cfg.TokenPath),
	}
}

// Load reads credentials and the saved token. Missing credentials leave the
// runtime disabled until the process exits; that is logged, not returned.
func (r *Runtime) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.loaded = true

	creds, err := config.LoadCredentials(r.cfg.CredentialsPath)
	if err != nil {
		r.disabled = true
		r.logger.Error("failed to load configuration, title updates disabled",
			zap.Error(err), zap.String("path", r.cfg.CredentialsPath))
		r.publishError("load", err)
		return nil
	}

	token, err := r.tokens.Load()
	if err != nil {
		r.logger.Warn("ignoring unreadable access token", zap.Error(err), zap.String("path", r.tokens.Path()))
	}
	r.session.SetToken(token)

	if r.channels == nil {
		svc, err := twitchinfra.NewHelixChannelService(twitchinfra.Options{
			ClientID:        creds.ClientID,
			UserAccessToken: r.session.Token(),
			APIBaseURL:      r.cfg.TwitchAPIBaseURL,
			HTTPClient:      r.client,
		})
		if err != nil {
			r.cancel()
			r.loaded = false
			return fmt.Errorf("runtime: load: %w", err)
		}
		r.channels = svc
	}

	var publisher domain.EventPublisher
	if r.bus != nil {
		publisher = r.bus
	}

	r.updater = countdown.NewUpdater(r.session, r.channels, r.logger,
		countdown.WithClock(r.now),
		countdown.WithPublisher(publisher),
	)

	r.flow = oauth.NewFlow(oauth.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		AuthorizeURL: r.cfg.TwitchAuthorizeURL,
		TokenURL:     r.cfg.TwitchTokenURL,
		Timeout:      r.cfg.LoginTimeout,
		HTTPClient:   r.client,
	}, r.session, r.tokens, r.opener, r.logger, publisher)

	if tu, ok := r.channels.(tokenUpdater); ok {
		r.flow.RegisterHook(tu.UpdateAccessToken)
	}

	r.scheduler = gocron.NewScheduler(time.UTC)
	r.scheduler.StartAsync()

	r.logger.Info("twitch title updater loaded", zap.Bool("logged_in", r.session.LoggedIn()))
	return nil
}

// ApplySettings restarts the countdown from now and turns the periodic
// update on or off.
func (r *Runtime) ApplySettings(s domain.Settings) error {
	s = s.Normalized()
	if err := s.Validate(); err != nil {
		return err
	}

	schedule := r.session.Apply(s, r.now())
	r.logger.Info("settings applied",
		zap.String("channel", s.ChannelName),
		zap.Bool("enabled", s.Enabled),
		zap.Time("end_time", schedule.EndTime),
		zap.String("ends", humanize.RelTime(schedule.EndTime, r.now(), "ago", "from now")),
	)

	if r.bus != nil {
		r.bus.Publish(events.TopicSettingsApplied, events.SettingsAppliedEvent{
			DurationMinutes: s.DurationMinutes,
			ChannelName:     s.ChannelName,
			Enabled:         s.Enabled,
			EndTime:         schedule.EndTime,
		})
	}

	return r.toggleTimer(s.Enabled)
}

// Login starts an OAuth attempt. The attempt is bound to the runtime, not to
// ctx; ctx only aborts before the listener starts.
func (r *Runtime) Login(ctx context.Context) (*oauth.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	flow, runCtx, disabled := r.flow, r.ctx, r.disabled
	r.mu.RUnlock()

	if disabled || flow == nil {
		return nil, domain.ErrFeatureDisabled
	}
	return flow.Start(runCtx)
}

// Tick runs one title update. A finished countdown stops the timer.
func (r *Runtime) Tick(ctx context.Context) error {
	r.mu.RLock()
	updater, disabled := r.updater, r.disabled
	r.mu.RUnlock()

	if disabled || updater == nil {
		return domain.ErrFeatureDisabled
	}

	err := updater.Tick(ctx)
	if countdown.IsFatal(err) {
		if stopErr := r.toggleTimer(false); stopErr != nil {
			r.logger.Error("failed to stop timer", zap.Error(stopErr))
		}
	}
	return err
}

// Unload stops the timer and cancels any login in flight.
func (r *Runtime) Unload() {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return
	}
	r.loaded = false
	scheduler, cancel := r.scheduler, r.cancel
	r.mu.Unlock()

	cancel()

	r.jobMu.Lock()
	job := r.job
	r.job = nil
	r.jobMu.Unlock()

	// Stop waits for a running tick, which may itself take jobMu.
	if scheduler != nil {
		if job != nil {
			scheduler.RemoveByReference(job)
		}
		scheduler.Stop()
	}

	r.logger.Info("twitch title updater unloaded")
}

func (r *Runtime) Status() Status {
	r.mu.RLock()
	disabled, flow := r.disabled, r.flow
	r.mu.RUnlock()

	now := r.now()
	schedule := r.session.Schedule()

	st := Status{
		Enabled:     r.session.Enabled(),
		Disabled:    disabled,
		LoggedIn:    r.session.LoggedIn(),
		Channel:     r.session.ChannelName(),
		EndTime:     schedule.EndTime,
		Remaining:   domain.FormatRemaining(schedule.Remaining(now)),
		TimerActive: r.TimerActive(),
		AuthState:   oauth.StateIdle.String(),
	}
	if !schedule.EndTime.IsZero() {
		st.EndsIn = humanize.RelTime(schedule.EndTime, now, "ago", "from now")
	}
	if flow != nil {
		st.AuthState = flow.State().String()
	}
	return st
}

func (r *Runtime) TimerActive() bool {
	r.jobMu.Lock()
	defer r.jobMu.Unlock()
	return r.job != nil
}

func (r *Runtime) Session() *domain.Session {
	return r.session
}

func (r *Runtime) toggleTimer(enable bool) error {
	r.mu.RLock()
	scheduler, runCtx, disabled := r.scheduler, r.ctx, r.disabled
	r.mu.RUnlock()

	r.jobMu.Lock()
	defer r.jobMu.Unlock()

	switch {
	case enable && r.job == nil:
		if disabled || scheduler == nil {
			r.logger.Warn("title updates are disabled, timer not started")
			return nil
		}
		interval := r.cfg.UpdateInterval
		if interval <= 0 {
			interval = config.DefaultUpdateInterval
		}
		job, err := scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(func() {
			if err := r.Tick(runCtx); err != nil && !errors.Is(err, domain.ErrCountdownElapsed) {
				r.logger.Debug("tick skipped", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("runtime: schedule: %w", err)
		}
		r.job = job
		r.logger.Info("timer started", zap.Duration("interval", interval))
	case !enable && r.job != nil:
		scheduler.RemoveByReference(r.job)
		r.job = nil
		r.logger.Info("timer stopped")
	}
	return nil
}

func (r *Runtime) publishError(source string, err error) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.TopicAppError, events.AppErrorEvent{
		Source:  "runtime." + source,
		Message: err.Error(),
		At:      r.now(),
	})
}
