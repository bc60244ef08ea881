package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"titleCountdown/internal/app/events"
	"titleCountdown/internal/domain"
)

const (
	ScopeChannelManageBroadcast = "channel:manage:broadcast"

	SuccessMessage = "Authentication successful! You can close this window."

	listenHost      = "127.0.0.1"
	redirectHost    = "localhost"
	shutdownTimeout = 5 * time.Second
)

var (
	ErrLoginTimeout        = errors.New("oauth: login timed out")
	ErrAuthorizationDenied = errors.New("oauth: authorization denied")
)

type State int32

const (
	StateIdle State = iota
	StateAuthStarted
	StateListening
	StateCodeReceived
	StateTokenExchanged
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthStarted:
		return "auth_started"
	case StateListening:
		return "listening"
	case StateCodeReceived:
		return "code_received"
	case StateTokenExchanged:
		return "token_exchanged"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	Scopes       []string
	// Timeout bounds how long the callback listener waits. Zero waits until
	// the context passed to Start is done.
	Timeout time.Duration
	// HTTPClient performs the code exchange; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

func (c Config) scopes() []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return []string{ScopeChannelManageBroadcast}
}

type TokenHook func(token string)

// Flow runs the authorization-code login: a loopback listener catches the
// redirect, the code is exchanged for a token and the token is stored.
type Flow struct {
	cfg     Config
	session *domain.Session
	tokens  domain.TokenRepository
	open    domain.URLOpener
	logger  *zap.Logger
	events  domain.EventPublisher

	state atomic.Int32

	hooksMu sync.RWMutex
	hooks   []TokenHook
}

func NewFlow(
	cfg Config,
	session *domain.Session,
	tokens domain.TokenRepository,
	open domain.URLOpener,
	logger *zap.Logger,
	publisher domain.EventPublisher,
) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		cfg:     cfg,
		session: session,
		tokens:  tokens,
		open:    open,
		logger:  logger,
		events:  publisher,
	}
}

// RegisterHook adds a callback run after every successful token exchange.
func (f *Flow) RegisterHook(h TokenHook) {
	if h == nil {
		return
	}
	f.hooksMu.Lock()
	defer f.hooksMu.Unlock()
	f.hooks = append(f.hooks, h)
}

func (f *Flow) State() State {
	return State(f.state.Load())
}

// Start binds the callback listener, opens the browser on the authorize URL
// and returns without waiting for the user. The listener lives until the
// first code is handled, the login times out or ctx is done.
func (f *Flow) Start(ctx context.Context) (*Attempt, error) {
	if !f.session.TryBeginAuth() {
		f.logger.Info("authentication already in progress, please check your browser")
		return nil, domain.ErrAuthInProgress
	}
	f.setState(StateAuthStarted, "", nil)

	ln, err := net.Listen("tcp", net.JoinHostPort(listenHost, "0"))
	if err != nil {
		err = fmt.Errorf("oauth: listen: %w", err)
		f.reset(err)
		return nil, err
	}

	stateID, err := uuid.NewV4()
	if err != nil {
		ln.Close()
		err = fmt.Errorf("oauth: state: %w", err)
		f.reset(err)
		return nil, err
	}

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://%s:%d", redirectHost, port)
	conf := f.oauthConfig(redirectURI)

	a := &Attempt{
		AuthURL:     conf.AuthCodeURL(stateID.String()),
		RedirectURI: redirectURI,
		flow:        f,
		ctx:         ctx,
		conf:        conf,
		state:       stateID.String(),
		results:     make(chan error, 1),
		done:        make(chan struct{}),
	}
	a.server = &http.Server{
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Serve(ln)
	}()
	go a.supervise(serveErr)

	f.setState(StateListening, redirectURI, nil)
	f.logger.Info("oauth callback listener started", zap.Int("port", port))

	if f.open != nil {
		if err := f.open(a.AuthURL); err != nil {
			f.logger.Warn("could not open browser, open the URL manually", zap.Error(err), zap.String("url", a.AuthURL))
		}
	}

	return a, nil
}

func (f *Flow) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.cfg.AuthorizeURL,
			TokenURL:  f.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      f.cfg.scopes(),
	}
}

func (f *Flow) storeToken(token string) {
	f.session.SetToken(token)

	if f.tokens != nil {
		if err := f.tokens.Save(token); err != nil {
			f.logger.Error("failed to persist access token", zap.Error(err))
		}
	}

	f.hooksMu.RLock()
	hooks := append([]TokenHook(nil), f.hooks...)
	f.hooksMu.RUnlock()
	for _, h := range hooks {
		h(token)
	}

	f.logger.Info("successfully logged in")
}

func (f *Flow) reset(err error) {
	f.session.EndAuth()
	f.setState(StateIdle, "", err)
}

func (f *Flow) setState(s State, redirectURI string, err error) {
	f.state.Store(int32(s))

	if f.events == nil {
		return
	}
	ev := events.AuthStatusEvent{State: s.String(), RedirectURI: redirectURI}
	if err != nil {
		ev.Error = err.Error()
	}
	f.events.Publish(events.TopicAuthStatus, ev)
}
