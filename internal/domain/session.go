package domain

import (
	"strings"
	"sync"
	"time"
)

// Session is the mutable state shared by the login flow and the countdown
// updater. The runtime owns it and hands out a pointer.
type Session struct {
	mu sync.RWMutex

	token          string
	channelName    string
	schedule       Schedule
	enabled        bool
	authInProgress bool
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

func (s *Session) ChannelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelName
}

func (s *Session) Schedule() Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

func (s *Session) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Apply records new settings and restarts the countdown from now.
func (s *Session) Apply(settings Settings, now time.Time) Schedule {
	settings = settings.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelName = settings.ChannelName
	s.enabled = settings.Enabled
	s.schedule = NewSchedule(now, settings.Duration())
	return s.schedule
}

// TryBeginAuth sets the auth-in-progress flag. It reports false when a login
// is already running.
func (s *Session) TryBeginAuth() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authInProgress {
		return false
	}
	s.authInProgress = true
	return true
}

func (s *Session) EndAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authInProgress = false
}

func (s *Session) AuthInProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authInProgress
}
