package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titleCountdown/internal/domain"
)

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	tt := map[string]struct {
		settings domain.Settings
		wantErr  bool
	}{
		"minimum duration":      {domain.Settings{DurationMinutes: 1, ChannelName: "teststreamer"}, false},
		"maximum duration":      {domain.Settings{DurationMinutes: 1440, ChannelName: "teststreamer"}, false},
		"zero duration":         {domain.Settings{DurationMinutes: 0, ChannelName: "teststreamer"}, true},
		"duration over a day":   {domain.Settings{DurationMinutes: 1441, ChannelName: "teststreamer"}, true},
		"blank channel allowed": {domain.Settings{DurationMinutes: 60}, false},
		"underscored channel":   {domain.Settings{DurationMinutes: 60, ChannelName: "some_streamer_99"}, false},
		"channel with space":    {domain.Settings{DurationMinutes: 60, ChannelName: "two words"}, true},
		"channel too long":      {domain.Settings{DurationMinutes: 60, ChannelName: "abcdefghijklmnopqrstuvwxyz"}, true},
	}

	for scenario, tc := range tt {
		tc := tc
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			err := tc.settings.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSessionApply(t *testing.T) {
	t.Parallel()

	s := domain.NewSession()
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	schedule := s.Apply(domain.Settings{DurationMinutes: 60, ChannelName: "  teststreamer ", Enabled: true}, now)

	assert.Equal(t, now.Add(3600*time.Second), schedule.EndTime)
	assert.Equal(t, schedule, s.Schedule())
	assert.Equal(t, "teststreamer", s.ChannelName())
	assert.True(t, s.Enabled())

	later := now.Add(10 * time.Minute)
	schedule = s.Apply(domain.Settings{DurationMinutes: 5}, later)
	assert.Equal(t, later.Add(5*time.Minute), schedule.EndTime)
	assert.False(t, s.Enabled())
	assert.Empty(t, s.ChannelName())
}

func TestSessionAuthGuard(t *testing.T) {
	t.Parallel()

	s := domain.NewSession()

	require.True(t, s.TryBeginAuth())
	assert.True(t, s.AuthInProgress())
	assert.False(t, s.TryBeginAuth())

	s.EndAuth()
	assert.False(t, s.AuthInProgress())
	assert.True(t, s.TryBeginAuth())
}

func TestSessionToken(t *testing.T) {
	t.Parallel()

	s := domain.NewSession()
	assert.False(t, s.LoggedIn())

	s.SetToken(" tok1\n")
	assert.Equal(t, "tok1", s.Token())
	assert.True(t, s.LoggedIn())
}
