package domain

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 1440
)

var channelNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,25}$`)

// Settings are the user-editable knobs of the countdown.
type Settings struct {
	DurationMinutes int    `json:"duration" yaml:"duration"`
	ChannelName     string `json:"channel_name" yaml:"channel_name"`
	Enabled         bool   `json:"enable_script" yaml:"enable_script"`
}

func (s Settings) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

func (s Settings) Normalized() Settings {
	s.ChannelName = strings.TrimSpace(s.ChannelName)
	return s
}

func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DurationMinutes, validation.Required, validation.Min(MinDurationMinutes), validation.Max(MaxDurationMinutes)),
		validation.Field(&s.ChannelName, validation.Match(channelNamePattern)),
	)
}
