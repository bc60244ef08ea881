package events

import "time"

type TitleUpdatedEvent struct {
	Title         string    `json:"title"`
	BroadcasterID string    `json:"broadcaster_id"`
	Remaining     string    `json:"remaining"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SettingsAppliedEvent struct {
	DurationMinutes int       `json:"duration"`
	ChannelName     string    `json:"channel_name"`
	Enabled         bool      `json:"enable_script"`
	EndTime         time.Time `json:"end_time"`
}

type AuthStatusEvent struct {
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	Error       string `json:"error,omitempty"`
}

type AppErrorEvent struct {
	Source  string    `json:"source"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
