package domain

import "context"

// ChannelService is the slice of the platform API the countdown needs.
type ChannelService interface {
	// ResolveUserID maps a login name to the numeric broadcaster id.
	ResolveUserID(ctx context.Context, login string) (string, error)
	GetTitle(ctx context.Context, broadcasterID string) (string, error)
	SetTitle(ctx context.Context, broadcasterID, title string) error
}

type TokenRepository interface {
	Save(token string) error
	Load() (string, error)
}

// URLOpener shows url to the user, usually in the default browser.
type URLOpener func(url string) error

// EventPublisher fans out runtime events to whoever listens.
type EventPublisher interface {
	Publish(topic string, payload any)
}
