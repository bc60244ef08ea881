package countdown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"titleCountdown/internal/app/events"
	"titleCountdown/internal/domain"
)

// Updater rewrites the channel title with the time left on the schedule.
type Updater struct {
	session  *domain.Session
	channels domain.ChannelService
	logger   *zap.Logger
	events   domain.EventPublisher
	now      func() time.Time
}

type Option func(*Updater)

func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		u.now = now
	}
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(u *Updater) {
		u.events = p
	}
}

func NewUpdater(session *domain.Session, channels domain.ChannelService, logger *zap.Logger, opts ...Option) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Updater{
		session:  session,
		channels: channels,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Tick performs one full read-modify-write of the title. Every failure ends
// the tick; the next scheduled tick starts over. ErrCountdownElapsed tells
// the caller to stop scheduling.
func (u *Updater) Tick(ctx context.Context) error {
	if !u.session.LoggedIn() {
		u.logger.Warn("not logged in, please use the login command to authenticate")
		return domain.ErrNotLoggedIn
	}

	remaining := u.session.Schedule().Remaining(u.now())
	if remaining <= 0 {
		u.logger.Info("countdown finished, stopping title updates")
		return domain.ErrCountdownElapsed
	}

	channel := u.session.ChannelName()
	logger := u.logger.With(zap.String("channel", channel))

	userID, err := u.channels.ResolveUserID(ctx, channel)
	if err != nil {
		logger.Error("failed to resolve channel, cannot update title", zap.Error(err))
		return u.fail("resolve", fmt.Errorf("countdown: resolve channel: %w", err))
	}

	current, err := u.channels.GetTitle(ctx, userID)
	if err != nil {
		logger.Error("failed to get current title", zap.Error(err))
		return u.fail("get_title", fmt.Errorf("countdown: get title: %w", err))
	}

	title := domain.ComposeTitle(current, remaining)

	if err := u.channels.SetTitle(ctx, userID, title); err != nil {
		logger.Error("failed to update title", zap.Error(err), zap.String("title", title))
		return u.fail("set_title", fmt.Errorf("countdown: set title: %w", err))
	}

	logger.Info("updated title", zap.String("title", title), zap.Duration("remaining", remaining))

	if u.events != nil {
		u.events.Publish(events.TopicTitleUpdated, events.TitleUpdatedEvent{
			Title:         title,
			BroadcasterID: userID,
			Remaining:     domain.FormatRemaining(remaining),
			UpdatedAt:     u.now(),
		})
	}

	return nil
}

// IsFatal reports whether err should stop the periodic trigger.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrCountdownElapsed)
}

func (u *Updater) fail(source string, err error) error {
	if u.events != nil {
		u.events.Publish(events.TopicAppError, events.AppErrorEvent{
			Source:  "countdown." + source,
			Message: err.Error(),
			At:      u.now(),
		})
	}
	return err
}
