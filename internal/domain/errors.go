package domain

import "errors"

var (
	// ErrCredentialsMissing means config.json is absent or lacks client_id/client_secret.
	ErrCredentialsMissing = errors.New("application credentials missing")
	// ErrFeatureDisabled is returned by every operation once credentials failed to load.
	ErrFeatureDisabled = errors.New("title countdown disabled: no application credentials")
	ErrNotLoggedIn     = errors.New("not logged in")
	// ErrCountdownElapsed signals the configured duration is over and the trigger should stop.
	ErrCountdownElapsed = errors.New("countdown elapsed")
	ErrChannelNameEmpty = errors.New("channel name not set")
	ErrUserNotFound     = errors.New("user not found")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrAuthInProgress   = errors.New("authentication already in progress")
)
