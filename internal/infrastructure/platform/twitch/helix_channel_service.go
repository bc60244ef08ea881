package twitchinfra

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/nicklaw5/helix/v2"

	"titleCountdown/internal/domain"
)

type Options struct {
	ClientID        string
	UserAccessToken string
	// APIBaseURL overrides https://api.twitch.tv/helix, mostly for tests.
	APIBaseURL string
	HTTPClient *http.Client
}

type HelixChannelService struct {
	client *helix.Client
	mu     sync.RWMutex
}

// NewHelixChannelService builds the Helix client. The user token needs the
// channel:manage:broadcast scope to edit the title.
func NewHelixChannelService(opts Options) (*HelixChannelService, error) {
	helixOpts := &helix.Options{
		ClientID:        opts.ClientID,
		UserAccessToken: opts.UserAccessToken,
		APIBaseURL:      opts.APIBaseURL,
	}
	if opts.HTTPClient != nil {
		helixOpts.HTTPClient = opts.HTTPClient
	}

	client, err := helix.NewClient(helixOpts)
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}

	return &HelixChannelService{
		client: client,
	}, nil
}

func (s *HelixChannelService) ResolveUserID(ctx context.Context, login string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return "", domain.ErrChannelNameEmpty
	}

	client := s.getClient()
	resp, err := client.GetUsers(&helix.UsersParams{
		Logins: []string{login},
	})
	if err != nil {
		return "", fmt.Errorf("helix: GetUsers: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("helix: GetUsers failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Users) == 0 {
		return "", fmt.Errorf("helix: GetUsers %q: %w", login, domain.ErrUserNotFound)
	}

	return resp.Data.Users[0].ID, nil
}

func (s *HelixChannelService) GetTitle(ctx context.Context, broadcasterID string) (string, error) {
	client := s.getClient()
	resp, err := client.GetChannelInformation(&helix.GetChannelInformationParams{
		BroadcasterIDs: []string{broadcasterID},
	})
	if err != nil {
		return "", fmt.Errorf("helix: GetChannelInformation: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("helix: GetChannelInformation failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Channels) == 0 {
		return "", fmt.Errorf("helix: GetChannelInformation %s: %w", broadcasterID, domain.ErrChannelNotFound)
	}

	return resp.Data.Channels[0].Title, nil
}

func (s *HelixChannelService) SetTitle(ctx context.Context, broadcasterID, newTitle string) error {
	client := s.getClient()
	resp, err := client.EditChannelInformation(&helix.EditChannelInformationParams{
		BroadcasterID: broadcasterID,
		Title:         newTitle,
	})
	if err != nil {
		return fmt.Errorf("helix: EditChannelInformation: %w", err)
	}

	// Modify Channel Information answers 204 No Content on success.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("helix: EditChannelInformation failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	return nil
}

// UpdateAccessToken swaps the bearer token used by subsequent calls.
func (s *HelixChannelService) UpdateAccessToken(token string) {
	if s == nil || s.client == nil {
		return
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetUserAccessToken(token)
}

func (s *HelixChannelService) getClient() *helix.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

var _ domain.ChannelService = (*HelixChannelService)(nil)
