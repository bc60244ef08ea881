package domain

import "strings"

// Credentials identify the application registered with the platform.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// Token is the on-disk shape of the persisted bearer token.
type Token struct {
	AccessToken string `json:"access_token"`
}
