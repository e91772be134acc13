package model

import "time"

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// ExpiresAtTime converts the unix-seconds expiry into a time.Time.
func (s Session) ExpiresAtTime() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

type AuthResult struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}
