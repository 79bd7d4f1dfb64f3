package domain

import "time"

// User represents a registered account. PasswordHash and RefreshToken never
// leave the service layer; callers receive sanitized copies with both cleared.
type User struct {
	ID            int64
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sanitized returns a copy of the user safe to hand to clients.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	c.RefreshToken = ""
	return &c
}
