package domain

import "time"

// InvitePayload is what a review invite token vouches for: one account may
// review one product until Exp (unix seconds).
type InvitePayload struct {
	AccountID string `json:"accountId"`
	ProductID string `json:"productId"`
	Slug      string `json:"slug"`
	Exp       int64  `json:"exp"`
}

// ExpiresAt returns Exp as a time.
func (p InvitePayload) ExpiresAt() time.Time {
	return time.Unix(p.Exp, 0).UTC()
}

// Invite is an issued token together with its payload.
type Invite struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Payload   InvitePayload `json:"-"`
}
