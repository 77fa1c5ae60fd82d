// Package invite signs and verifies review invite tokens.
//
// A token is base64url(JSON(payload)) + "." + base64url(HMAC-SHA256(secret, body)),
// both segments unpadded. Nothing is stored server side: validity is recomputed
// from the token, the secret and the current time.
package invite

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// Verification failures. Callers must not tell clients which one occurred.
var (
	ErrMalformedToken = errors.New("malformed invite token")
	ErrBadSignature   = errors.New("invite signature mismatch")
	ErrTokenExpired   = errors.New("invite token expired")
)

// Strict decoding rejects non-zero trailing bits, so every token has exactly
// one accepted spelling.
var encoding = base64.RawURLEncoding.Strict()

// Signer issues and checks invite tokens with one server-held secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner returns a Signer for secret. An empty secret is rejected.
func NewSigner(secret []byte, opts ...Option) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("invite: signing secret is empty")
	}
	s := &Signer{secret: append([]byte(nil), secret...), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign encodes payload into a token. Identical payloads and secrets always
// produce identical tokens.
func (s *Signer) Sign(payload domain.InvitePayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal invite payload: %w", err)
	}
	body := encoding.EncodeToString(raw)
	return body + "." + encoding.EncodeToString(s.mac(body)), nil
}

// Issue signs a payload that expires ttl from now.
func (s *Signer) Issue(accountID, productID, slug string, ttl time.Duration) (domain.Invite, error) {
	if ttl <= 0 {
		return domain.Invite{}, fmt.Errorf("invite ttl must be positive, got %s", ttl)
	}
	exp := s.now().Add(ttl)
	payload := domain.InvitePayload{
		AccountID: accountID,
		ProductID: productID,
		Slug:      slug,
		Exp:       exp.Unix(),
	}
	token, err := s.Sign(payload)
	if err != nil {
		return domain.Invite{}, err
	}
	return domain.Invite{Token: token, ExpiresAt: payload.ExpiresAt(), Payload: payload}, nil
}

// Verify checks the signature before looking at the payload, then its shape,
// then expiry. A token whose exp equals the current second is still valid.
func (s *Signer) Verify(token string) (*domain.InvitePayload, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" || strings.Contains(sig, ".") {
		return nil, ErrMalformedToken
	}

	got, err := encoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, s.mac(body)) {
		return nil, ErrBadSignature
	}

	raw, err := encoding.DecodeString(body)
	if err != nil {
		return nil, ErrMalformedToken
	}
	payload, exp, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	if exp < s.now().Unix() {
		return nil, ErrTokenExpired
	}
	payload.Exp = exp
	return payload, nil
}

func (s *Signer) mac(body string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(body))
	return h.Sum(nil)
}

// decodePayload checks the JSON shape field by field so a missing or mistyped
// exp reads as expired while any other shape problem reads as malformed.
func decodePayload(raw []byte) (*domain.InvitePayload, int64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, 0, ErrMalformedToken
	}

	var p domain.InvitePayload
	for key, dst := range map[string]*string{
		"accountId": &p.AccountID,
		"productId": &p.ProductID,
		"slug":      &p.Slug,
	} {
		v, ok := fields[key]
		if !ok || json.Unmarshal(v, dst) != nil || *dst == "" {
			return nil, 0, ErrMalformedToken
		}
	}

	var exp json.Number
	v, ok := fields["exp"]
	if !ok || len(v) == 0 || v[0] == '"' || json.Unmarshal(v, &exp) != nil {
		return nil, 0, ErrTokenExpired
	}
	n, err := exp.Int64()
	if err != nil {
		// Exponent forms such as 1.8e9 are accepted when they name a whole
		// second that fits in an int64.
		f, ferr := exp.Float64()
		if ferr != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, 0, ErrTokenExpired
		}
		n = int64(f)
	}
	return &p, n, nil
}
