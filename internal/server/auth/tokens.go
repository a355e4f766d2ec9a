// Package auth issues and verifies the two signed credentials of the linking
// flow: the short-lived SignupToken that carries one provider's identity
// while the other half is pending, and the long-lived SessionToken of a
// linked account. Both are HS256 JWTs signed with the same secret and told
// apart by audience.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
	"github.com/dmitrijs2005/ronnia/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceSignup  = "signup"
	audienceSession = "session"
)

// SignupClaims is the payload of a SignupToken. Subject holds the provider
// external id.
type SignupClaims struct {
	jwt.RegisteredClaims
	Provider    models.Provider `json:"provider"`
	DisplayName string          `json:"display_name"`
	AvatarURL   string          `json:"avatar_url,omitempty"`
}

// SessionClaims is the payload of a SessionToken. Subject holds the osu!
// external id, which is enough to re-resolve the account.
type SessionClaims struct {
	jwt.RegisteredClaims
	TwitchID int64 `json:"twitch_id"`
}

// OsuID parses the subject back into the osu! external id.
func (c *SessionClaims) OsuID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

// Issuer signs and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Issuer struct {
	secret     []byte
	signupTTL  time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secretKey string, signupTTL, sessionTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secretKey),
		signupTTL:  signupTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// IssueSignup signs a SignupToken for a freshly fetched identity.
func (i *Issuer) IssueSignup(id *models.Identity) (string, error) {
	claims := SignupClaims{
		RegisteredClaims: i.registered(audienceSignup, strconv.FormatInt(id.ExternalID, 10), i.signupTTL),
		Provider:         id.Provider,
		DisplayName:      id.DisplayName,
		AvatarURL:        id.AvatarURL,
	}
	return i.sign(claims)
}

// VerifySignup validates a SignupToken and returns the identity it carries.
func (i *Issuer) VerifySignup(tokenString string) (*models.Identity, error) {
	claims := &SignupClaims{}
	if err := i.parse(tokenString, claims, audienceSignup); err != nil {
		return nil, err
	}
	if !claims.Provider.Valid() {
		return nil, common.ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, common.ErrInvalidToken
	}
	return &models.Identity{
		Provider:    claims.Provider,
		ExternalID:  id,
		DisplayName: claims.DisplayName,
		AvatarURL:   claims.AvatarURL,
	}, nil
}

// IssueSession signs a brand-new SessionToken for the account and returns
// it with its expiry.
func (i *Issuer) IssueSession(a *models.LinkedAccount) (string, time.Time, error) {
	claims := SessionClaims{
		RegisteredClaims: i.registered(audienceSession, strconv.FormatInt(a.Osu.ExternalID, 10), i.sessionTTL),
		TwitchID:         a.Twitch.ExternalID,
	}
	token, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// VerifySession validates a SessionToken. A valid token is only a claim of
// identity; callers re-check the account against storage.
func (i *Issuer) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := i.parse(tokenString, claims, audienceSession); err != nil {
		return nil, err
	}
	if _, err := claims.OsuID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *Issuer) registered(audience, subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// parse checks the signature first and the claims second, the order
// jwt.Parser applies them in.
func (i *Issuer) parse(tokenString string, claims jwt.Claims, audience string) error {
	if tokenString == "" {
		return common.ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return common.ErrInvalidToken
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
