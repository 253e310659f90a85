// Package auth adapts the identity collaborator: a signed bearer token
// carries the owner id and whether the owner may use storage.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "identity"

var (
	ErrNoToken      = errors.New("no authorization header")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	StorageVerified bool `json:"storage_verified"`
	jwt.RegisteredClaims
}

// Identity is what the core needs to know about the caller. OwnerID is
// opaque.
type Identity struct {
	OwnerID            string
	Authenticated      bool
	VerifiedForStorage bool
}

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for ownerID. Used by the token command and tests.
func (v *Verifier) Issue(ownerID string, storageVerified bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		StorageVerified: storageVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Header["alg"] != jwt.SigningMethodHS512.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	return &Identity{
		OwnerID:            claims.Subject,
		Authenticated:      true,
		VerifiedForStorage: claims.StorageVerified,
	}, nil
}

// VerifyRequest reads the bearer token from the Authorization header.
func (v *Verifier) VerifyRequest(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoToken
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("%w: expected bearer scheme", ErrInvalidToken)
	}

	return v.Verify(strings.TrimSpace(tokenStr))
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller identity, or an unauthenticated one.
func FromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey).(*Identity); ok && id != nil {
		return id
	}
	return &Identity{}
}
