// Package auth mints and verifies the HS256 JWTs used for API sessions and
// single-use download links.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bytebazaar/storefront/internal/errors"
)

// Claims carried by an API session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// DownloadClaims carried by a single-use download token. TokenID is consumed
// on redemption so a leaked link cannot be replayed.
type DownloadClaims struct {
	TokenID    string `json:"token_id"`
	PurchaseID string `json:"purchase_id"`
	AssetID    string `json:"asset_id"`
	UserID     string `json:"user_id"`
	jwt.RegisteredClaims
}

// Token audiences keep the two token kinds from being swapped: a download
// link must never work as an API session.
const (
	audienceSession  = "session"
	audienceDownload = "download"
)

// Signer mints and verifies tokens with a shared secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer. The secret must be non-empty.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.Internal("jwt secret not configured", nil)
	}
	return &Signer{secret: []byte(secret)}, nil
}

// SignSession mints a session token for the user.
func (s *Signer) SignSession(userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{audienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseSession verifies a session token and returns its claims.
func (s *Signer) ParseSession(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(tokenString, claims, audienceSession); err != nil {
		return nil, err
	}
	return claims, nil
}

// SignDownload mints a download token and returns it with its token id.
func (s *Signer) SignDownload(userID, purchaseID, assetID string, ttl time.Duration) (token, tokenID string, err error) {
	now := time.Now()
	tokenID = uuid.NewString()
	claims := &DownloadClaims{
		TokenID:    tokenID,
		PurchaseID: purchaseID,
		AssetID:    assetID,
		UserID:     userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceDownload},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, tokenID, err
}

// ParseDownload verifies a download token and returns its claims.
func (s *Signer) ParseDownload(tokenString string) (*DownloadClaims, error) {
	claims := &DownloadClaims{}
	if err := s.parse(tokenString, claims, audienceDownload); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Signer) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithAudience(audience))
	if err != nil {
		return errors.InvalidToken(err)
	}
	if !token.Valid {
		return errors.InvalidToken(nil)
	}
	return nil
}
