package localidp

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
)

// Claims is the access-token payload. The whole attribute bag rides along so
// a stateless consumer can rebuild the Principal (and resolve its school)
// from the token alone.
type Claims struct {
	jwt.RegisteredClaims
	Email    string                 `json:"email,omitempty"`
	Metadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// GenerateToken signs an access token for usr.
func GenerateToken(conf *core.Config, usr User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(conf.Server.JWTExpirationDelta)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:    usr.Email,
		Metadata: usr.Metadata,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(conf.SecretKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "signing token")
	}
	return signed, expiresAt, nil
}

// ParseToken verifies a signed access token and returns its claims.
func ParseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	return claims, nil
}
