package httpapi

import (
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/vaxclinic/pkg/clinic"
	"github.com/golang-jwt/jwt/v5"
)

var errBadToken = errors.New("invalid session token")

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func mintSessionToken(cfg Config, account clinic.Account, now time.Time) (string, error) {
	claims := sessionClaims{
		Role: account.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username.String(),
			Issuer:    cfg.SessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SessionSigningKey))
}

func parseSessionToken(cfg Config, raw string) (clinic.Session, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadToken
		}
		return []byte(cfg.SessionSigningKey), nil
	}, jwt.WithIssuer(cfg.SessionIssuer))
	if err != nil {
		return clinic.Session{}, errBadToken
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return clinic.Session{}, errBadToken
	}
	role, err := clinic.ParseRole(claims.Role)
	if err != nil {
		return clinic.Session{}, errBadToken
	}
	username, err := clinic.NewUsername(claims.Subject)
	if err != nil {
		return clinic.Session{}, errBadToken
	}
	return clinic.NewSession(role, username), nil
}
