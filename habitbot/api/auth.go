package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	contextUserKey  = "user"
	defaultTokenTTL = 30 * 24 * time.Hour
)

var errUnauthorized = errors.New("unauthorized")

// authClaims carry the Discord identity; Subject is the Discord user id.
type authClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for discordID.
func IssueToken(secret []byte, discordID, username string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now()

	claims := authClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   discordID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	if claims.ExpiresAt == nil || claims.Subject == "" {
		return nil, errUnauthorized
	}
	return claims, nil
}

// authRequired resolves the bearer token to a registered user and stores it
// in the request locals.
func (s *Server) authRequired(c *fiber.Ctx) error {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return errUnauthorized
	}
	claims, err := parseToken(s.secret, strings.TrimSpace(raw))
	if err != nil {
		return err
	}

	if !s.limiter.Allow("api:" + claims.Subject) {
		return errRateLimited
	}

	user, err := s.habits.EnsureUser(c.UserContext(), claims.Subject, claims.Username)
	if err != nil {
		return err
	}
	c.Locals(contextUserKey, user)
	return c.Next()
}
