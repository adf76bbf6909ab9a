package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthFailedMessage is the rejection text for a missing, invalid or expired token
const AuthFailedMessage = "Authentication failed!"

// AuthCheckFailedMessage is returned when the token could not be checked
const AuthCheckFailedMessage = "Authentication check failed"

// AccessTokenHeader carries the token issued at login
const AccessTokenHeader = "Access-Token"

// errBadToken marks a credential problem, as opposed to a failed lookup
var errBadToken = errors.New("bad token")

type claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type userIDKey struct{}

func (s *Server) issueToken(userID int64) (string, error) {
	now := time.Now()
	c := claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.settings.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(s.settings.JWTSecret)
}

func (s *Server) parseToken(raw string) (int64, error) {
	token, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.settings.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	c, ok := token.Claims.(*claims)
	if !ok || c.UserID == 0 {
		return 0, errors.New("invalid claims")
	}
	return c.UserID, nil
}

// tokenFromRequest reads the Authorization header. The token may be wrapped in
// double quotes or carry a Bearer prefix; the websocket also accepts ?token=.
func tokenFromRequest(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	raw = strings.TrimPrefix(raw, "Bearer ")
	raw = strings.Trim(raw, `"`)
	if raw == "" && r.URL.Path == "/ws" {
		raw = r.URL.Query().Get("token")
	}
	return raw
}

// authenticate resolves the caller's user ID, checking the user still exists
func (s *Server) authenticate(r *http.Request) (int64, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing token", errBadToken)
	}
	userID, err := s.parseToken(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadToken, err)
	}
	account, err := s.db.GetUser(r.Context(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up user %d: %w", userID, err)
	}
	if account == nil {
		return 0, fmt.Errorf("%w: user %d not found", errBadToken, userID)
	}
	return userID, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticate(r)
		if err != nil {
			s.rejectAuth(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

// rejectAuth answers 401 only for credential problems. A lookup failure is a
// server error, so clients keep their session.
func (s *Server) rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, errBadToken) {
		log.Printf("[ERROR] %s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, AuthCheckFailedMessage)
		return
	}
	if s.settings.Debug {
		log.Printf("[AUTH] rejected %s %s: %v", r.Method, r.URL.Path, err)
	}
	respondError(w, http.StatusUnauthorized, AuthFailedMessage)
}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id
}
