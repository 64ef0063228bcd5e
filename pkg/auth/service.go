package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/config"
	"github.com/schemasketch/engine/pkg/models"
)

const (
	// guestSessionName is the cookie holding the anonymous identity.
	guestSessionName = "erd_guest"
	// guestIDKey is the session value key for the anonymous id.
	guestIDKey = "aid"
	// guestIDLength sizes generated anonymous ids.
	guestIDLength = 21
	// guestSessionMaxAge keeps guest identities for a year.
	guestSessionMaxAge = 365 * 24 * 60 * 60
)

// Service resolves request identity from bearer tokens and guest cookies.
type Service interface {
	// ResolveOwner returns the request's owner: the JWT subject when a
	// valid bearer token is present, otherwise the guest cookie identity.
	// Fails with apperrors.ErrMissingIdentity when neither exists.
	ResolveOwner(r *http.Request) (models.Owner, error)
	// IssueGuest mints a guest identity cookie and returns the anon id.
	// An existing guest identity is returned unchanged.
	IssueGuest(w http.ResponseWriter, r *http.Request) (string, error)
	// GuestID returns the request's guest cookie identity, if any,
	// regardless of authentication state. Used for guest-to-user merge.
	GuestID(r *http.Request) (string, bool)
	// VerifyToken parses and validates a bearer token string.
	VerifyToken(tokenString string) (*Claims, error)
}

type service struct {
	jwtSecret []byte
	store     *sessions.CookieStore
	logger    *zap.Logger
}

// NewService creates an identity service from session configuration.
func NewService(cfg *config.SessionConfig, logger *zap.Logger) Service {
	store := sessions.NewCookieStore([]byte(cfg.CookieSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   guestSessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	return &service{
		jwtSecret: []byte(cfg.JWTSecret),
		store:     store,
		logger:    logger.Named("auth"),
	}
}

var _ Service = (*service)(nil)

func (s *service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func (s *service) ResolveOwner(r *http.Request) (models.Owner, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return models.Owner{}, fmt.Errorf("%w: malformed authorization header", apperrors.ErrMissingIdentity)
		}
		claims, err := s.VerifyToken(tokenString)
		if err != nil {
			s.logger.Debug("bearer token rejected", zap.Error(err))
			return models.Owner{}, fmt.Errorf("%w: %v", apperrors.ErrMissingIdentity, err)
		}
		return models.Owner{UserID: claims.Subject}, nil
	}

	if anonID, ok := s.GuestID(r); ok {
		return models.Owner{AnonID: anonID}, nil
	}

	return models.Owner{}, fmt.Errorf("%w: no user token or guest identity", apperrors.ErrMissingIdentity)
}

func (s *service) GuestID(r *http.Request) (string, bool) {
	session, err := s.store.Get(r, guestSessionName)
	if err != nil {
		// A cookie signed with a rotated key is treated as absent.
		return "", false
	}
	anonID, ok := session.Values[guestIDKey].(string)
	return anonID, ok && anonID != ""
}

func (s *service) IssueGuest(w http.ResponseWriter, r *http.Request) (string, error) {
	if anonID, ok := s.GuestID(r); ok {
		return anonID, nil
	}

	anonID, err := gonanoid.New(guestIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate guest id: %w", err)
	}

	session, _ := s.store.New(r, guestSessionName)
	session.Values[guestIDKey] = anonID
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save guest session: %w", err)
	}

	return anonID, nil
}
