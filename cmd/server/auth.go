package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nickyhof/orpheus/config"
	"github.com/nickyhof/orpheus/core"
)

var errAuthRequired = errors.New("authentication required: send AUTH JWT <token> first")

// AuthConfig configures server authentication.
type AuthConfig struct {
	// JWTSecret is the shared secret for HS256/384/512 validation.
	JWTSecret string
	// Issuer is the expected "iss" claim (optional).
	Issuer string
	// Audience is the expected "aud" claim (optional).
	Audience string
	// NameClaim and EmailClaim name the identity claims (default "name", "email").
	NameClaim  string
	EmailClaim string
}

// authConfigFrom returns nil when the server section sets no secret.
func authConfigFrom(cfg config.Server) *AuthConfig {
	if cfg.JWTSecret == "" {
		return nil
	}
	return &AuthConfig{JWTSecret: cfg.JWTSecret, Issuer: cfg.Issuer, Audience: cfg.Audience}
}

// ConnectionState tracks per-connection authentication state.
type ConnectionState struct {
	identity      *core.Identity
	authenticated bool
	tokenExpiry   time.Time
}

func (cs *ConnectionState) IsAuthenticated() bool {
	return cs.authenticated
}

// Identity returns the connection's identity, or nil if not authenticated.
func (cs *ConnectionState) Identity() *core.Identity {
	return cs.identity
}

// expired drops an authentication whose token has expired.
func (cs *ConnectionState) expired(now time.Time) bool {
	if !cs.authenticated || cs.tokenExpiry.IsZero() || now.Before(cs.tokenExpiry) {
		return false
	}
	cs.identity = nil
	cs.authenticated = false
	return true
}

type authResult struct {
	identity  core.Identity
	expiresAt time.Time
	err       error
}

// validateJWT validates a token and extracts the identity claims.
func (a *AuthConfig) validateJWT(tokenString string) authResult {
	nameClaim := a.NameClaim
	if nameClaim == "" {
		nameClaim = "name"
	}
	emailClaim := a.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if a.Issuer != "" {
		options = append(options, jwt.WithIssuer(a.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecret), nil
	}, options...)
	if err != nil {
		return authResult{err: fmt.Errorf("invalid token: %w", err)}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return authResult{err: errors.New("invalid token claims")}
	}

	if a.Audience != "" {
		audiences, _ := claims.GetAudience()
		if !slices.Contains(audiences, a.Audience) {
			return authResult{err: fmt.Errorf("invalid audience: expected %s", a.Audience)}
		}
	}

	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)
	if name == "" && email == "" {
		return authResult{err: fmt.Errorf("token missing identity claims (%s or %s)", nameClaim, emailClaim)}
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return authResult{identity: core.Identity{Name: name, Email: email}, expiresAt: expiresAt}
}

// isAuthCommand reports whether line is an AUTH command rather than a JSON
// request.
func isAuthCommand(line string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "AUTH ")
}

// parseAuthCommand parses "AUTH JWT <token>".
func parseAuthCommand(line string) (authType, token string, err error) {
	if !isAuthCommand(line) {
		return "", "", errors.New("not an AUTH command")
	}

	parts := strings.Fields(line)
	if len(parts) < 3 {
		return "", "", errors.New("invalid AUTH command: expected AUTH <type> <credentials>")
	}

	authType = strings.ToUpper(parts[1])
	if authType != "JWT" {
		return "", "", fmt.Errorf("unsupported auth type: %s", authType)
	}
	return authType, parts[2], nil
}

// handleAuth processes an AUTH command and updates state on success.
func (s *Server) handleAuth(line string, state *ConnectionState) Response {
	fail := func(err error) Response {
		return Response{Success: false, Type: "auth", Error: err.Error()}
	}

	if s.authConfig == nil {
		return fail(errors.New("authentication not configured"))
	}
	_, token, err := parseAuthCommand(line)
	if err != nil {
		return fail(err)
	}

	result := s.authConfig.validateJWT(token)
	if result.err != nil {
		return fail(result.err)
	}

	state.identity = &result.identity
	state.authenticated = true
	state.tokenExpiry = result.expiresAt

	ar := AuthResponse{Authenticated: true, Identity: result.identity.String()}
	if !result.expiresAt.IsZero() {
		ar.ExpiresIn = int(time.Until(result.expiresAt).Seconds())
	}
	data, _ := json.Marshal(ar)
	return Response{Success: true, Type: "auth", Result: data}
}
