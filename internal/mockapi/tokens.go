package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// tokenHandler implements the refresh_token grant. Refresh tokens are
// single-use: the presented token is consumed and a rotated replacement
// is returned alongside a fresh JWT access token.
func (s *Server) tokenHandler(c *gin.Context) {
	if c.PostForm("grant_type") != "refresh_token" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type"})
		return
	}
	if c.PostForm("client_id") != s.cfg.ClientID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_client"})
		return
	}

	presented := c.PostForm("refresh_token")

	s.mu.Lock()
	subject, ok := s.refreshTokens[presented]
	if ok {
		delete(s.refreshTokens, presented)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn().Msg("Rejected unknown or consumed refresh token")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_grant"})
		return
	}

	accessToken, err := s.mintAccessToken(subject, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	rotated := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[rotated] = subject
	s.mu.Unlock()

	s.logger.Info().
		Str("subject", subject).
		Dur("ttl", s.cfg.TokenTTL).
		Msg("Issued rotated token pair")

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: rotated,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.TokenTTL.Seconds()),
	})
}

// mintAccessToken signs an HS256 JWT for the subject. A non-positive ttl
// produces an already-expired token, which tests use to provoke 401s.
func (s *Server) mintAccessToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})
	return token.SignedString(s.cfg.JWTSecret)
}

// AccessToken mints a standalone access token, bypassing the grant flow.
// Test helper.
func (s *Server) AccessToken(subject string, ttl time.Duration) string {
	tok, err := s.mintAccessToken(subject, ttl)
	if err != nil {
		panic(err)
	}
	return tok
}

// verifyBearer extracts and verifies the bearer JWT from the request,
// returning the token's subject.
func (s *Server) verifyBearer(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token is not valid")
	}
	return claims.Subject, nil
}

// authMiddleware enforces a valid bearer token and records its subject
// on the request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := s.verifyBearer(c)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("method", c.Request.Method).
				Str("uri", c.Request.RequestURI).
				Msg("Rejected request with invalid bearer token")
			errorJSON(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set("subject", subject)
		c.Next()
	}
}
