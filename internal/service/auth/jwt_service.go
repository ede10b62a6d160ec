package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/ports"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Roles carried by operator tokens.
const (
	RoleTerminal = "terminal" // drive-thru lane device
	RoleOperator = "operator" // back-office staff
)

// Claims are the JWT claims of an API token. BranchID scopes the holder to
// one restaurant branch; zero means any branch.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role,omitempty"`
	BranchID int64  `json:"branch_id,omitempty"`
}

// JWTService issues, validates and revokes API tokens.
type JWTService struct {
	secret   []byte
	issuer   string
	duration time.Duration
	cache    ports.Cache
	log      *zap.Logger
}

// NewJWTService creates a new JWTService instance. cache may be nil, in
// which case revocation is unavailable.
func NewJWTService(secret, issuer string, duration time.Duration, cache ports.Cache, log *zap.Logger) *JWTService {
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	log.Info("JWT service initialized",
		zap.String("issuer", issuer),
		zap.Duration("token_duration", duration),
	)

	return &JWTService{
		secret:   []byte(secret),
		issuer:   issuer,
		duration: duration,
		cache:    cache,
		log:      log,
	}
}

// GenerateToken creates a signed HS256 token for subject.
func (s *JWTService) GenerateToken(subject, role string, branchID int64) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Role:     role,
		BranchID: branchID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign token", zap.String("subject", subject), zap.Error(err))
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.log.Debug("token generated",
		zap.String("subject", subject),
		zap.String("role", role),
		zap.String("jti", jti),
	)
	return signed, nil
}

// ValidateToken parses and validates a token string, returning the claims
// if the token is valid and has not been revoked.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.IsTokenRevoked(ctx, claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RevokeToken blacklists a token id until it would have expired anyway.
func (s *JWTService) RevokeToken(ctx context.Context, tokenID string) error {
	if s.cache == nil {
		return fmt.Errorf("failed to revoke token: no cache configured")
	}

	if err := s.cache.Set(ctx, revokedKey(tokenID), "revoked", s.duration); err != nil {
		s.log.Error("failed to revoke token", zap.String("token_id", tokenID), zap.Error(err))
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.log.Info("token revoked", zap.String("token_id", tokenID))
	return nil
}

// IsTokenRevoked treats cache errors as not revoked.
func (s *JWTService) IsTokenRevoked(ctx context.Context, tokenID string) bool {
	if s.cache == nil || tokenID == "" {
		return false
	}
	val, err := s.cache.Get(ctx, revokedKey(tokenID))
	if err != nil {
		return false
	}
	return val == "revoked"
}

func revokedKey(id string) string {
	return fmt.Sprintf("revoked_token:%s", id)
}
