package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessExpiry 访问令牌默认有效期
const DefaultAccessExpiry = 2 * time.Hour

// 令牌签发与服务器时钟允许的偏差
const clockLeeway = 30 * time.Second

const tokenTypeAccess = "access"

var (
	ErrTokenExpired  = errors.New("令牌已过期")
	ErrTokenInvalid  = errors.New("令牌无效")
	ErrTokenNoTenant = errors.New("令牌缺少租户信息")
)

// JWTService 签发并校验 HS256 访问令牌
type JWTService struct {
	secretKey    []byte
	issuer       string
	accessExpiry time.Duration
	parser       *jwt.Parser
}

// Option JWTService 可选项
type Option func(*JWTService)

// WithAccessExpiry 覆盖默认有效期，d <= 0 时忽略
func WithAccessExpiry(d time.Duration) Option {
	return func(s *JWTService) {
		if d > 0 {
			s.accessExpiry = d
		}
	}
}

// NewJWTService 创建 JWT 服务
func NewJWTService(secretKey, issuer string, opts ...Option) *JWTService {
	s := &JWTService{
		secretKey:    []byte(secretKey),
		issuer:       issuer,
		accessExpiry: DefaultAccessExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	return s
}

// TokenClaims 访问令牌声明
type TokenClaims struct {
	UserID    string   `json:"uid"`
	TenantID  string   `json:"tid"`
	Roles     []string `json:"roles"`
	TokenType string   `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken 为租户内的用户签发访问令牌，expiry <= 0 时使用服务有效期
func (s *JWTService) GenerateAccessToken(userID, tenantID string, roles []string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = s.accessExpiry
	}
	now := time.Now()
	claims := &TokenClaims{
		UserID:    userID,
		TenantID:  tenantID,
		Roles:     roles,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("签名令牌失败: %w", err)
	}
	return signed, nil
}

// ValidateToken 校验签名、签发方与有效期，返回的错误可用 errors.Is 匹配 ErrToken*
func (s *JWTService) ValidateToken(_ context.Context, tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secretKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.TenantID == "":
		return nil, ErrTokenNoTenant
	}
	return claims, nil
}

// ExtractTokenFromBearer 解析 Authorization 头，非 Bearer 方案返回空串
func ExtractTokenFromBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
