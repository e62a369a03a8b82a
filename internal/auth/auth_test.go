package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTServiceRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "waide")

	token, err := svc.GenerateAccessToken("u1", "t1", []string{"editor"}, 0)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, []string{"editor"}, claims.Roles)
	assert.WithinDuration(t, time.Now().Add(DefaultAccessExpiry), claims.ExpiresAt.Time, 5*time.Second)

	_, err = NewJWTService("other", "waide").ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = NewJWTService("secret", "someone-else").ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTServiceRejects(t *testing.T) {
	svc := NewJWTService("secret", "waide")
	sign := func(method jwt.SigningMethod, key any, claims *TokenClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	expired := sign(jwt.SigningMethodHS256, []byte("secret"), &TokenClaims{
		TenantID:  "t1",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "waide",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	_, err := svc.ValidateToken(context.Background(), expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	noExpiry := sign(jwt.SigningMethodHS256, []byte("secret"), &TokenClaims{
		TenantID:         "t1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "waide"},
	})
	_, err = svc.ValidateToken(context.Background(), noExpiry)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	hs512 := sign(jwt.SigningMethodHS512, []byte("secret"), &TokenClaims{
		TenantID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "waide",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	_, err = svc.ValidateToken(context.Background(), hs512)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	noTenant, err := svc.GenerateAccessToken("u1", "", nil, 0)
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), noTenant)
	assert.ErrorIs(t, err, ErrTokenNoTenant)
}

func TestWithAccessExpiry(t *testing.T) {
	svc := NewJWTService("secret", "waide", WithAccessExpiry(24*time.Hour))
	token, err := svc.GenerateAccessToken("u1", "t1", nil, 0)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	token, err = svc.GenerateAccessToken("u1", "t1", nil, time.Minute)
	require.NoError(t, err)
	claims, err = svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	assert.Equal(t, DefaultAccessExpiry, NewJWTService("s", "i", WithAccessExpiry(0)).accessExpiry)
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{
			"tenant": c.GetString(TenantIDKey),
			"user":   user.UserID,
		})
	})
	r.GET("/admin", RequireRole(RoleOperator), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	svc := NewJWTService("secret", "waide")
	r := newTestRouter(AuthMiddleware(svc))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"code":"UNAUTHORIZED","message":"令牌无效"}`, w.Body.String())

	token, err := svc.GenerateAccessToken("u1", "t1", []string{"editor"}, 0)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"t1","user":"u1"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	opToken, err := svc.GenerateAccessToken("u2", "t1", []string{RoleOperator}, 0)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+opToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHeaderTenantMiddleware(t *testing.T) {
	r := newTestRouter(HeaderTenantMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderTenantID, "t9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"tenant":"t9","user":"local"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.JSONEq(t, `{"tenant":"default","user":"local"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderTenantID, "../etc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("bearer  abc "))
	assert.Empty(t, ExtractTokenFromBearer("Basic abc"))
	assert.Empty(t, ExtractTokenFromBearer("Bearer "))
	assert.Empty(t, ExtractTokenFromBearer(""))
}

func TestUserHasRole(t *testing.T) {
	assert.True(t, (&User{Roles: []string{RoleAdmin}}).HasRole(RoleOperator))
	assert.True(t, (&User{Roles: []string{"editor", RoleOperator}}).HasRole(RoleOperator))
	assert.False(t, (&User{Roles: []string{"editor"}}).HasRole(RoleOperator))
	assert.False(t, (&User{}).HasRole(RoleOperator))
}
