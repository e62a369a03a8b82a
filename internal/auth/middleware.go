package auth

import (
	"errors"
	"net/http"
	"regexp"
	"slices"

	"github.com/gin-gonic/gin"
)

// 处理器通过 c.GetString 读取的键
const (
	TenantIDKey = "tenant_id"
	UserIDKey   = "user_id"
	userKey     = "auth_user"
)

// HeaderTenantID 关闭鉴权时从该请求头读取租户
const HeaderTenantID = "X-Tenant-ID"

// DefaultTenant 关闭鉴权且未携带租户头时使用的租户
const DefaultTenant = "default"

// 角色
const (
	RoleAdmin    = "admin"    // 拥有全部权限
	RoleOperator = "operator" // 可触发批量扫描、发布模板、清理评分缓存
)

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// User 通过认证的调用方
type User struct {
	UserID   string
	TenantID string
	Roles    []string
}

// HasRole admin 视为拥有任意角色
func (u *User) HasRole(required ...string) bool {
	if slices.Contains(u.Roles, RoleAdmin) {
		return true
	}
	for _, role := range required {
		if slices.Contains(u.Roles, role) {
			return true
		}
	}
	return false
}

// errorBody 与 API 通用错误响应保持同一结构
type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Code: code, Message: message})
}

// AuthMiddleware JWT 认证中间件，令牌必须是携带租户的访问令牌
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractTokenFromBearer(c.GetHeader("Authorization"))
		if token == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "缺少 Bearer 令牌")
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			msg := "令牌无效"
			switch {
			case errors.Is(err, ErrTokenExpired):
				msg = "令牌已过期"
			case errors.Is(err, ErrTokenNoTenant):
				msg = "令牌缺少租户信息"
			}
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}
		if claims.TokenType != tokenTypeAccess {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "令牌类型错误")
			return
		}

		setUser(c, &User{UserID: claims.UserID, TenantID: claims.TenantID, Roles: claims.Roles})
		c.Next()
	}
}

// HeaderTenantMiddleware 关闭鉴权时使用，租户取自 X-Tenant-ID 请求头，调用方视为 admin
func HeaderTenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)
		if tenantID == "" {
			tenantID = DefaultTenant
		}
		if !tenantPattern.MatchString(tenantID) {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", "租户 ID 格式错误")
			return
		}
		setUser(c, &User{UserID: "local", TenantID: tenantID, Roles: []string{RoleAdmin}})
		c.Next()
	}
}

// RequireRole 角色检查中间件
func RequireRole(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "未认证")
			return
		}
		if !user.HasRole(requiredRoles...) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "角色权限不足")
			return
		}
		c.Next()
	}
}

// CurrentUser 从 Gin Context 获取调用方
func CurrentUser(c *gin.Context) (*User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*User)
	return user, ok
}

func setUser(c *gin.Context, user *User) {
	c.Set(userKey, user)
	c.Set(TenantIDKey, user.TenantID)
	c.Set(UserIDKey, user.UserID)
}
