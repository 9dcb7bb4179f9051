package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// 角色常量
const (
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// Identity 已验证的调用者身份
// 身份由外部认证服务签发,这里只做校验与注入
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin 判断是否为管理员
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Claims 身份令牌声明
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator 身份令牌验证器
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator 创建身份令牌验证器
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// ValidateToken 验证 HS256 签名的身份令牌
func (v *TokenValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	if claims.Role == "" {
		claims.Role = RoleWorker
	}
	return claims, nil
}

// IdentityMiddleware 身份中间件
// 从 Bearer 令牌提取身份并注入请求上下文
func IdentityMiddleware(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "missing bearer token",
			})
			return
		}

		claims, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "invalid token",
			})
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// IdentityFromContext 从 gin 上下文读取已验证身份
func IdentityFromContext(c *gin.Context) Identity {
	return Identity{
		UserID: c.GetString("user_id"),
		Role:   c.GetString("role"),
	}
}
