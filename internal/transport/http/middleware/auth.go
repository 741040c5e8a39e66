package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"yamdb-api/internal/core/auth"
	"yamdb-api/internal/domain"
	"yamdb-api/internal/policy"
	resp "yamdb-api/internal/transport/http/response"
)

const keyActor = "actor"

// UserLookup 按 id 取当前用户（角色以库中为准）
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
}

// Authenticate 可选鉴权：无 Authorization 头视为匿名；头存在但无效直接 401
func Authenticate(j *auth.JWTer, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := strings.TrimSpace(c.GetHeader("Authorization"))
		if ah == "" {
			c.Set(keyActor, policy.Anonymous())
			c.Next()
			return
		}
		scheme, tok, ok := strings.Cut(ah, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
			resp.Abort(c, 401, "Invalid authorization header.")
			return
		}
		claims, err := j.Parse(strings.TrimSpace(tok))
		if err != nil {
			resp.Abort(c, 401, "Given token not valid for any token type.")
			return
		}
		u, err := users.FindByID(c.Request.Context(), claims.UID)
		if err != nil {
			resp.Abort(c, 401, "User not found.")
			return
		}
		c.Set(keyActor, policy.Actor{
			UserID:        u.ID,
			Username:      u.Username,
			Role:          u.Role,
			Authenticated: true,
		})
		c.Next()
	}
}

// ActorFrom 未经过 Authenticate 时返回匿名
func ActorFrom(c *gin.Context) policy.Actor {
	if v, ok := c.Get(keyActor); ok {
		if a, ok := v.(policy.Actor); ok {
			return a
		}
	}
	return policy.Anonymous()
}

// SetActor 测试或内部调用时直接注入
func SetActor(c *gin.Context, a policy.Actor) { c.Set(keyActor, a) }
