package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"yamdb-api/internal/core/auth"
	"yamdb-api/internal/core/config"
	"yamdb-api/internal/core/server"
	"yamdb-api/internal/repo"
	"yamdb-api/internal/service"
	"yamdb-api/internal/transport/http/ez"
	"yamdb-api/internal/transport/http/handler"
	mdw "yamdb-api/internal/transport/http/middleware"
)

type Deps struct {
	Logger *zap.Logger
	DB     *gorm.DB
	JWT    *auth.JWTer
	Auth   *service.AuthService
	Users  *service.UserService
	HTTP   config.HTTP
	Env    string
	Paging handler.Paging
}

func NewAPIEngine(d Deps) *gin.Engine {
	r := server.NewRouter(d.Logger, d.Env)

	r.Use(
		mdw.RequestID(),
		mdw.AccessLog(d.Logger),
		mdw.Metrics(),
		mdw.RateLimit(rate.Limit(d.HTTP.RateLimitRPS), d.HTTP.RateLimitBurst),
		mdw.ConcurrencyLimit(d.HTTP.MaxInFlight),
		mdw.MaxBodyBytes(d.HTTP.MaxBodyBytes),
		mdw.Timeout(time.Duration(d.HTTP.HandlerTimeoutSec)*time.Second),
	)

	r.GET("/health", health(d.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1", mdw.Authenticate(d.JWT, repo.NewUserRepo(d.DB)))
	api := ez.New(v1, d.DB, d.Logger)

	hd := &handler.Deps{Auth: d.Auth, Users: d.Users, Paging: d.Paging}
	var reg Registry
	reg.Register("/auth", handler.AuthModule{Deps: hd},
		mdw.RateLimitPerIP(rate.Limit(d.HTTP.AuthRPS), d.HTTP.AuthBurst))
	reg.Register("/users", handler.UserModule{Deps: hd})
	reg.Register("/categories", handler.Categories(hd))
	reg.Register("/genres", handler.Genres(hd))
	reg.Register("/titles", handler.TitleModule{Deps: hd})
	reg.Register("/titles/:title_id/reviews", handler.ReviewModule{Deps: hd})
	reg.Register("/titles/:title_id/reviews/:review_id/comments", handler.CommentModule{Deps: hd})
	reg.MountAll(api)

	return r
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
