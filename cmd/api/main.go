package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"yamdb-api/internal/core/auth"
	"yamdb-api/internal/core/config"
	"yamdb-api/internal/core/cooldown"
	"yamdb-api/internal/core/database"
	"yamdb-api/internal/core/logger"
	"yamdb-api/internal/core/mail"
	"yamdb-api/internal/core/server"
	"yamdb-api/internal/service"
	"yamdb-api/internal/transport/http/handler"
	"yamdb-api/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// 发码冷却：配了 redis 走 redis，否则进程内
	var rdb cooldown.RedisClient
	if cfg.Redis.Addr != "" {
		cli, err := cooldown.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer cli.Close()
		rdb = cli
	}
	cd := cooldown.New(time.Duration(cfg.Confirmation.CooldownSec)*time.Second, rdb)

	mailer, err := mail.New(cfg.Mail.Driver, cfg.Mail.Host, cfg.Mail.Port,
		cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, log)
	if err != nil {
		log.Fatal("mail sender", zap.Error(err))
	}

	codes, err := auth.NewCodeGenerator([]byte(cfg.JWT.Secret), time.Duration(cfg.Confirmation.TTLMin)*time.Minute)
	if err != nil {
		log.Fatal("confirmation codes", zap.Error(err))
	}
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	r := router.NewAPIEngine(router.Deps{
		Logger: log,
		DB:     db,
		JWT:    jwter,
		Auth:   service.NewAuthService(codes, jwter, mailer, cd, log),
		Users:  service.NewUserService(),
		HTTP:   cfg.App.HTTP,
		Env:    cfg.App.Env,
		Paging: handler.Paging{Default: cfg.Pagination.PageSize, Max: cfg.Pagination.MaxPageSize},
	})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("yamdb api starting",
		zap.String("addr", addr),
		zap.String("env", cfg.App.Env),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/v1/"),
	)

	if err := server.Serve(ctx, srv, log, 10*time.Second); err != nil {
		log.Fatal("yamdb api FAILED", zap.Error(err))
	}
	log.Info("yamdb api stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
