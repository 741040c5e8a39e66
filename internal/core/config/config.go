package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host              string
	Port              int
	ReadTimeoutSec    int
	WriteTimeoutSec   int
	IdleTimeoutSec    int
	HandlerTimeoutSec int
	MaxBodyBytes      int64
	RateLimitRPS      float64
	RateLimitBurst    int
	AuthRPS           float64 // /auth 每 IP 限速
	AuthBurst         int
	MaxInFlight       int64
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

// Confirmation 注册验证码
type Confirmation struct {
	TTLMin      int
	CooldownSec int // 同一邮箱两次发码的最小间隔，0 关闭
}

type Mail struct {
	Driver   string // smtp | log
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Pagination struct {
	PageSize    int
	MaxPageSize int
}

type Config struct {
	App          App
	Log          Log
	JWT          JWT
	Confirmation Confirmation
	Mail         Mail
	DB           DB
	Redis        Redis `mapstructure:"redis"`
	Pagination   Pagination
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "yamdb-api")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 5)
	v.SetDefault("app.http.writeTimeoutSec", 10)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.http.handlerTimeoutSec", 10)
	v.SetDefault("app.http.maxBodyBytes", 1<<20)
	v.SetDefault("app.http.rateLimitRPS", 200)
	v.SetDefault("app.http.rateLimitBurst", 400)
	v.SetDefault("app.http.authRPS", 1)
	v.SetDefault("app.http.authBurst", 10)
	v.SetDefault("app.http.maxInFlight", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "yamdb")
	v.SetDefault("jwt.accessTokenTTLMin", 24*60)
	v.SetDefault("confirmation.ttlMin", 24*60)
	v.SetDefault("confirmation.cooldownSec", 30)
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from", "noreply@yamdb.local")
	v.SetDefault("redis.addr", "")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:yamdb.sqlite3")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")
	v.SetDefault("pagination.pageSize", 10)
	v.SetDefault("pagination.maxPageSize", 100)
}

// Read 读取配置文件 + APP_ 环境变量覆盖；文件不存在时只用默认值和环境变量
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, err
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("read config: %v", err)
	}
	if c.JWT.Secret == "" {
		log.Fatalf("config: jwt.secret is required (APP_JWT_SECRET)")
	}
	return c
}
