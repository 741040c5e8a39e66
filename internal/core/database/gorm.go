package database

import (
	"errors"
	"net/url"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"

	"yamdb-api/internal/domain"
)

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string
}

func NewGorm(o Opts) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch o.Driver {
	case "postgres":
		dial = postgres.Open(o.DSN)
	case "mysql":
		dial = mysql.Open(normalizeMySQLDSN(o.DSN, o.Username, o.Password))
	case "sqlite":
		dial = sqlite.Open(normalizeSQLiteDSN(o.DSN))
	default:
		return nil, ErrUnsupportedDriver
	}
	lvl := logger.Warn
	switch o.LogLevel {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(lvl),
		// 唯一键 / 外键冲突翻译成 gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if o.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetimeMin > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	}
	db = db.
		Session(&gorm.Session{
			PrepareStmt:            o.Driver != "sqlite", // 预编译缓存，提高 QPS；sqlite 单连接下不开
			CreateBatchSize:        200,                  // 批量写
			SkipDefaultTransaction: true,                 // 只在需要时手动开 Tx
		})
	return db, nil
}

// normalizeMySQLDSN 把 mysql:// / jdbc:mysql:// URL 转成 go-sql-driver DSN；原生 DSN 原样返回
func normalizeMySQLDSN(input, userOverride, passOverride string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if !strings.HasPrefix(in, "mysql://") {
		return strings.TrimSpace(input)
	}
	u, err := url.Parse(in)
	if err != nil {
		return in // 交给驱动报错
	}

	cfg := gomysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	q := u.Query()
	cfg.User = firstNonEmpty(userOverride, q.Get("user"), cfg.User)
	cfg.Passwd = firstNonEmpty(passOverride, q.Get("password"), cfg.Passwd)

	cfg.Params = map[string]string{"charset": firstNonEmpty(q.Get("charset"), q.Get("characterEncoding"), "utf8mb4")}
	switch strings.ToLower(q.Get("useSSL")) {
	case "":
	case "true", "1":
		cfg.TLSConfig = "true"
	case "skip-verify", "preferred":
		cfg.TLSConfig = strings.ToLower(q.Get("useSSL"))
	default:
		cfg.TLSConfig = "false"
	}
	if tz := q.Get("serverTimezone"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Loc = loc
		}
	}
	return cfg.FormatDSN()
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeSQLiteDSN 强制打开外键（级联删除 / 置空依赖它）
func normalizeSQLiteDSN(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		in = "file::memory:"
	}
	lower := strings.ToLower(in)
	if strings.Contains(lower, "_foreign_keys=") || strings.Contains(lower, "_fk=") {
		return in
	}
	sep := "?"
	if strings.Contains(in, "?") {
		sep = "&"
	}
	return in + sep + "_foreign_keys=on"
}

// Migrate 建表 / 补列 / 建约束
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(domain.Models()...)
}

// IsDuplicate 唯一约束冲突。
// TranslateError 之外再按消息兜底，兼容驱动版本差异
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}

// IsForeignKeyViolation 外键不存在（如引用了不存在的分类）
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint") || strings.Contains(msg, "violates foreign key")
}

var ErrUnsupportedDriver = gorm.ErrInvalidDB
