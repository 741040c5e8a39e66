// Package testkit 测试辅助：内存 sqlite + 迁移 + 造数
package testkit

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yamdb-api/internal/core/database"
	"yamdb-api/internal/domain"
)

// OpenDB 每个测试独立的内存库（单连接，外键开启）
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func MustCreate(t testing.TB, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

// User 造一个已确认用户
func User(t testing.TB, db *gorm.DB, username string, role domain.Role) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		Username:   username,
		Email:      username + "@example.com",
		Role:       role,
		State:      domain.StateVerified,
		VerifiedAt: &now,
	}
	MustCreate(t, db, u)
	return u
}

func Category(t testing.TB, db *gorm.DB, name, slug string) *domain.Category {
	t.Helper()
	c := &domain.Category{Name: name, Slug: slug}
	MustCreate(t, db, c)
	return c
}

func Genre(t testing.TB, db *gorm.DB, name, slug string) *domain.Genre {
	t.Helper()
	g := &domain.Genre{Name: name, Slug: slug}
	MustCreate(t, db, g)
	return g
}

// Title 造作品；category 为空则不挂分类
func Title(t testing.TB, db *gorm.DB, name string, year int, category string, genres ...*domain.Genre) *domain.Title {
	t.Helper()
	ti := &domain.Title{Name: name, Year: year}
	if category != "" {
		ti.CategorySlug = &category
	}
	MustCreate(t, db, ti)
	for _, g := range genres {
		gid := g.ID
		MustCreate(t, db, &domain.TitleGenre{TitleID: ti.ID, GenreID: &gid})
	}
	return ti
}

func Review(t testing.TB, db *gorm.DB, title *domain.Title, author *domain.User, score int) *domain.Review {
	t.Helper()
	r := &domain.Review{TitleID: title.ID, AuthorID: author.ID, Text: "review by " + author.Username, Score: score}
	MustCreate(t, db, r)
	return r
}

func Comment(t testing.TB, db *gorm.DB, review *domain.Review, author *domain.User) *domain.Comment {
	t.Helper()
	c := &domain.Comment{ReviewID: review.ID, AuthorID: author.ID, Text: "comment by " + author.Username}
	MustCreate(t, db, c)
	return c
}
