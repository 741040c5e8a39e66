package repo

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yamdb-api/internal/core/database"
	"yamdb-api/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

// Create 唯一约束冲突时返回带字段名的 ConflictError
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := guarded(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(u).Error
	})
	if database.IsDuplicate(err) {
		return r.conflict(ctx, u.ID, u.Username, u.Email)
	}
	return err
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindByPair 用户名 + 邮箱完全匹配
func (r *UserRepo) FindByPair(ctx context.Context, username, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("username = ? AND LOWER(email) = ?", username, strings.ToLower(email)).
		First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, search string, offset, limit int) ([]domain.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.User{})
	if s := strings.TrimSpace(search); s != "" {
		q = q.Where("LOWER(username) LIKE ? ESCAPE '!'", containsPattern(s))
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update 只写入 fields 中的列
func (r *UserRepo) Update(ctx context.Context, u *domain.User, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	err := guarded(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Model(u).Select(fields).Updates(u).Error
	})
	if database.IsDuplicate(err) {
		return r.conflict(ctx, u.ID, u.Username, u.Email)
	}
	return err
}

func (r *UserRepo) DeleteByUsername(ctx context.Context, username string) error {
	res := r.db.WithContext(ctx).Where("username = ?", username).Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// conflict 冲突后再查一次，定位被占用的字段
func (r *UserRepo) conflict(ctx context.Context, selfID uint, username, email string) error {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ? AND id <> ?", username, selfID).Count(&n).Error
	if err != nil {
		return fmt.Errorf("locate user conflict: %w", err)
	}
	if n > 0 {
		return domain.Conflict("username", "a user with that username already exists")
	}
	return domain.Conflict("email", "a user with that email already exists")
}
