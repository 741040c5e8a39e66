package repo

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"yamdb-api/internal/core/database"
	"yamdb-api/internal/domain"
)

// TaxonomyRepo 分类 / 体裁共用：列表、创建、按 slug 删除
type TaxonomyRepo[T domain.Taxon] struct{ db *gorm.DB }

func NewTaxonomyRepo[T domain.Taxon](db *gorm.DB) *TaxonomyRepo[T] {
	return &TaxonomyRepo[T]{db: db}
}

// List search 按 name / slug 前缀（不区分大小写）
func (r *TaxonomyRepo[T]) List(ctx context.Context, search string, offset, limit int) ([]T, int64, error) {
	q := r.db.WithContext(ctx).Model(new(T))
	if s := strings.TrimSpace(search); s != "" {
		p := prefixPattern(s)
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(slug) LIKE ? ESCAPE '!'", p, p)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []T
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *TaxonomyRepo[T]) FindBySlugs(ctx context.Context, slugs []string) ([]T, error) {
	var items []T
	if len(slugs) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&items).Error
	return items, err
}

func (r *TaxonomyRepo[T]) Create(ctx context.Context, v *T) error {
	err := guarded(ctx, r.db, func(tx *gorm.DB) error { return tx.Create(v).Error })
	if !database.IsDuplicate(err) {
		return err
	}
	_, slug := (*v).Key()
	var n int64
	if err := r.db.WithContext(ctx).Model(new(T)).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return fmt.Errorf("locate taxonomy conflict: %w", err)
	}
	if n > 0 {
		return domain.Conflict("slug", "slug already exists")
	}
	return domain.Conflict("name", "name already exists")
}

func (r *TaxonomyRepo[T]) DeleteBySlug(ctx context.Context, slug string) error {
	res := r.db.WithContext(ctx).Where("slug = ?", slug).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
