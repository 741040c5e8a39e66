package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yamdb-api/internal/core/database"
	"yamdb-api/internal/domain"
)

// ReviewRepo 评论总是挂在某个作品下
type ReviewRepo struct{ db *gorm.DB }

func NewReviewRepo(db *gorm.DB) *ReviewRepo { return &ReviewRepo{db: db} }

func (r *ReviewRepo) List(ctx context.Context, titleID uint, offset, limit int) ([]domain.Review, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Review{}).Where("title_id = ?", titleID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []domain.Review
	err := q.Preload("Author").Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}

func (r *ReviewRepo) Get(ctx context.Context, titleID, id uint) (*domain.Review, error) {
	var rv domain.Review
	err := r.db.WithContext(ctx).Preload("Author").
		Where("id = ? AND title_id = ?", id, titleID).First(&rv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rv, nil
}

// Create 同一作者对同一作品只能有一条，由唯一索引保证
func (r *ReviewRepo) Create(ctx context.Context, rv *domain.Review) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(rv).Error
	switch {
	case database.IsDuplicate(err):
		return domain.Conflict("", "you have already reviewed this title")
	case database.IsForeignKeyViolation(err):
		return domain.ErrNotFound
	}
	return err
}

func (r *ReviewRepo) Update(ctx context.Context, rv *domain.Review, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.Review{ID: rv.ID}).Select(fields).Updates(rv).Error
}

func (r *ReviewRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Review{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CommentRepo 评论下的回复
type CommentRepo struct{ db *gorm.DB }

func NewCommentRepo(db *gorm.DB) *CommentRepo { return &CommentRepo{db: db} }

func (r *CommentRepo) List(ctx context.Context, reviewID uint, offset, limit int) ([]domain.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Comment{}).Where("review_id = ?", reviewID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []domain.Comment
	err := q.Preload("Author").Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}

func (r *CommentRepo) Get(ctx context.Context, reviewID, id uint) (*domain.Comment, error) {
	var c domain.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("id = ? AND review_id = ?", id, reviewID).First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
	if database.IsForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}

func (r *CommentRepo) Update(ctx context.Context, c *domain.Comment, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.Comment{ID: c.ID}).Select(fields).Updates(c).Error
}

func (r *CommentRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Comment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
