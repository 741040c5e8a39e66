package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yamdb-api/internal/domain"
)

// TitleFilter 各条件之间是 AND
type TitleFilter struct {
	Name     string
	Year     *int
	Category string
	Genre    string
}

type TitleRepo struct{ db *gorm.DB }

func NewTitleRepo(db *gorm.DB) *TitleRepo { return &TitleRepo{db: db} }

func (r *TitleRepo) List(ctx context.Context, f TitleFilter, offset, limit int) ([]domain.TitleView, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Title{})
	if s := strings.TrimSpace(f.Name); s != "" {
		q = q.Where("LOWER(titles.name) LIKE ? ESCAPE '!'", containsPattern(s))
	}
	if f.Year != nil {
		q = q.Where("titles.year = ?", *f.Year)
	}
	if f.Category != "" {
		q = q.Where("titles.category_slug = ?", f.Category)
	}
	if f.Genre != "" {
		q = q.Where(`EXISTS (SELECT 1 FROM title_genres tg JOIN genres g ON g.id = tg.genre_id
			WHERE tg.title_id = titles.id AND g.slug = ?)`, f.Genre)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var titles []domain.Title
	if err := q.Order("titles.name ASC").Order("titles.id ASC").
		Limit(limit).Offset(offset).Find(&titles).Error; err != nil {
		return nil, 0, err
	}
	views, err := r.hydrate(ctx, titles)
	return views, total, err
}

func (r *TitleRepo) Get(ctx context.Context, id uint) (*domain.TitleView, error) {
	var t domain.Title
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	views, err := r.hydrate(ctx, []domain.Title{t})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *TitleRepo) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Title{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// Create 写入作品及体裁关联；应在事务中调用
func (r *TitleRepo) Create(ctx context.Context, t *domain.Title, genreIDs []uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(t).Error; err != nil {
		return err
	}
	return r.linkGenres(db, t.ID, genreIDs)
}

// Update fields 为空时只处理体裁；genreIDs 为 nil 表示不改关联
func (r *TitleRepo) Update(ctx context.Context, t *domain.Title, fields []string, genreIDs []uint) error {
	db := r.db.WithContext(ctx)
	if len(fields) > 0 {
		res := db.Model(&domain.Title{ID: t.ID}).Select(fields).Omit(clause.Associations).Updates(t)
		if res.Error != nil {
			return res.Error
		}
	}
	if genreIDs == nil {
		return nil
	}
	if err := db.Where("title_id = ?", t.ID).Delete(&domain.TitleGenre{}).Error; err != nil {
		return err
	}
	return r.linkGenres(db, t.ID, genreIDs)
}

func (r *TitleRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Title{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TitleRepo) linkGenres(db *gorm.DB, titleID uint, genreIDs []uint) error {
	if len(genreIDs) == 0 {
		return nil
	}
	links := make([]domain.TitleGenre, 0, len(genreIDs))
	for i := range genreIDs {
		gid := genreIDs[i]
		links = append(links, domain.TitleGenre{TitleID: titleID, GenreID: &gid})
	}
	return db.Omit(clause.Associations).Create(&links).Error
}

type genreRow struct {
	TitleID uint
	GenreID uint
	Name    string
	Slug    string
}

type ratingRow struct {
	TitleID uint
	Total   int64
	Cnt     int64
}

// hydrate 按页批量补齐分类、体裁和评分，避免 N+1
func (r *TitleRepo) hydrate(ctx context.Context, titles []domain.Title) ([]domain.TitleView, error) {
	views := make([]domain.TitleView, len(titles))
	if len(titles) == 0 {
		return views, nil
	}
	db := r.db.WithContext(ctx)

	ids := make([]uint, 0, len(titles))
	slugSet := map[string]struct{}{}
	for _, t := range titles {
		ids = append(ids, t.ID)
		if t.CategorySlug != nil {
			slugSet[*t.CategorySlug] = struct{}{}
		}
	}

	cats := map[string]*domain.Category{}
	if len(slugSet) > 0 {
		slugs := make([]string, 0, len(slugSet))
		for s := range slugSet {
			slugs = append(slugs, s)
		}
		var list []domain.Category
		if err := db.Where("slug IN ?", slugs).Find(&list).Error; err != nil {
			return nil, err
		}
		for i := range list {
			cats[list[i].Slug] = &list[i]
		}
	}

	var grows []genreRow
	err := db.Table("title_genres").
		Select("title_genres.title_id, genres.id AS genre_id, genres.name, genres.slug").
		Joins("JOIN genres ON genres.id = title_genres.genre_id").
		Where("title_genres.title_id IN ?", ids).
		Order("genres.name ASC").
		Scan(&grows).Error
	if err != nil {
		return nil, err
	}
	genres := map[uint][]domain.Genre{}
	for _, g := range grows {
		genres[g.TitleID] = append(genres[g.TitleID], domain.Genre{ID: g.GenreID, Name: g.Name, Slug: g.Slug})
	}

	var rrows []ratingRow
	err = db.Model(&domain.Review{}).
		Select("title_id, SUM(score) AS total, COUNT(*) AS cnt").
		Where("title_id IN ?", ids).
		Group("title_id").
		Scan(&rrows).Error
	if err != nil {
		return nil, err
	}
	ratings := map[uint]*int{}
	for _, rr := range rrows {
		ratings[rr.TitleID] = domain.MeanRating(rr.Total, rr.Cnt)
	}

	for i, t := range titles {
		if t.CategorySlug != nil {
			t.Category = cats[*t.CategorySlug]
		}
		g := genres[t.ID]
		if g == nil {
			g = []domain.Genre{}
		}
		views[i] = domain.TitleView{Title: t, Genres: g, Rating: ratings[t.ID]}
	}
	return views, nil
}
