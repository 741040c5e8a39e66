package domain

import (
	"math"
	"time"
)

type Category struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:256;not null"`
	Slug string `gorm:"uniqueIndex;size:50;not null"`
}

func (Category) TableName() string { return "categories" }

type Genre struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:256;not null"`
	Slug string `gorm:"uniqueIndex;size:50;not null"`
}

func (Genre) TableName() string { return "genres" }

type Title struct {
	ID           uint    `gorm:"primaryKey"`
	Name         string  `gorm:"size:256;not null;index"`
	Year         int     `gorm:"not null;index"`
	Description  string  `gorm:"type:text"`
	CategorySlug *string `gorm:"size:50;index"`

	// 分类删除时置空，不级联
	Category *Category `gorm:"foreignKey:CategorySlug;references:Slug;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (Title) TableName() string { return "titles" }

// TitleGenre 作品-体裁关联；体裁删除时 genre_id 置空
type TitleGenre struct {
	ID      uint  `gorm:"primaryKey"`
	TitleID uint  `gorm:"not null;index"`
	GenreID *uint `gorm:"index"`

	Title *Title `gorm:"constraint:OnDelete:CASCADE"`
	Genre *Genre `gorm:"constraint:OnDelete:SET NULL"`
}

func (TitleGenre) TableName() string { return "title_genres" }

// TitleView 读模型：作品 + 分类 + 体裁 + 实时评分
type TitleView struct {
	Title
	Genres []Genre
	Rating *int
}

type Review struct {
	ID        uint      `gorm:"primaryKey"`
	TitleID   uint      `gorm:"not null;uniqueIndex:uq_review_title_author"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:uq_review_title_author;index"`
	Text      string    `gorm:"type:text;not null"`
	Score     int       `gorm:"not null;check:score >= 1 AND score <= 10"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	Title  *Title `gorm:"constraint:OnDelete:CASCADE"`
	Author *User  `gorm:"constraint:OnDelete:CASCADE"`
}

func (Review) TableName() string { return "reviews" }

type Comment struct {
	ID        uint      `gorm:"primaryKey"`
	ReviewID  uint      `gorm:"not null;index"`
	AuthorID  uint      `gorm:"not null;index"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	Review *Review `gorm:"constraint:OnDelete:CASCADE"`
	Author *User   `gorm:"constraint:OnDelete:CASCADE"`
}

func (Comment) TableName() string { return "comments" }

// Models 需要迁移的全部表
func Models() []any {
	return []any{
		&User{},
		&Category{},
		&Genre{},
		&Title{},
		&TitleGenre{},
		&Review{},
		&Comment{},
	}
}

// MeanRating 评分均值，四舍六入五成双；无评论返回 nil
func MeanRating(sum, count int64) *int {
	if count <= 0 {
		return nil
	}
	r := int(math.RoundToEven(float64(sum) / float64(count)))
	return &r
}

const (
	MinScore = 1
	MaxScore = 10
)

// Taxon 分类 / 体裁的共同形态
type Taxon interface {
	Category | Genre
	Key() (name, slug string)
}

func (c Category) Key() (string, string) { return c.Name, c.Slug }
func (g Genre) Key() (string, string)    { return g.Name, g.Slug }
