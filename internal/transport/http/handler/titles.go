package handler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"

	"yamdb-api/internal/domain"
	"yamdb-api/internal/policy"
	"yamdb-api/internal/repo"
	"yamdb-api/internal/transport/http/ez"
	resp "yamdb-api/internal/transport/http/response"
)

// TitleModule /titles/
type TitleModule struct{ *Deps }

func (TitleModule) Priority() int { return 40 }

type titleOut struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Year        int        `json:"year"`
	Rating      *int       `json:"rating"`
	Description string     `json:"description"`
	Genre       []taxonOut `json:"genre"`
	Category    *taxonOut  `json:"category"`
}

func toTitle(v domain.TitleView) titleOut {
	out := titleOut{
		ID:          v.ID,
		Name:        v.Name,
		Year:        v.Year,
		Rating:      v.Rating,
		Description: v.Description,
		Genre:       make([]taxonOut, 0, len(v.Genres)),
	}
	for _, g := range v.Genres {
		out.Genre = append(out.Genre, toTaxon(g))
	}
	if v.Category != nil {
		c := toTaxon(*v.Category)
		out.Category = &c
	}
	return out
}

type titleQuery struct {
	Name     string `form:"name"`
	Year     string `form:"year"`
	Category string `form:"category"`
	Genre    string `form:"genre"`
}

func (q titleQuery) filter() (repo.TitleFilter, error) {
	f := repo.TitleFilter{
		Name:     q.Name,
		Category: strings.TrimSpace(q.Category),
		Genre:    strings.TrimSpace(q.Genre),
	}
	if s := strings.TrimSpace(q.Year); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			return f, ez.FieldError("year", "Enter a whole number.")
		}
		f.Year = &y
	}
	return f, nil
}

// yearRules Min 会跳过零值，下界自己判断
func yearRules() []validation.Rule {
	return []validation.Rule{
		validation.By(func(v any) error {
			iv, _ := validation.Indirect(v)
			y, ok := iv.(int)
			if !ok {
				return nil
			}
			if y < 1 {
				return validation.NewError("validation_year_min", "year must be a positive number")
			}
			return nil
		}),
		validation.Max(time.Now().Year()).Error("year cannot be in the future"),
	}
}

type titleCreateIn struct {
	Name        string   `json:"name"`
	Year        *int     `json:"year"`
	Description string   `json:"description"`
	Genre       []string `json:"genre"`
	Category    string   `json:"category"`
}

func (in titleCreateIn) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 256)),
		validation.Field(&in.Year, append([]validation.Rule{validation.NotNil}, yearRules()...)...),
	)
}

// category 传空串表示清空分类
type titlePatchIn struct {
	Name        *string   `json:"name"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Genre       *[]string `json:"genre"`
	Category    *string   `json:"category"`
}

func (in titlePatchIn) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 256)),
		validation.Field(&in.Year, yearRules()...),
	)
}

func (m TitleModule) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[titleQuery, resp.Page[titleOut]]{
		Method: http.MethodGet, Path: "/", Binder: ez.BindQuery,
		Kind: policy.KindTitle, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, q *titleQuery) (resp.Page[titleOut], error) {
			f, err := q.filter()
			if err != nil {
				return resp.Page[titleOut]{}, err
			}
			p, err := m.page(c)
			if err != nil {
				return resp.Page[titleOut]{}, err
			}
			items, total, err := repo.NewTitleRepo(db).List(c.Request.Context(), f, p.Offset(), p.Limit())
			if err != nil {
				return resp.Page[titleOut]{}, err
			}
			return paged(c, p, items, total, toTitle)
		},
	})

	ez.RegisterAction(e, ez.Action[titleCreateIn, titleOut]{
		Method: http.MethodPost, Path: "/", Binder: ez.BindJSON,
		Kind: policy.KindTitle, Verb: policy.Create, UseTx: true, Status: http.StatusCreated,
		Handler: func(c *gin.Context, tx *gorm.DB, in *titleCreateIn) (titleOut, error) {
			ctx := c.Request.Context()
			genreIDs, err := resolveGenres(ctx, tx, in.Genre)
			if err != nil {
				return titleOut{}, err
			}
			t := &domain.Title{Name: strings.TrimSpace(in.Name), Year: *in.Year, Description: in.Description}
			if t.CategorySlug, err = resolveCategory(ctx, tx, in.Category); err != nil {
				return titleOut{}, err
			}
			titles := repo.NewTitleRepo(tx)
			if err := titles.Create(ctx, t, genreIDs); err != nil {
				return titleOut{}, err
			}
			v, err := titles.Get(ctx, t.ID)
			if err != nil {
				return titleOut{}, err
			}
			return toTitle(*v), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, titleOut]{
		Method: http.MethodGet, Path: "/:title_id/", Binder: ez.BindNone,
		Kind: policy.KindTitle, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (titleOut, error) {
			id, err := ez.ParamID(c, "title_id")
			if err != nil {
				return titleOut{}, err
			}
			v, err := repo.NewTitleRepo(db).Get(c.Request.Context(), id)
			if err != nil {
				return titleOut{}, err
			}
			return toTitle(*v), nil
		},
	})

	ez.RegisterAction(e, ez.Action[titlePatchIn, titleOut]{
		Method: http.MethodPatch, Path: "/:title_id/", Binder: ez.BindJSON,
		Kind: policy.KindTitle, Verb: policy.Update, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *titlePatchIn) (titleOut, error) {
			ctx := c.Request.Context()
			id, err := ez.ParamID(c, "title_id")
			if err != nil {
				return titleOut{}, err
			}
			titles := repo.NewTitleRepo(tx)
			cur, err := titles.Get(ctx, id)
			if err != nil {
				return titleOut{}, err
			}

			t := cur.Title
			var fields []string
			if in.Name != nil {
				t.Name = strings.TrimSpace(*in.Name)
				fields = append(fields, "name")
			}
			if in.Year != nil {
				t.Year = *in.Year
				fields = append(fields, "year")
			}
			if in.Description != nil {
				t.Description = *in.Description
				fields = append(fields, "description")
			}
			if in.Category != nil {
				if t.CategorySlug, err = resolveCategory(ctx, tx, *in.Category); err != nil {
					return titleOut{}, err
				}
				fields = append(fields, "category_slug")
			}
			var genreIDs []uint
			if in.Genre != nil {
				if genreIDs, err = resolveGenres(ctx, tx, *in.Genre); err != nil {
					return titleOut{}, err
				}
				if genreIDs == nil {
					genreIDs = []uint{}
				}
			}
			if err := titles.Update(ctx, &t, fields, genreIDs); err != nil {
				return titleOut{}, err
			}
			v, err := titles.Get(ctx, id)
			if err != nil {
				return titleOut{}, err
			}
			return toTitle(*v), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, none]{
		Method: http.MethodDelete, Path: "/:title_id/", Binder: ez.BindNone,
		Kind: policy.KindTitle, Verb: policy.Delete, Status: http.StatusNoContent,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (none, error) {
			id, err := ez.ParamID(c, "title_id")
			if err != nil {
				return none{}, err
			}
			return none{}, repo.NewTitleRepo(db).Delete(c.Request.Context(), id)
		},
	})
}

// resolveGenres slug → id；未知 slug 报字段错误。返回 nil 表示没有体裁
func resolveGenres(ctx context.Context, db *gorm.DB, slugs []string) ([]uint, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	uniq := map[string]struct{}{}
	for _, s := range slugs {
		uniq[strings.TrimSpace(s)] = struct{}{}
	}
	want := make([]string, 0, len(uniq))
	for s := range uniq {
		want = append(want, s)
	}
	sort.Strings(want)

	found, err := repo.NewTaxonomyRepo[domain.Genre](db).FindBySlugs(ctx, want)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]uint, len(found))
	for _, g := range found {
		bySlug[g.Slug] = g.ID
	}
	ids := make([]uint, 0, len(want))
	for _, s := range want {
		id, ok := bySlug[s]
		if !ok {
			return nil, ez.FieldError("genre", fmt.Sprintf("unknown genre slug %q", s))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveCategory 空串返回 nil（无分类）
func resolveCategory(ctx context.Context, db *gorm.DB, slug string) (*string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	found, err := repo.NewTaxonomyRepo[domain.Category](db).FindBySlugs(ctx, []string{slug})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ez.FieldError("category", fmt.Sprintf("unknown category slug %q", slug))
	}
	return &slug, nil
}
