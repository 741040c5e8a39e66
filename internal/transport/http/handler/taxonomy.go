package handler

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"

	"yamdb-api/internal/domain"
	"yamdb-api/internal/policy"
	"yamdb-api/internal/repo"
	"yamdb-api/internal/transport/http/ez"
	resp "yamdb-api/internal/transport/http/response"
)

var slugRE = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// TaxonomyModule 分类 / 体裁：列表、创建、按 slug 删除；没有更新接口
type TaxonomyModule[T domain.Taxon] struct {
	*Deps
	Kind policy.Kind
	New  func(name, slug string) T
}

func (TaxonomyModule[T]) Priority() int { return 30 }

func Categories(d *Deps) TaxonomyModule[domain.Category] {
	return TaxonomyModule[domain.Category]{Deps: d, Kind: policy.KindCategory,
		New: func(name, slug string) domain.Category { return domain.Category{Name: name, Slug: slug} }}
}

func Genres(d *Deps) TaxonomyModule[domain.Genre] {
	return TaxonomyModule[domain.Genre]{Deps: d, Kind: policy.KindGenre,
		New: func(name, slug string) domain.Genre { return domain.Genre{Name: name, Slug: slug} }}
}

type searchQuery struct {
	Search string `form:"search"`
}

type taxonIn struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (in taxonIn) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 256)),
		validation.Field(&in.Slug, validation.Required, validation.Length(1, 50),
			validation.Match(slugRE).Error("may contain only latin letters, digits, - and _")),
	)
}

func (m TaxonomyModule[T]) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[searchQuery, resp.Page[taxonOut]]{
		Method: http.MethodGet, Path: "/", Binder: ez.BindQuery,
		Kind: m.Kind, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, q *searchQuery) (resp.Page[taxonOut], error) {
			p, err := m.page(c)
			if err != nil {
				return resp.Page[taxonOut]{}, err
			}
			items, total, err := repo.NewTaxonomyRepo[T](db).List(c.Request.Context(), q.Search, p.Offset(), p.Limit())
			if err != nil {
				return resp.Page[taxonOut]{}, err
			}
			return paged(c, p, items, total, toTaxon[T])
		},
	})

	ez.RegisterAction(e, ez.Action[taxonIn, taxonOut]{
		Method: http.MethodPost, Path: "/", Binder: ez.BindJSON,
		Kind: m.Kind, Verb: policy.Create, Status: http.StatusCreated,
		Handler: func(c *gin.Context, db *gorm.DB, in *taxonIn) (taxonOut, error) {
			v := m.New(strings.TrimSpace(in.Name), strings.TrimSpace(in.Slug))
			if err := repo.NewTaxonomyRepo[T](db).Create(c.Request.Context(), &v); err != nil {
				return taxonOut{}, err
			}
			return toTaxon(v), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, none]{
		Method: http.MethodDelete, Path: "/:slug/", Binder: ez.BindNone,
		Kind: m.Kind, Verb: policy.Delete, Status: http.StatusNoContent,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (none, error) {
			return none{}, repo.NewTaxonomyRepo[T](db).DeleteBySlug(c.Request.Context(), c.Param("slug"))
		},
	})
}
