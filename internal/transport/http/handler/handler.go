// Package handler 资源控制器：每个模块自己把动作挂到 ez 分组上
package handler

import (
	"github.com/gin-gonic/gin"

	"yamdb-api/internal/domain"
	"yamdb-api/internal/service"
	"yamdb-api/internal/transport/http/ez"
	resp "yamdb-api/internal/transport/http/response"
)

type Paging struct {
	Default int
	Max     int
}

// Deps 各模块共享的依赖
type Deps struct {
	Auth   *service.AuthService
	Users  *service.UserService
	Paging Paging
}

func (d *Deps) page(c *gin.Context) (resp.PageParams, error) {
	p, ok := resp.ParsePage(c, d.Paging.Default, d.Paging.Max)
	if !ok {
		return p, ez.NotFound("Invalid page.")
	}
	return p, nil
}

// paged 越界页 404，其余转换成统一列表外形
func paged[T any, O any](c *gin.Context, p resp.PageParams, items []T, total int64, conv func(T) O) (resp.Page[O], error) {
	if p.OutOfRange(total) {
		return resp.Page[O]{}, ez.NotFound("Invalid page.")
	}
	out := make([]O, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return resp.NewPage(c, p, total, out), nil
}

type taxonOut struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func toTaxon[T domain.Taxon](v T) taxonOut {
	name, slug := v.Key()
	return taxonOut{Name: name, Slug: slug}
}

func authorName(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
