package response

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Detail {"detail": msg}；msg 为空用默认文案
func Detail(status int, msg string) gin.H {
	if msg == "" {
		msg = DetailMsg[status]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return gin.H{"detail": msg}
}

// Abort 中间件里用：写错误体并终止
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Detail(status, msg))
}

// Page 列表统一外形
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// PageParams page 从 1 开始
type PageParams struct {
	Page int
	Size int
}

func (p PageParams) Offset() int { return (p.Page - 1) * p.Size }
func (p PageParams) Limit() int  { return p.Size }

// OutOfRange 第 1 页永远合法（空列表也返回 200）
func (p PageParams) OutOfRange(total int64) bool {
	return p.Page > 1 && int64(p.Offset()) >= total
}

// ParsePage 非法 page 返回 false；page_size 非法时回落默认值
func ParsePage(c *gin.Context, defSize, maxSize int) (PageParams, bool) {
	p := PageParams{Page: 1, Size: defSize}
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, false
		}
		p.Page = n
	}
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.Size = min(n, maxSize)
		}
	}
	return p, true
}

// NewPage 根据请求 URL 生成绝对的 next / previous
func NewPage[T any](c *gin.Context, p PageParams, total int64, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	out := Page[T]{Count: total, Results: items}
	if int64(p.Page*p.Size) < total {
		u := pageURL(c, p.Page+1)
		out.Next = &u
	}
	if p.Page > 1 {
		u := pageURL(c, p.Page-1)
		out.Previous = &u
	}
	return out
}

func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fp := c.GetHeader("X-Forwarded-Proto"); fp != "" {
		scheme = fp
	}
	q := c.Request.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: q.Encode()}
	return u.String()
}
