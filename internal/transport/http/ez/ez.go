// Package ez 一行注册一个动作：绑定 → 集合级鉴权 → 校验 → (事务) 执行 → 错误映射
package ez

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"yamdb-api/internal/policy"
	mdw "yamdb-api/internal/transport/http/middleware"
)

type Binder string

const (
	BindJSON  Binder = "json"  // JSON body
	BindQuery Binder = "query" // ?a=b
	BindNone  Binder = "none"  // 自己从 c.Param 取
)

type EZ struct {
	g  *gin.RouterGroup
	db *gorm.DB
	l  *zap.Logger
}

func New(g *gin.RouterGroup, db *gorm.DB, l *zap.Logger) EZ { return EZ{g: g, db: db, l: l} }

// Group 子路由，共享 db / logger
func (e EZ) Group(path string, hs ...gin.HandlerFunc) EZ {
	return EZ{g: e.g.Group(path, hs...), db: e.db, l: e.l}
}

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // GET | POST | PATCH | PUT | DELETE
	Path    string
	Binder  Binder
	Kind    policy.Kind // 非空时先做集合级鉴权
	Verb    policy.Verb
	UseTx   bool // 包 gorm 事务
	Status  int  // 成功状态码，默认 200；204 不写 body
	Handler func(c *gin.Context, tx *gorm.DB, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		// 1) 集合级鉴权，先于绑定和校验
		if a.Kind != "" {
			if err := Authorize(c, a.Verb, policy.Collection(a.Kind)); err != nil {
				WriteError(c, e.l, err)
				return
			}
		}

		// 2) 绑定 + 校验
		var in I
		if err := bind(c, a.Binder, &in); err != nil {
			WriteError(c, e.l, err)
			return
		}
		if v, ok := any(&in).(validation.Validatable); ok {
			if err := v.Validate(); err != nil {
				WriteError(c, e.l, err)
				return
			}
		}

		// 3) 执行（可选事务）
		var out O
		var err error
		db := e.db.WithContext(c.Request.Context())
		if a.UseTx {
			err = db.Transaction(func(tx *gorm.DB) error {
				o, herr := a.Handler(c, tx, &in)
				out = o
				return herr
			})
		} else {
			out, err = a.Handler(c, db, &in)
		}

		// 4) 输出
		if err != nil {
			WriteError(c, e.l, err)
			return
		}
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, out)
	}

	e.g.Handle(strings.ToUpper(a.Method), a.Path, h)
}

func bind(c *gin.Context, b Binder, in any) error {
	var err error
	switch b {
	case BindJSON:
		err = c.ShouldBindJSON(in)
		// 空 body（PATCH 不改任何字段）视为空对象
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case BindQuery:
		err = c.ShouldBindQuery(in)
	}
	if err != nil {
		return bindError(err)
	}
	return nil
}

// Actor 当前请求方
func Actor(c *gin.Context) policy.Actor { return mdw.ActorFrom(c) }

// Authorize 对象级鉴权；拒绝时匿名 401，已登录 403
func Authorize(c *gin.Context, v policy.Verb, r policy.Resource) error {
	a := mdw.ActorFrom(c)
	if policy.Authorize(a, v, r) == policy.Allow {
		return nil
	}
	if !a.Authenticated {
		return Unauthorized("")
	}
	return Forbidden("")
}

// ParamID 路径中的数字 id；非法一律 404
func ParamID(c *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, NotFound("")
	}
	return uint(n), nil
}
