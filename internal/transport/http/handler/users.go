package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"yamdb-api/internal/domain"
	"yamdb-api/internal/policy"
	"yamdb-api/internal/repo"
	"yamdb-api/internal/service"
	"yamdb-api/internal/transport/http/ez"
	resp "yamdb-api/internal/transport/http/response"
)

// UserModule /users/ 管理 + /users/me/ 自助
type UserModule struct{ *Deps }

func (UserModule) Priority() int { return 20 }

type userOut struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Bio       string      `json:"bio"`
	Role      domain.Role `json:"role"`
}

func toUser(u domain.User) userOut {
	return userOut{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Role:      u.Role,
	}
}

type userListQuery struct {
	Search string `form:"search"`
}

type userCreateIn struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Bio       string      `json:"bio"`
	Role      domain.Role `json:"role"`
}

type userPatchIn struct {
	Username  *string      `json:"username"`
	Email     *string      `json:"email"`
	FirstName *string      `json:"first_name"`
	LastName  *string      `json:"last_name"`
	Bio       *string      `json:"bio"`
	Role      *domain.Role `json:"role"`
}

func (in userPatchIn) patch() service.UserPatch {
	return service.UserPatch{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Bio:       in.Bio,
		Role:      in.Role,
	}
}

type none struct{}

func (m UserModule) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[userListQuery, resp.Page[userOut]]{
		Method: http.MethodGet, Path: "/", Binder: ez.BindQuery,
		Kind: policy.KindUser, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, q *userListQuery) (resp.Page[userOut], error) {
			p, err := m.page(c)
			if err != nil {
				return resp.Page[userOut]{}, err
			}
			items, total, err := repo.NewUserRepo(db).List(c.Request.Context(), q.Search, p.Offset(), p.Limit())
			if err != nil {
				return resp.Page[userOut]{}, err
			}
			return paged(c, p, items, total, toUser)
		},
	})

	ez.RegisterAction(e, ez.Action[userCreateIn, userOut]{
		Method: http.MethodPost, Path: "/", Binder: ez.BindJSON,
		Kind: policy.KindUser, Verb: policy.Create, Status: http.StatusCreated,
		Handler: func(c *gin.Context, db *gorm.DB, in *userCreateIn) (userOut, error) {
			u, err := m.Users.Create(c.Request.Context(), db, service.UserFields(*in))
			if err != nil {
				return userOut{}, err
			}
			return toUser(*u), nil
		},
	})

	// gin 静态段 me 优先于 :username
	ez.RegisterAction(e, ez.Action[none, userOut]{
		Method: http.MethodGet, Path: "/me/", Binder: ez.BindNone,
		Kind: policy.KindMe, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (userOut, error) {
			u, err := repo.NewUserRepo(db).FindByID(c.Request.Context(), ez.Actor(c).UserID)
			if err != nil {
				return userOut{}, err
			}
			return toUser(*u), nil
		},
	})

	ez.RegisterAction(e, ez.Action[userPatchIn, userOut]{
		Method: http.MethodPatch, Path: "/me/", Binder: ez.BindJSON,
		Kind: policy.KindMe, Verb: policy.Update, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *userPatchIn) (userOut, error) {
			ctx := c.Request.Context()
			u, err := repo.NewUserRepo(tx).FindByID(ctx, ez.Actor(c).UserID)
			if err != nil {
				return userOut{}, err
			}
			if err := m.Users.Update(ctx, tx, u, in.patch(), false); err != nil {
				return userOut{}, err
			}
			return toUser(*u), nil
		},
	})

	// 自删被矩阵拒绝，处理器不会执行
	ez.RegisterAction(e, ez.Action[none, none]{
		Method: http.MethodDelete, Path: "/me/", Binder: ez.BindNone,
		Kind: policy.KindMe, Verb: policy.Delete, Status: http.StatusNoContent,
		Handler: func(*gin.Context, *gorm.DB, *none) (none, error) {
			return none{}, ez.Forbidden("")
		},
	})

	ez.RegisterAction(e, ez.Action[none, userOut]{
		Method: http.MethodGet, Path: "/:username/", Binder: ez.BindNone,
		Kind: policy.KindUser, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (userOut, error) {
			u, err := repo.NewUserRepo(db).FindByUsername(c.Request.Context(), c.Param("username"))
			if err != nil {
				return userOut{}, err
			}
			return toUser(*u), nil
		},
	})

	ez.RegisterAction(e, ez.Action[userPatchIn, userOut]{
		Method: http.MethodPatch, Path: "/:username/", Binder: ez.BindJSON,
		Kind: policy.KindUser, Verb: policy.Update, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *userPatchIn) (userOut, error) {
			ctx := c.Request.Context()
			u, err := repo.NewUserRepo(tx).FindByUsername(ctx, c.Param("username"))
			if err != nil {
				return userOut{}, err
			}
			if err := m.Users.Update(ctx, tx, u, in.patch(), true); err != nil {
				return userOut{}, err
			}
			return toUser(*u), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, none]{
		Method: http.MethodDelete, Path: "/:username/", Binder: ez.BindNone,
		Kind: policy.KindUser, Verb: policy.Delete, Status: http.StatusNoContent,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (none, error) {
			return none{}, repo.NewUserRepo(db).DeleteByUsername(c.Request.Context(), c.Param("username"))
		},
	})
}
