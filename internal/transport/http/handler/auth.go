package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"

	"yamdb-api/internal/service"
	"yamdb-api/internal/transport/http/ez"
)

// AuthModule /auth/signup/ + /auth/token/
type AuthModule struct{ *Deps }

func (AuthModule) Priority() int { return 10 }

// 不实现 Validate：完全匹配已有用户时要跳过校验，交给 service
type signupIn struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type signupOut struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenIn struct {
	Username         string `json:"username"`
	ConfirmationCode string `json:"confirmation_code"`
}

func (in tokenIn) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.ConfirmationCode, validation.Required),
	)
}

type tokenOut struct {
	Token string `json:"token"`
}

func (m AuthModule) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[signupIn, signupOut]{
		Method: http.MethodPost,
		Path:   "/signup/",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, db *gorm.DB, in *signupIn) (signupOut, error) {
			u, err := m.Auth.Signup(c.Request.Context(), db, service.SignupInput{Username: in.Username, Email: in.Email})
			if err != nil {
				return signupOut{}, err
			}
			return signupOut{Username: u.Username, Email: u.Email}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[tokenIn, tokenOut]{
		Method: http.MethodPost,
		Path:   "/token/",
		Binder: ez.BindJSON,
		UseTx:  true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *tokenIn) (tokenOut, error) {
			tok, err := m.Auth.IssueToken(c.Request.Context(), tx, in.Username, in.ConfirmationCode)
			if err != nil {
				return tokenOut{}, err
			}
			return tokenOut{Token: tok}, nil
		},
	})
}
