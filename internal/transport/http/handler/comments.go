package handler

import (
	"net/http"
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

// CommentModule /titles/:title_id/reviews/:review_id/comments/
type CommentModule struct{ *Deps }

func (CommentModule) Priority() int { return 60 }

type commentOut struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	PubDate time.Time `json:"pub_date"`
}

func toComment(cm domain.Comment) commentOut {
	return commentOut{ID: cm.ID, Text: cm.Text, Author: authorName(cm.Author), PubDate: cm.CreatedAt}
}

type commentIn struct {
	Text string `json:"text"`
}

func (in commentIn) Validate() error {
	return validation.ValidateStruct(&in, validation.Field(&in.Text, validation.Required))
}

type commentPatchIn struct {
	Text *string `json:"text"`
}

func (in commentPatchIn) Validate() error {
	return validation.ValidateStruct(&in, validation.Field(&in.Text, validation.NilOrNotEmpty))
}

func commentFromPath(c *gin.Context, db *gorm.DB) (*domain.Comment, error) {
	ctx := c.Request.Context()
	r, err := reviewFromPath(ctx, c, db)
	if err != nil {
		return nil, err
	}
	id, err := ez.ParamID(c, "comment_id")
	if err != nil {
		return nil, err
	}
	return repo.NewCommentRepo(db).Get(ctx, r.ID, id)
}

func (m CommentModule) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[none, resp.Page[commentOut]]{
		Method: http.MethodGet, Path: "/", Binder: ez.BindNone,
		Kind: policy.KindComment, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (resp.Page[commentOut], error) {
			ctx := c.Request.Context()
			r, err := reviewFromPath(ctx, c, db)
			if err != nil {
				return resp.Page[commentOut]{}, err
			}
			p, err := m.page(c)
			if err != nil {
				return resp.Page[commentOut]{}, err
			}
			items, total, err := repo.NewCommentRepo(db).List(ctx, r.ID, p.Offset(), p.Limit())
			if err != nil {
				return resp.Page[commentOut]{}, err
			}
			return paged(c, p, items, total, toComment)
		},
	})

	ez.RegisterAction(e, ez.Action[commentIn, commentOut]{
		Method: http.MethodPost, Path: "/", Binder: ez.BindJSON,
		Kind: policy.KindComment, Verb: policy.Create, Status: http.StatusCreated,
		Handler: func(c *gin.Context, db *gorm.DB, in *commentIn) (commentOut, error) {
			ctx := c.Request.Context()
			r, err := reviewFromPath(ctx, c, db)
			if err != nil {
				return commentOut{}, err
			}
			comments := repo.NewCommentRepo(db)
			cm := &domain.Comment{ReviewID: r.ID, AuthorID: ez.Actor(c).UserID, Text: in.Text}
			if err := comments.Create(ctx, cm); err != nil {
				return commentOut{}, err
			}
			saved, err := comments.Get(ctx, r.ID, cm.ID)
			if err != nil {
				return commentOut{}, err
			}
			return toComment(*saved), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, commentOut]{
		Method: http.MethodGet, Path: "/:comment_id/", Binder: ez.BindNone,
		Kind: policy.KindComment, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (commentOut, error) {
			cm, err := commentFromPath(c, db)
			if err != nil {
				return commentOut{}, err
			}
			return toComment(*cm), nil
		},
	})

	ez.RegisterAction(e, ez.Action[commentPatchIn, commentOut]{
		Method: http.MethodPatch, Path: "/:comment_id/", Binder: ez.BindJSON,
		Kind: policy.KindComment, Verb: policy.Update, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *commentPatchIn) (commentOut, error) {
			cm, err := commentFromPath(c, tx)
			if err != nil {
				return commentOut{}, err
			}
			if err := ez.Authorize(c, policy.Update, policy.Object(policy.KindComment, cm.AuthorID)); err != nil {
				return commentOut{}, err
			}
			if in.Text == nil {
				return toComment(*cm), nil
			}
			cm.Text = *in.Text
			if err := repo.NewCommentRepo(tx).Update(c.Request.Context(), cm, "text"); err != nil {
				return commentOut{}, err
			}
			return toComment(*cm), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, none]{
		Method: http.MethodDelete, Path: "/:comment_id/", Binder: ez.BindNone,
		Kind: policy.KindComment, Verb: policy.Delete, UseTx: true, Status: http.StatusNoContent,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *none) (none, error) {
			cm, err := commentFromPath(c, tx)
			if err != nil {
				return none{}, err
			}
			if err := ez.Authorize(c, policy.Delete, policy.Object(policy.KindComment, cm.AuthorID)); err != nil {
				return none{}, err
			}
			return none{}, repo.NewCommentRepo(tx).Delete(c.Request.Context(), cm.ID)
		},
	})
}
