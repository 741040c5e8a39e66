package handler

import (
	"context"
	"fmt"
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

// ReviewModule /titles/:title_id/reviews/
type ReviewModule struct{ *Deps }

func (ReviewModule) Priority() int { return 50 }

type reviewOut struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	Score   int       `json:"score"`
	PubDate time.Time `json:"pub_date"`
}

func toReview(r domain.Review) reviewOut {
	return reviewOut{ID: r.ID, Text: r.Text, Author: authorName(r.Author), Score: r.Score, PubDate: r.CreatedAt}
}

// scoreRange Min/Max 会跳过零值，这里 0 也要拦下
var scoreRange = validation.By(func(v any) error {
	iv, _ := validation.Indirect(v)
	n, ok := iv.(int)
	if !ok {
		return nil
	}
	if n < domain.MinScore || n > domain.MaxScore {
		return validation.NewError("validation_score_range",
			fmt.Sprintf("score must be between %d and %d", domain.MinScore, domain.MaxScore))
	}
	return nil
})

type reviewIn struct {
	Text  string `json:"text"`
	Score *int   `json:"score"`
}

func (in reviewIn) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Text, validation.Required),
		validation.Field(&in.Score, validation.NotNil, scoreRange),
	)
}

type reviewPatchIn struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

func (in reviewPatchIn) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Text, validation.NilOrNotEmpty),
		validation.Field(&in.Score, scoreRange),
	)
}

// titleFromPath 作品不存在 → 404
func titleFromPath(ctx context.Context, c *gin.Context, db *gorm.DB) (uint, error) {
	id, err := ez.ParamID(c, "title_id")
	if err != nil {
		return 0, err
	}
	ok, err := repo.NewTitleRepo(db).Exists(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

// reviewFromPath 评论必须属于路径中的作品
func reviewFromPath(ctx context.Context, c *gin.Context, db *gorm.DB) (*domain.Review, error) {
	titleID, err := ez.ParamID(c, "title_id")
	if err != nil {
		return nil, err
	}
	reviewID, err := ez.ParamID(c, "review_id")
	if err != nil {
		return nil, err
	}
	return repo.NewReviewRepo(db).Get(ctx, titleID, reviewID)
}

func (m ReviewModule) Mount(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[none, resp.Page[reviewOut]]{
		Method: http.MethodGet, Path: "/", Binder: ez.BindNone,
		Kind: policy.KindReview, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (resp.Page[reviewOut], error) {
			ctx := c.Request.Context()
			titleID, err := titleFromPath(ctx, c, db)
			if err != nil {
				return resp.Page[reviewOut]{}, err
			}
			p, err := m.page(c)
			if err != nil {
				return resp.Page[reviewOut]{}, err
			}
			items, total, err := repo.NewReviewRepo(db).List(ctx, titleID, p.Offset(), p.Limit())
			if err != nil {
				return resp.Page[reviewOut]{}, err
			}
			return paged(c, p, items, total, toReview)
		},
	})

	ez.RegisterAction(e, ez.Action[reviewIn, reviewOut]{
		Method: http.MethodPost, Path: "/", Binder: ez.BindJSON,
		Kind: policy.KindReview, Verb: policy.Create, Status: http.StatusCreated,
		Handler: func(c *gin.Context, db *gorm.DB, in *reviewIn) (reviewOut, error) {
			ctx := c.Request.Context()
			titleID, err := titleFromPath(ctx, c, db)
			if err != nil {
				return reviewOut{}, err
			}
			reviews := repo.NewReviewRepo(db)
			r := &domain.Review{TitleID: titleID, AuthorID: ez.Actor(c).UserID, Text: in.Text, Score: *in.Score}
			if err := reviews.Create(ctx, r); err != nil {
				return reviewOut{}, err
			}
			saved, err := reviews.Get(ctx, titleID, r.ID)
			if err != nil {
				return reviewOut{}, err
			}
			return toReview(*saved), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, reviewOut]{
		Method: http.MethodGet, Path: "/:review_id/", Binder: ez.BindNone,
		Kind: policy.KindReview, Verb: policy.Read,
		Handler: func(c *gin.Context, db *gorm.DB, _ *none) (reviewOut, error) {
			r, err := reviewFromPath(c.Request.Context(), c, db)
			if err != nil {
				return reviewOut{}, err
			}
			return toReview(*r), nil
		},
	})

	ez.RegisterAction(e, ez.Action[reviewPatchIn, reviewOut]{
		Method: http.MethodPatch, Path: "/:review_id/", Binder: ez.BindJSON,
		Kind: policy.KindReview, Verb: policy.Update, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *reviewPatchIn) (reviewOut, error) {
			ctx := c.Request.Context()
			r, err := reviewFromPath(ctx, c, tx)
			if err != nil {
				return reviewOut{}, err
			}
			if err := ez.Authorize(c, policy.Update, policy.Object(policy.KindReview, r.AuthorID)); err != nil {
				return reviewOut{}, err
			}
			var fields []string
			if in.Text != nil {
				r.Text = *in.Text
				fields = append(fields, "text")
			}
			if in.Score != nil {
				r.Score = *in.Score
				fields = append(fields, "score")
			}
			if err := repo.NewReviewRepo(tx).Update(ctx, r, fields...); err != nil {
				return reviewOut{}, err
			}
			return toReview(*r), nil
		},
	})

	ez.RegisterAction(e, ez.Action[none, none]{
		Method: http.MethodDelete, Path: "/:review_id/", Binder: ez.BindNone,
		Kind: policy.KindReview, Verb: policy.Delete, UseTx: true, Status: http.StatusNoContent,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *none) (none, error) {
			ctx := c.Request.Context()
			r, err := reviewFromPath(ctx, c, tx)
			if err != nil {
				return none{}, err
			}
			if err := ez.Authorize(c, policy.Delete, policy.Object(policy.KindReview, r.AuthorID)); err != nil {
				return none{}, err
			}
			return none{}, repo.NewReviewRepo(tx).Delete(ctx, r.ID)
		},
	})
}
