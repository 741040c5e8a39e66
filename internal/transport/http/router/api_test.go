package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"yamdb-api/internal/core/auth"
	"yamdb-api/internal/core/config"
	"yamdb-api/internal/core/mail"
	"yamdb-api/internal/domain"
	"yamdb-api/internal/service"
	"yamdb-api/internal/testkit"
	"yamdb-api/internal/transport/http/ez"
	"yamdb-api/internal/transport/http/handler"
)

func init() { gin.SetMode(gin.TestMode) }

type app struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	jwt    *auth.JWTer
	outbox *mail.Outbox
}

func newApp(t *testing.T) *app {
	t.Helper()
	db := testkit.OpenDB(t)
	j := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "yamdb", TTL: time.Hour}
	codes, err := auth.NewCodeGenerator([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	out := &mail.Outbox{}
	l := zap.NewNop()

	e := NewAPIEngine(Deps{
		Logger: l,
		DB:     db,
		JWT:    j,
		Auth:   service.NewAuthService(codes, j, out, nil, l),
		Users:  service.NewUserService(),
		HTTP:   config.HTTP{},
		Env:    "test",
		Paging: handler.Paging{Default: 10, Max: 100},
	})
	return &app{t: t, db: db, engine: e, jwt: j, outbox: out}
}

func (a *app) token(u *domain.User) string {
	a.t.Helper()
	tok, err := a.jwt.Issue(u.ID, u.Username, string(u.Role))
	require.NoError(a.t, err)
	return tok
}

// do token 为空时匿名
func (a *app) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (a *app) count(model any) int64 {
	var n int64
	require.NoError(a.t, a.db.Model(model).Count(&n).Error)
	return n
}

func TestSignupTokenFlow(t *testing.T) {
	a := newApp(t)

	w, body := a.do(http.MethodPost, "/v1/auth/signup/", "", gin.H{"username": "alice", "email": "alice@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
	code := a.outbox.Last("alice@example.com")
	require.NotEmpty(t, code)

	w, body = a.do(http.MethodPost, "/v1/auth/token/", "", gin.H{"username": "alice", "confirmation_code": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid", body["confirmation_code"])

	w, _ = a.do(http.MethodPost, "/v1/auth/token/", "", gin.H{"username": "nobody", "confirmation_code": code})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = a.do(http.MethodPost, "/v1/auth/token/", "", gin.H{"username": "alice", "confirmation_code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)

	w, body = a.do(http.MethodGet, "/v1/users/me/", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "user", body["role"])

	w, body = a.do(http.MethodPost, "/v1/auth/signup/", "", gin.H{"username": "alice", "email": "other@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "username")

	w, body = a.do(http.MethodPost, "/v1/auth/signup/", "", gin.H{"username": "me", "email": "me@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "username")

	w, _ = a.do(http.MethodPost, "/v1/auth/token/", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidBearerIs401(t *testing.T) {
	a := newApp(t)
	w, _ := a.do(http.MethodGet, "/v1/titles/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReviewScoreAndUniqueness(t *testing.T) {
	a := newApp(t)
	ti := testkit.Title(t, a.db, "Heat", 1995, "")
	u := testkit.User(t, a.db, "bob", domain.RoleUser)
	path := fmt.Sprintf("/v1/titles/%d/reviews/", ti.ID)

	w, body := a.do(http.MethodPost, path, a.token(u), gin.H{"text": "meh", "score": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "score")

	w, body = a.do(http.MethodPost, path, a.token(u), gin.H{"text": "meh", "score": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "score")
	assert.Zero(t, a.count(&domain.Review{}))

	w, body = a.do(http.MethodPost, path, a.token(u), gin.H{"text": "great", "score": 7})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "bob", body["author"])
	assert.EqualValues(t, 7, body["score"])
	assert.Contains(t, body, "pub_date")

	w, body = a.do(http.MethodPost, path, a.token(u), gin.H{"text": "again", "score": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "detail")
	assert.EqualValues(t, 1, a.count(&domain.Review{}))

	w, _ = a.do(http.MethodPost, "/v1/titles/9999/reviews/", a.token(u), gin.H{"text": "x", "score": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(http.MethodPost, path, "", gin.H{"text": "anon", "score": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRatingNullThenMean(t *testing.T) {
	a := newApp(t)
	ti := testkit.Title(t, a.db, "Heat", 1995, "")
	path := fmt.Sprintf("/v1/titles/%d/", ti.ID)

	w, body := a.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["rating"])
	assert.Contains(t, body, "rating")

	testkit.Review(t, a.db, ti, testkit.User(t, a.db, "u1", domain.RoleUser), 10)
	testkit.Review(t, a.db, ti, testkit.User(t, a.db, "u2", domain.RoleUser), 5)
	testkit.Review(t, a.db, ti, testkit.User(t, a.db, "u3", domain.RoleUser), 6)

	_, body = a.do(http.MethodGet, path, "", nil)
	assert.EqualValues(t, 7, body["rating"])
}

func TestCommentModeration(t *testing.T) {
	a := newApp(t)
	ti := testkit.Title(t, a.db, "Heat", 1995, "")
	author := testkit.User(t, a.db, "author", domain.RoleUser)
	stranger := testkit.User(t, a.db, "stranger", domain.RoleUser)
	mod := testkit.User(t, a.db, "mod", domain.RoleModerator)
	rv := testkit.Review(t, a.db, ti, author, 8)
	cm := testkit.Comment(t, a.db, rv, author)
	path := fmt.Sprintf("/v1/titles/%d/reviews/%d/comments/%d/", ti.ID, rv.ID, cm.ID)

	w, _ := a.do(http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = a.do(http.MethodDelete, path, a.token(stranger), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodPatch, path, a.token(stranger), gin.H{"text": "hijack"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := a.do(http.MethodPatch, path, a.token(author), gin.H{"text": "edited"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "edited", body["text"])

	w, _ = a.do(http.MethodDelete, path, a.token(mod), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, a.count(&domain.Comment{}))
}

func TestNestedPathMustMatch(t *testing.T) {
	a := newApp(t)
	t1 := testkit.Title(t, a.db, "Heat", 1995, "")
	t2 := testkit.Title(t, a.db, "Ronin", 1998, "")
	u := testkit.User(t, a.db, "u", domain.RoleUser)
	rv := testkit.Review(t, a.db, t1, u, 8)
	testkit.Comment(t, a.db, rv, u)

	w, _ := a.do(http.MethodGet, fmt.Sprintf("/v1/titles/%d/reviews/%d/comments/", t2.ID, rv.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := a.do(http.MethodGet, fmt.Sprintf("/v1/titles/%d/reviews/%d/comments/", t1.ID, rv.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/titles/%d/reviews/%d/comments/", t2.ID, rv.ID), a.token(u), gin.H{"text": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTitleAdminLifecycle(t *testing.T) {
	a := newApp(t)
	admin := testkit.User(t, a.db, "root", domain.RoleAdmin)
	user := testkit.User(t, a.db, "joe", domain.RoleUser)
	testkit.Category(t, a.db, "Films", "films")
	testkit.Genre(t, a.db, "Drama", "drama")
	testkit.Genre(t, a.db, "Crime", "crime")

	in := gin.H{"name": "Heat", "year": 1995, "genre": []string{"drama", "crime"}, "category": "films"}

	w, _ := a.do(http.MethodPost, "/v1/titles/", "", in)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = a.do(http.MethodPost, "/v1/titles/", a.token(user), in)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, a.count(&domain.Title{}))

	w, body := a.do(http.MethodPost, "/v1/titles/", a.token(admin), gin.H{"name": "Heat", "year": 1995, "genre": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "genre")

	w, body = a.do(http.MethodPost, "/v1/titles/", a.token(admin), gin.H{"name": "Future", "year": time.Now().Year() + 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "year")

	for _, y := range []int{0, -5} {
		w, body = a.do(http.MethodPost, "/v1/titles/", a.token(admin), gin.H{"name": "Ancient", "year": y})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body, "year")
	}
	assert.Zero(t, a.count(&domain.Title{}))

	w, body = a.do(http.MethodPost, "/v1/titles/", a.token(admin), in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := uint(body["id"].(float64))
	assert.Len(t, body["genre"], 2)
	assert.Equal(t, "films", body["category"].(map[string]any)["slug"])
	assert.Nil(t, body["rating"])

	path := fmt.Sprintf("/v1/titles/%d/", id)
	w, body = a.do(http.MethodPatch, path, a.token(admin), gin.H{"description": "LA crime saga", "genre": []string{"crime"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "LA crime saga", body["description"])
	assert.Len(t, body["genre"], 1)
	assert.Equal(t, "Heat", body["name"])

	// 删除分类只清空引用
	w, _ = a.do(http.MethodDelete, "/v1/categories/films/", a.token(admin), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, body = a.do(http.MethodGet, path, "", nil)
	assert.Nil(t, body["category"])

	w, _ = a.do(http.MethodDelete, path, a.token(admin), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = a.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTitleFilters(t *testing.T) {
	a := newApp(t)
	testkit.Category(t, a.db, "Films", "films")
	drama := testkit.Genre(t, a.db, "Drama", "drama")
	testkit.Title(t, a.db, "The Godfather", 1972, "films", drama)
	testkit.Title(t, a.db, "Godfather Book", 1969, "")
	testkit.Title(t, a.db, "Airplane!", 1980, "films")

	_, body := a.do(http.MethodGet, "/v1/titles/?name=godfather", "", nil)
	assert.EqualValues(t, 2, body["count"])

	_, body = a.do(http.MethodGet, "/v1/titles/?name=godfather&genre=drama&category=films&year=1972", "", nil)
	assert.EqualValues(t, 1, body["count"])

	w, body := a.do(http.MethodGet, "/v1/titles/?year=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "year")
}

func TestTaxonomyPagingSearchAnd405(t *testing.T) {
	a := newApp(t)
	admin := testkit.User(t, a.db, "root", domain.RoleSuperuser)
	for _, s := range []string{"drama", "documentary", "comedy"} {
		w, _ := a.do(http.MethodPost, "/v1/genres/", a.token(admin), gin.H{"name": "G " + s, "slug": s})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := a.do(http.MethodPost, "/v1/genres/", a.token(admin), gin.H{"name": "Other", "slug": "drama"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "slug")

	w, body = a.do(http.MethodPost, "/v1/genres/", a.token(admin), gin.H{"name": "Bad", "slug": "no spaces"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "slug")

	w, body = a.do(http.MethodGet, "/v1/genres/?page_size=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["count"])
	assert.Len(t, body["results"], 2)
	assert.NotNil(t, body["next"])
	assert.Nil(t, body["previous"])

	w, _ = a.do(http.MethodGet, "/v1/genres/?page=5", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, body = a.do(http.MethodGet, "/v1/genres/?search=do", "", nil)
	assert.EqualValues(t, 1, body["count"])

	w, _ = a.do(http.MethodPatch, "/v1/genres/drama/", a.token(admin), gin.H{"name": "x"})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w, _ = a.do(http.MethodDelete, "/v1/genres/missing/", a.token(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsersAdminAndMe(t *testing.T) {
	a := newApp(t)
	admin := testkit.User(t, a.db, "root", domain.RoleAdmin)
	joe := testkit.User(t, a.db, "joe", domain.RoleUser)

	w, _ := a.do(http.MethodGet, "/v1/users/", a.token(joe), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = a.do(http.MethodGet, "/v1/users/me/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := a.do(http.MethodPatch, "/v1/users/me/", a.token(joe), gin.H{"role": "admin", "bio": "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "hello", body["bio"])

	w, _ = a.do(http.MethodDelete, "/v1/users/me/", a.token(joe), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = a.do(http.MethodPost, "/v1/users/", a.token(admin), gin.H{"username": "kate", "email": "kate@example.com", "role": "moderator"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "moderator", body["role"])

	w, body = a.do(http.MethodPost, "/v1/users/", a.token(admin), gin.H{"username": "kate2", "email": "kate@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "email")

	w, body = a.do(http.MethodPatch, "/v1/users/joe/", a.token(admin), gin.H{"role": "moderator"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "moderator", body["role"])

	_, body = a.do(http.MethodGet, "/v1/users/?search=ka", a.token(admin), nil)
	assert.EqualValues(t, 1, body["count"])

	w, _ = a.do(http.MethodDelete, "/v1/users/kate/", a.token(admin), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = a.do(http.MethodGet, "/v1/users/kate/", a.token(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)
	w, body := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "yamdb_http_requests_total")
}

func TestRegistryPriority(t *testing.T) {
	var reg Registry
	reg.Register("/b", handler.TitleModule{})
	reg.Register("/a", handler.AuthModule{})
	r := gin.New()
	order := reg.MountAll(ez.New(r.Group("/v1"), nil, zap.NewNop()))
	assert.Equal(t, []string{"/a", "/b"}, order)
}
