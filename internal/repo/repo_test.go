package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"yamdb-api/internal/domain"
	"yamdb-api/internal/repo"
	"yamdb-api/internal/testkit"
)

func TestTitleListFiltersAndRating(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()

	testkit.Category(t, db, "Films", "films")
	testkit.Category(t, db, "Books", "books")
	drama := testkit.Genre(t, db, "Drama", "drama")
	comedy := testkit.Genre(t, db, "Comedy", "comedy")

	godfather := testkit.Title(t, db, "The Godfather", 1972, "films", drama)
	testkit.Title(t, db, "Godfather Memoir", 1999, "books", drama)
	testkit.Title(t, db, "Airplane!", 1980, "films", comedy)

	u1 := testkit.User(t, db, "alice", domain.RoleUser)
	u2 := testkit.User(t, db, "bob", domain.RoleUser)
	testkit.Review(t, db, godfather, u1, 9)
	testkit.Review(t, db, godfather, u2, 6)

	titles := repo.NewTitleRepo(db)

	all, total, err := titles.List(ctx, repo.TitleFilter{}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "Airplane!", all[0].Name)
	assert.Nil(t, all[0].Rating)

	got, total, err := titles.List(ctx, repo.TitleFilter{Name: "godFATHER"}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, got, 2)

	got, _, err = titles.List(ctx, repo.TitleFilter{Name: "godfather", Category: "films", Genre: "drama"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, godfather.ID, got[0].ID)
	require.NotNil(t, got[0].Rating)
	// (9+6)/2 = 7.5 → 8
	assert.Equal(t, 8, *got[0].Rating)
	require.NotNil(t, got[0].Category)
	assert.Equal(t, "films", got[0].Category.Slug)
	require.Len(t, got[0].Genres, 1)
	assert.Equal(t, "drama", got[0].Genres[0].Slug)

	year := 1980
	got, _, err = titles.List(ctx, repo.TitleFilter{Year: &year}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Airplane!", got[0].Name)

	got, _, err = titles.List(ctx, repo.TitleFilter{Name: "%"}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTitleDeleteCascades(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()

	g := testkit.Genre(t, db, "Drama", "drama")
	ti := testkit.Title(t, db, "Heat", 1995, "", g)
	u := testkit.User(t, db, "alice", domain.RoleUser)
	rv := testkit.Review(t, db, ti, u, 8)
	testkit.Comment(t, db, rv, u)

	require.NoError(t, repo.NewTitleRepo(db).Delete(ctx, ti.ID))

	var n int64
	db.Model(&domain.Review{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&domain.Comment{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&domain.TitleGenre{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&domain.Genre{}).Count(&n)
	assert.EqualValues(t, 1, n)

	assert.ErrorIs(t, repo.NewTitleRepo(db).Delete(ctx, ti.ID), domain.ErrNotFound)
}

func TestTaxonomyDeleteKeepsTitles(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()

	testkit.Category(t, db, "Films", "films")
	g := testkit.Genre(t, db, "Drama", "drama")
	ti := testkit.Title(t, db, "Heat", 1995, "films", g)

	require.NoError(t, repo.NewTaxonomyRepo[domain.Category](db).DeleteBySlug(ctx, "films"))
	require.NoError(t, repo.NewTaxonomyRepo[domain.Genre](db).DeleteBySlug(ctx, "drama"))

	view, err := repo.NewTitleRepo(db).Get(ctx, ti.ID)
	require.NoError(t, err)
	assert.Nil(t, view.CategorySlug)
	assert.Nil(t, view.Category)
	assert.Empty(t, view.Genres)

	var link domain.TitleGenre
	require.NoError(t, db.First(&link, "title_id = ?", ti.ID).Error)
	assert.Nil(t, link.GenreID)

	err = repo.NewTaxonomyRepo[domain.Genre](db).DeleteBySlug(ctx, "drama")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaxonomySearchAndConflict(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()
	genres := repo.NewTaxonomyRepo[domain.Genre](db)

	require.NoError(t, genres.Create(ctx, &domain.Genre{Name: "Drama", Slug: "drama"}))
	require.NoError(t, genres.Create(ctx, &domain.Genre{Name: "Documentary", Slug: "doc"}))
	require.NoError(t, genres.Create(ctx, &domain.Genre{Name: "Comedy", Slug: "comedy"}))

	items, total, err := genres.List(ctx, "D", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	items, _, err = genres.List(ctx, "rama", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = genres.Create(ctx, &domain.Genre{Name: "Other", Slug: "drama"})
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "slug", ce.Field)

	err = genres.Create(ctx, &domain.Genre{Name: "Drama", Slug: "drama-2"})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "name", ce.Field)
}

func TestReviewUniquePerAuthor(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()

	ti := testkit.Title(t, db, "Heat", 1995, "")
	u := testkit.User(t, db, "alice", domain.RoleUser)
	reviews := repo.NewReviewRepo(db)

	require.NoError(t, reviews.Create(ctx, &domain.Review{TitleID: ti.ID, AuthorID: u.ID, Text: "great", Score: 9}))
	err := reviews.Create(ctx, &domain.Review{TitleID: ti.ID, AuthorID: u.ID, Text: "again", Score: 3})
	assert.ErrorIs(t, err, domain.ErrConflict)

	items, total, err := reviews.List(ctx, ti.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Author)
	assert.Equal(t, "alice", items[0].Author.Username)
}

func TestReviewScoreCheckConstraint(t *testing.T) {
	db := testkit.OpenDB(t)
	ti := testkit.Title(t, db, "Heat", 1995, "")
	u := testkit.User(t, db, "alice", domain.RoleUser)

	err := repo.NewReviewRepo(db).Create(context.Background(),
		&domain.Review{TitleID: ti.ID, AuthorID: u.ID, Text: "x", Score: 11})
	assert.Error(t, err)
}

func TestReviewAndCommentScopedToParent(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()

	t1 := testkit.Title(t, db, "Heat", 1995, "")
	t2 := testkit.Title(t, db, "Ronin", 1998, "")
	u := testkit.User(t, db, "alice", domain.RoleUser)
	rv := testkit.Review(t, db, t1, u, 7)
	other := testkit.Review(t, db, t2, u, 5)
	c := testkit.Comment(t, db, rv, u)

	_, err := repo.NewReviewRepo(db).Get(ctx, t2.ID, rv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.NewCommentRepo(db).Get(ctx, other.ID, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := repo.NewCommentRepo(db).Get(ctx, rv.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Author.Username)
}

func TestUserDeleteCascadesContent(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()

	ti := testkit.Title(t, db, "Heat", 1995, "")
	alice := testkit.User(t, db, "alice", domain.RoleUser)
	bob := testkit.User(t, db, "bob", domain.RoleUser)
	rv := testkit.Review(t, db, ti, bob, 7)
	testkit.Comment(t, db, rv, alice)
	testkit.Review(t, db, ti, alice, 3)

	require.NoError(t, repo.NewUserRepo(db).DeleteByUsername(ctx, "alice"))

	var n int64
	db.Model(&domain.Comment{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&domain.Review{}).Count(&n)
	assert.EqualValues(t, 1, n)

	assert.ErrorIs(t, repo.NewUserRepo(db).DeleteByUsername(ctx, "alice"), domain.ErrNotFound)
}

func TestUserCreateConflictNamesField(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()
	users := repo.NewUserRepo(db)
	testkit.User(t, db, "alice", domain.RoleUser)

	var ce *domain.ConflictError
	err := users.Create(ctx, &domain.User{Username: "alice", Email: "other@example.com"})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "username", ce.Field)

	err = users.Create(ctx, &domain.User{Username: "alice2", Email: "alice@example.com"})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "email", ce.Field)

	u, err := users.FindByPair(ctx, "alice", "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	list, total, err := users.List(ctx, "LIC", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestUserUpdateConflictInsideTransaction(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()
	testkit.User(t, db, "alice", domain.RoleUser)
	bob := testkit.User(t, db, "bob", domain.RoleUser)

	err := db.Transaction(func(tx *gorm.DB) error {
		users := repo.NewUserRepo(tx)
		bob.Username = "alice"
		err := users.Update(ctx, bob, "username")
		var ce *domain.ConflictError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "username", ce.Field)

		// 冲突后事务仍可用
		bob.Username = "bobby"
		return users.Update(ctx, bob, "username")
	})
	require.NoError(t, err)

	u, err := repo.NewUserRepo(db).FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bobby", u.Username)
}

func TestTaxonomyConflictInsideTransaction(t *testing.T) {
	db := testkit.OpenDB(t)
	ctx := context.Background()
	testkit.Genre(t, db, "Drama", "drama")

	err := db.Transaction(func(tx *gorm.DB) error {
		genres := repo.NewTaxonomyRepo[domain.Genre](tx)
		err := genres.Create(ctx, &domain.Genre{Name: "Drama", Slug: "drama-2"})
		var ce *domain.ConflictError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "name", ce.Field)
		return genres.Create(ctx, &domain.Genre{Name: "Crime", Slug: "crime"})
	})
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&domain.Genre{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}
