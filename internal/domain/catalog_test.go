package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanRating_NoReviews(t *testing.T) {
	assert.Nil(t, MeanRating(0, 0))
}

func TestMeanRating(t *testing.T) {
	cases := []struct {
		name       string
		sum, count int64
		want       int
	}{
		{"single", 7, 1, 7},
		{"exact mean", 6 + 8, 2, 7},
		{"half rounds to even down", 6 + 7, 2, 6},
		{"half rounds to even up", 7 + 8, 2, 8},
		{"thirds", 7 + 8 + 8, 3, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MeanRating(tc.sum, tc.count)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestRoleRank(t *testing.T) {
	assert.True(t, RoleSuperuser.AtLeast(RoleAdmin))
	assert.True(t, RoleAdmin.AtLeast(RoleModerator))
	assert.False(t, RoleModerator.AtLeast(RoleAdmin))
	assert.False(t, RoleUser.AtLeast(RoleModerator))
	assert.False(t, Role("root").Valid())
	assert.True(t, RoleModerator.Valid())
}

func TestConflictErrorIs(t *testing.T) {
	err := Conflict("username", "already taken")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "username: already taken", err.Error())
}
