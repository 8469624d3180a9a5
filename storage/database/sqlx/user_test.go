package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ischoolgo/core/user"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
	"github.com/trezcool/ischoolgo/tests"
)

func TestUserRepository_CheckEmailUniqueness(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	usr := testutil.CreateUser(t, db, "Admin", "admin@ischool.test", "", user.RoleAdmin)

	assert.Equal(t, user.ErrEmailExists, repo.CheckEmailUniqueness(ctx, usr.Email, nil))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, usr.Email, []string{usr.ID}))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "other@ischool.test", nil))
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	testutil.CreateUser(t, db, "Zainab", "zainab@ischool.test", "", user.RoleTeacher, now.AddDate(0, 0, -10))
	testutil.CreateUser(t, db, "Adam", "adam@ischool.test", "", user.RoleAgent, now.AddDate(0, 0, -5))
	testutil.CreateUser(t, db, "Karim", "karim@ischool.test", "", user.RoleHeadTrainer)

	tests := []struct {
		name   string
		filter *user.QueryFilter
		want   []string
	}{
		{"all, by name", nil, []string{"Adam", "Karim", "Zainab"}},
		{"search", &user.QueryFilter{Search: "ZAIN"}, []string{"Zainab"}},
		{"roles", &user.QueryFilter{Roles: user.TeacherRoles}, []string{"Karim", "Zainab"}},
		{"created range", &user.QueryFilter{CreatedFrom: now.AddDate(0, 0, -7), CreatedTo: now.AddDate(0, 0, -1)}, []string{"Adam"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users, err := repo.QueryUsers(ctx, tc.filter, nil)
			require.NoError(t, err)
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}

func TestUserRepository_GetUpdateDelete(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	usr := testutil.CreateUser(t, db, "Admin", "admin@ischool.test", "", user.RoleAdmin)

	got, err := repo.GetUser(ctx, user.GetFilter{Email: "admin@ischool.test"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	got.Name = "Head Admin"
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "Head Admin", got.Name)

	n, err := repo.DeleteUsersByID(ctx, []string{usr.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	assert.Equal(t, user.ErrNotFound, err)
	_, err = repo.UpdateUser(ctx, got)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUserRepository_RevokedTokens(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.RevokeToken(ctx, "expired", now.Add(-time.Hour)))
	require.NoError(t, repo.RevokeToken(ctx, "live", now.Add(time.Hour)))
	require.NoError(t, repo.RevokeToken(ctx, "live", now.Add(time.Hour)))

	revoked, err := repo.IsTokenRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := repo.PurgeRevokedTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	revoked, err = repo.IsTokenRevoked(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, revoked)
}
