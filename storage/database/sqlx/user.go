package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
)

var (
	userColumns = []string{
		"id", "email", "name", "role", "status", "phone", "address", "avatar", "hire_date", "salary",
		"password_hash", "last_login", "created_at", "updated_at",
	}
	userOrdering = map[string]string{
		"name":       "name",
		"email":      "email",
		"role":       "role",
		"status":     "status",
		"last_login": "last_login",
		"created_at": "created_at",
	}
)

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DBExecutor) *userRepository {
	return &userRepository{repository: newRepository(db)}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error {
	query := repo.builder.Select("COUNT(*)").From("users").Where(sq.Eq{"email": email})
	if len(excludedIDs) > 0 {
		query = query.Where(sq.NotEq{"id": excludedIDs})
	}
	var n int
	if err := repo.get(ctx, repo.getExec(exec), &n, query); err != nil {
		return core.NewStoreError(err, "checking email uniqueness")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = newID()
	}
	query := repo.builder.Insert("users").Columns(userColumns...).Values(
		usr.ID, usr.Email, usr.Name, usr.Role, usr.Status, usr.Phone, usr.Address, usr.Avatar, usr.HireDate,
		usr.Salary, usr.PasswordHash, usr.LastLogin, usr.CreatedAt, usr.UpdatedAt,
	)
	if _, err := repo.run(ctx, repo.getExec(exec), query); err != nil {
		return user.User{}, core.NewStoreError(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	query := repo.builder.Select(userColumns...).From("users")
	if filter != nil {
		if filter.Search != "" {
			query = query.Where(likeAny(filter.Search, "name", "email"))
		}
		if len(filter.Roles) > 0 {
			query = query.Where(sq.Eq{"role": filter.Roles})
		}
		if filter.Status != "" {
			query = query.Where(sq.Eq{"status": filter.Status})
		}
		if !filter.CreatedFrom.IsZero() {
			query = query.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			query = query.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	query = query.OrderBy(orderBy(ordering, userOrdering, "name ASC")...)

	users := make([]user.User, 0)
	if err := repo.sel(ctx, repo.getExec(exec), &users, query); err != nil {
		return nil, core.NewStoreError(err, "querying users")
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	query := repo.builder.Select(userColumns...).From("users")
	switch {
	case filter.ID != "":
		query = query.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		query = query.Where(sq.Eq{"email": filter.Email})
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := repo.get(ctx, repo.getExec(exec), &usr, query); err != nil {
		if err = trapNoRowsErr(err, user.ErrNotFound); err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, core.NewStoreError(err, "getting user")
	}
	return usr, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	query := repo.builder.Update("users").SetMap(map[string]interface{}{
		"email":         usr.Email,
		"name":          usr.Name,
		"role":          usr.Role,
		"status":        usr.Status,
		"phone":         usr.Phone,
		"address":       usr.Address,
		"avatar":        usr.Avatar,
		"hire_date":     usr.HireDate,
		"salary":        usr.Salary,
		"password_hash": usr.PasswordHash,
		"last_login":    usr.LastLogin,
		"updated_at":    usr.UpdatedAt,
	}).Where(sq.Eq{"id": usr.ID})

	res, err := repo.run(ctx, repo.getExec(exec), query)
	if err != nil {
		return user.User{}, core.NewStoreError(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.run(ctx, repo.getExec(exec), repo.builder.Delete("users").Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, core.NewStoreError(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.NewStoreError(err, "deleting users")
	}
	return int(n), nil
}

func (repo *userRepository) RevokeToken(ctx context.Context, tokenHash string, expiresAt time.Time, exec ...core.DBExecutor) error {
	query := repo.builder.Insert("revoked_tokens").
		Columns("token_hash", "expires_at", "revoked_at").
		Values(tokenHash, expiresAt.UTC(), time.Now().UTC()).
		Suffix("ON CONFLICT (token_hash) DO NOTHING")
	if _, err := repo.run(ctx, repo.getExec(exec), query); err != nil {
		return core.NewStoreError(err, "revoking token")
	}
	return nil
}

func (repo *userRepository) IsTokenRevoked(ctx context.Context, tokenHash string, exec ...core.DBExecutor) (bool, error) {
	var n int
	query := repo.builder.Select("COUNT(*)").From("revoked_tokens").Where(sq.Eq{"token_hash": tokenHash})
	if err := repo.get(ctx, repo.getExec(exec), &n, query); err != nil {
		return false, core.NewStoreError(err, "checking revoked token")
	}
	return n > 0, nil
}

func (repo *userRepository) PurgeRevokedTokens(ctx context.Context, before time.Time, exec ...core.DBExecutor) (int, error) {
	res, err := repo.run(ctx, repo.getExec(exec), repo.builder.Delete("revoked_tokens").Where(sq.Lt{"expires_at": before.UTC()}))
	if err != nil {
		return 0, core.NewStoreError(err, "purging revoked tokens")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.NewStoreError(err, "purging revoked tokens")
	}
	return int(n), nil
}
