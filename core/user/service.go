package user

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ischoolgo/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrAccountInactive      = errors.New("account is not active")
	ErrInvalidResetLink     = errors.New("the password reset link is invalid or has expired")
	ErrCannotDeleteSelf     = core.NewConflictError("users cannot delete their own account")
)

type (
	// GetFilter selects one user by ID or by email.
	GetFilter struct {
		ID    string
		Email string
	}

	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		RevokeToken(ctx context.Context, tokenHash string, expiresAt time.Time, exec ...core.DBExecutor) error
		IsTokenRevoked(ctx context.Context, tokenHash string, exec ...core.DBExecutor) (bool, error)
		PurgeRevokedTokens(ctx context.Context, before time.Time, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db        core.DB
		repo      Repository
		mailSvc   core.EmailService
		validate  *validator.Validate
		secretKey []byte
		tokens    tokenGenerator
	}
)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		mailSvc:   mailSvc,
		validate:  validate,
		secretKey: []byte(conf.SecretKey),
		tokens:    newTokenGenerator(conf.SecretKey, conf.Server.PasswordResetTimeoutDelta),
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exec core.DBExecutor, exclIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclIDs, exec); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a user account and mails its owner a welcome message.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := Authorize(ctx, PermUsersWrite); err != nil {
		return User{}, err
	}
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Email:     nu.Email,
		Name:      nu.Name,
		Role:      nu.Role,
		Status:    StatusActive,
		Phone:     nu.Phone,
		Address:   nu.Address,
		HireDate:  nu.HireDate,
		Salary:    nu.Salary,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkUniqueness(ctx, usr.Email, tx); err != nil {
			return err
		}
		var err error
		usr, err = svc.repo.CreateUser(ctx, usr, tx)
		return err
	})
	if err != nil {
		return User{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: usr,
	})
	return usr, nil
}

// Authenticate checks an email/password pair and stamps the user's last login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive() {
		return User{}, ErrAccountInactive
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

// CurrentUser resolves the context actor to its stored profile.
func (svc *Service) CurrentUser(ctx context.Context) (User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == "" {
		return User{}, core.NewForbiddenError("", "users:me")
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: actor.ID})
}

// GetActiveByID returns the user with the given ID if the account is active.
func (svc *Service) GetActiveByID(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive() {
		return User{}, ErrAccountInactive
	}
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if err := Authorize(ctx, PermUsersRead); err != nil {
		return nil, err
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

// GetByID returns any user to managers, and only themselves to everyone else.
func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if err := svc.authorizeSelfOr(ctx, id, PermUsersRead); err != nil {
		return User{}, err
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Update modifies a user. Users may edit their own profile, but only managers may change roles and statuses.
func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	if err := svc.authorizeSelfOr(ctx, id, PermUsersWrite); err != nil {
		return User{}, err
	}
	actor, _ := ActorFromContext(ctx)
	if (uu.Role != nil || uu.Status != nil) && !Can(actor.Role, PermUsersWrite) {
		return User{}, core.NewForbiddenError(actor.Role, string(PermUsersWrite))
	}
	if err := uu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	var usr User
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.GetUser(ctx, GetFilter{ID: id}, tx); err != nil {
			return err
		}
		if uu.Email != nil && *uu.Email != usr.Email {
			if err = svc.checkUniqueness(ctx, *uu.Email, tx, usr.ID); err != nil {
				return err
			}
		}
		uu.apply(&usr)
		if uu.Password != "" {
			if err = usr.SetPassword(uu.Password); err != nil {
				return errors.Wrap(err, "hashing password")
			}
		}
		usr.UpdatedAt = time.Now().UTC()
		usr, err = svc.repo.UpdateUser(ctx, usr, tx)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	if err := Authorize(ctx, PermUsersWrite); err != nil {
		return 0, err
	}
	if actor, _ := ActorFromContext(ctx); actor.ID != "" {
		for _, id := range ids {
			if id == actor.ID {
				return 0, ErrCannotDeleteSelf
			}
		}
	}
	return svc.repo.DeleteUsersByID(ctx, ids)
}

// SetPassword sets a new password for the user with the given email. Used by operators.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (User, error) {
	if err := Authorize(ctx, PermUsersWrite); err != nil {
		return User{}, err
	}
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset mails a password reset link to the owner of `email`.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive() {
		return ErrAccountInactive
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
}

// ResetPassword sets a new password when the reset token matches the user.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	if err := data.Validate(svc.validate); err != nil {
		return User{}, err
	}
	invalidErr := core.NewValidationError(ErrInvalidResetLink)

	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, invalidErr
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if err == ErrNotFound {
			return User{}, invalidErr
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return User{}, invalidErr
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SignOut revokes `token` until it expires.
func (svc *Service) SignOut(ctx context.Context, token string, expiresAt time.Time) error {
	now := time.Now().UTC()
	if _, err := svc.repo.PurgeRevokedTokens(ctx, now); err != nil {
		return errors.Wrap(err, "purging revoked tokens")
	}
	if !expiresAt.After(now) {
		return nil
	}
	return svc.repo.RevokeToken(ctx, svc.hashToken(token), expiresAt.UTC())
}

func (svc *Service) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	return svc.repo.IsTokenRevoked(ctx, svc.hashToken(token))
}

func (svc *Service) hashToken(token string) string {
	h := hmac.New(sha256.New, svc.secretKey)
	_, _ = h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

func (svc *Service) authorizeSelfOr(ctx context.Context, id string, perm Permission) error {
	if actor, ok := ActorFromContext(ctx); ok && actor.ID != "" && actor.ID == id {
		return nil
	}
	return Authorize(ctx, perm)
}
