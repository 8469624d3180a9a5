package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/ischoolgo/core"
)

// Roles
const (
	RoleAdmin       = "admin"
	RoleDirector    = "director"
	RoleHeadTrainer = "head_trainer"
	RoleTeacher     = "teacher"
	RoleAgent       = "agent"
	RoleMarketer    = "marketer"
)

// Statuses
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

var (
	AllRoles     = []string{RoleAdmin, RoleDirector, RoleHeadTrainer, RoleTeacher, RoleAgent, RoleMarketer}
	TeacherRoles = []string{RoleTeacher, RoleHeadTrainer}
	AllStatuses  = []string{StatusActive, StatusInactive, StatusSuspended}

	Roles = []Role{
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Director", Value: RoleDirector},
		{Name: "Head Trainer", Value: RoleHeadTrainer},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Agent", Value: RoleAgent},
		{Name: "Marketer", Value: RoleMarketer},
	}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string       `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	Name         string       `json:"name" db:"name"`
	Role         string       `json:"role" db:"role"`
	Status       string       `json:"status" db:"status"`
	Phone        null.String  `json:"phone" db:"phone"`
	Address      null.String  `json:"address" db:"address"`
	Avatar       null.String  `json:"avatar" db:"avatar"`
	HireDate     null.String  `json:"hire_date" db:"hire_date"` // YYYY-MM-DD
	Salary       null.Float64 `json:"salary" db:"salary"`
	PasswordHash string       `json:"-" db:"password_hash"`
	LastLogin    null.Time    `json:"last_login" db:"last_login"` // UTC
	CreatedAt    time.Time    `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pwd))
}

func (u *User) IsActive() bool { return u.Status == StatusActive }

func (u *User) IsTeacher() bool { return u.Role == RoleTeacher || u.Role == RoleHeadTrainer }

// Actor returns the identity `u` acts under.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string       `json:"name" validate:"required,notblank"`
	Email           string       `json:"email" validate:"required,email"`
	Role            string       `json:"role" validate:"required,role"`
	Phone           null.String  `json:"phone"`
	Address         null.String  `json:"address"`
	HireDate        null.String  `json:"hire_date" validate:"omitempty,date"`
	Salary          null.Float64 `json:"salary" validate:"omitempty,gte=0"`
	Password        string       `json:"password" validate:"required"`
	PasswordConfirm string       `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            *string      `json:"name" validate:"omitempty,notblank"`
	Email           *string      `json:"email" validate:"omitempty,email"`
	Role            *string      `json:"role" validate:"omitempty,role"`
	Status          *string      `json:"status" validate:"omitempty,oneof=active inactive suspended"`
	Phone           *string      `json:"phone"`
	Address         *string      `json:"address"`
	Avatar          *string      `json:"avatar"`
	HireDate        *string      `json:"hire_date" validate:"omitempty,date"`
	Salary          null.Float64 `json:"salary" validate:"omitempty,gte=0"`
	Password        string       `json:"password" validate:"omitempty"`
	PasswordConfirm string       `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	if uu.Name != nil {
		*uu.Name = core.CleanString(*uu.Name)
	}
	if uu.Email != nil {
		*uu.Email = core.CleanString(*uu.Email, true /* lower */)
	}
	return validate.Struct(uu)
}

// apply copies the provided fields onto usr.
func (uu UpdateUser) apply(usr *User) {
	if uu.Name != nil {
		usr.Name = *uu.Name
	}
	if uu.Email != nil {
		usr.Email = *uu.Email
	}
	if uu.Role != nil {
		usr.Role = *uu.Role
	}
	if uu.Status != nil {
		usr.Status = *uu.Status
	}
	if uu.Phone != nil {
		usr.Phone = null.NewString(*uu.Phone, *uu.Phone != "")
	}
	if uu.Address != nil {
		usr.Address = null.NewString(*uu.Address, *uu.Address != "")
	}
	if uu.Avatar != nil {
		usr.Avatar = null.NewString(*uu.Avatar, *uu.Avatar != "")
	}
	if uu.HireDate != nil {
		usr.HireDate = null.NewString(*uu.HireDate, *uu.HireDate != "")
	}
	if uu.Salary.Valid {
		usr.Salary = uu.Salary
	}
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	Status      string    `query:"status"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Status == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
