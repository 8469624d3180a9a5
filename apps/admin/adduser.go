package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ischoolgo/core/user"
)

// addUser creates the user, or updates the name, role and password of the user already owning `email`.
// Either way the account ends up active.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	ctx := user.ContextWithActor(context.Background(), user.SystemActor)

	nu := user.NewUser{Name: name, Email: email, Role: role, Password: pwd, PasswordConfirm: pwd}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: nu.Email})
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{Email: nu.Email, CreatedAt: now}
	}
	usr.Name = nu.Name
	usr.Role = nu.Role
	usr.Status = user.StatusActive
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
