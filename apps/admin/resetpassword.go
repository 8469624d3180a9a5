package main

import (
	"context"

	"github.com/trezcool/ischoolgo/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
	if err := uu.Validate(cli.validate); err != nil {
		return err
	}
	ctx := user.ContextWithActor(context.Background(), user.SystemActor)
	_, err := cli.usrSvc.SetPassword(ctx, email, pwd)
	return err
}
