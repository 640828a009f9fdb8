package main

import (
	"context"
	"fmt"

	"github.com/jsacademy/console/core/admin"
)

// addUser updates or creates an admin account.
func (cli *commandLine) addUser(name, uname, email, pwd string) error {
	na := admin.NewAdmin{Name: name, Username: uname, Email: email, Password: pwd}
	if err := na.Validate(cli.validate); err != nil {
		return err
	}
	adm, err := cli.adminSvc.UpdateOrCreate(context.Background(), na)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admin %q saved (id %d)\n", adm.Username, adm.ID)
	return nil
}

func (cli *commandLine) resetPassword(login, pwd string) error {
	return cli.adminSvc.SetPassword(context.Background(), login, pwd)
}
