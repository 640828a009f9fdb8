package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

func (cli *commandLine) resetStudentPassword(uname string) error {
	ctx := context.Background()
	stu, err := cli.studentSvc.GetByUsername(ctx, core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	pwd, err := cli.studentSvc.ResetPassword(ctx, stu.ID, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "new password for %q: %s\n", stu.Username, pwd)
	return nil
}

func (cli *commandLine) importStudents(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer func() { _ = f.Close() }()

	res, err := cli.studentSvc.ImportCSV(context.Background(), f)
	if err != nil {
		return err
	}
	for _, row := range res.Rows {
		switch {
		case row.Error != "":
			fmt.Fprintf(cli.out, "line %d: %s %s (%s)\n", row.Line, row.Username, row.Status, row.Error)
		case row.Password != "":
			fmt.Fprintf(cli.out, "line %d: %s %s, password %s\n", row.Line, row.Username, row.Status, row.Password)
		default:
			fmt.Fprintf(cli.out, "line %d: %s %s\n", row.Line, row.Username, row.Status)
		}
	}
	fmt.Fprintf(cli.out, "total %d, created %d, skipped %d, failed %d\n", res.Total, res.Created, res.Skipped, res.Failed)
	return nil
}
