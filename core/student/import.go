package student

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

var (
	errImportHeader = errors.New("the first row must be a header with username and email columns")
	errDuplicateRow = errors.New("duplicate of an earlier row")
)

type importColumns struct {
	username, email, fullName int
}

func parseImportHeader(header []string) (importColumns, error) {
	cols := importColumns{username: -1, email: -1, fullName: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "username":
			cols.username = i
		case "email":
			cols.email = i
		case "full_name", "fullname", "name":
			cols.fullName = i
		}
	}
	if cols.username < 0 || cols.email < 0 {
		return cols, core.NewValidationError(errImportHeader, core.FieldError{Field: "file", Error: errImportHeader.Error()})
	}
	return cols, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// ImportCSV creates a student for every valid row of r. Rows are independent: a failing row
// does not undo the rows created before it. Rows whose username or email already exists, in
// the database or earlier in the file, are skipped.
func (svc *service) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return ImportResult{}, core.NewValidationError(errImportHeader, core.FieldError{Field: "file", Error: errImportHeader.Error()})
	} else if err != nil {
		return ImportResult{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}
	cols, err := parseImportHeader(header)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{Rows: make([]ImportRow, 0)}
	seenUsernames := make(map[string]bool)
	seenEmails := make(map[string]bool)
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.add(ImportRow{Line: line, Status: ImportFailed, Error: err.Error()})
			continue
		}
		if isBlankRecord(record) {
			continue
		}

		ns := NewStudent{
			Username: core.CleanString(field(record, cols.username), true /* lower */),
			Email:    core.CleanString(field(record, cols.email), true /* lower */),
			FullName: core.CleanString(field(record, cols.fullName)),
		}
		row := ImportRow{Line: line, Username: ns.Username, Email: ns.Email}

		if err := svc.validate.Struct(ns); err != nil {
			row.Status, row.Error = ImportFailed, validationSummary(err)
			result.add(row)
			continue
		}
		if seenUsernames[ns.Username] || seenEmails[ns.Email] {
			row.Status, row.Error = ImportSkipped, errDuplicateRow.Error()
			result.add(row)
			continue
		}
		seenUsernames[ns.Username], seenEmails[ns.Email] = true, true

		if err := svc.repo.CheckUniqueness(ctx, ns.Username, ns.Email, 0); err != nil {
			switch errors.Cause(err) {
			case ErrUsernameExists, ErrEmailExists:
				row.Status = ImportSkipped
			default:
				row.Status = ImportFailed
			}
			row.Error = err.Error()
			result.add(row)
			continue
		}

		created, err := svc.Create(ctx, ns)
		if err != nil {
			row.Status, row.Error = ImportFailed, err.Error()
			result.add(row)
			continue
		}
		row.Status, row.Password = ImportCreated, created.Password
		result.add(row)
	}
	return result, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func validationSummary(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
