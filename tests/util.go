// Package testutil holds fixtures shared by the database-backed tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/student"
	"github.com/jsacademy/console/storage/database"
)

// tables in reverse dependency order
var tables = []string{
	"student_quiz_attempts",
	"student_progress",
	"students",
	"quiz_options",
	"quizzes",
	"lessons",
	"topics",
	"admins",
}

// PrepareDB opens the database named by TEST_DATABASE_URL, migrates it and empties every table.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.OpenURL(dbURL)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	truncate(t, db)
	t.Cleanup(func() {
		truncate(t, db)
		_ = db.Close()
	})
	return db
}

func truncate(t *testing.T, db *sqlx.DB) {
	for _, table := range tables {
		if _, err := db.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE"); err != nil {
			t.Fatalf("truncating %s: %v", table, err)
		}
	}
}

func CreateAdmin(t *testing.T, repo admin.Repository, name, uname, email, pwd string, isActive bool) admin.Admin {
	t.Helper()
	now := time.Now().UTC()
	adm := admin.Admin{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := adm.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAdmin() failed: %v", err)
		}
	}
	adm, err := repo.UpdateOrCreate(context.Background(), adm)
	if err != nil {
		t.Fatalf("CreateAdmin() failed: %v", err)
	}
	return adm
}

func CreateStudent(t *testing.T, repo student.Repository, uname, email, fullName string, createdAt ...time.Time) student.Student {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	std := student.Student{
		Username:    uname,
		Email:       email,
		FullName:    fullName,
		AvatarColor: "#3b82f6",
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if err := std.SetPassword("password-" + uname); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	std, err := repo.Create(context.Background(), std)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}
