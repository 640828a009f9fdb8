package student_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/student"
	inmemdb "github.com/jsacademy/console/storage/database/inmem"
)

type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func newService(t *testing.T) (student.Service, *mailRecorder) {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	mails := new(mailRecorder)
	return student.NewService(inmemdb.NewStudentRepository(db), validate, mails), mails
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	created, err := svc.Create(ctx, student.NewStudent{Username: "ada", Email: "ada@example.com", FullName: "Ada Lovelace"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Len(t, created.Password, 12)
	assert.NoError(t, created.CheckPassword(created.Password))
	assert.Equal(t, student.AvatarColor("ada"), created.AvatarColor)

	withPwd, err := svc.Create(ctx, student.NewStudent{Username: "grace", Email: "grace@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Empty(t, withPwd.Password)
	assert.NoError(t, withPwd.CheckPassword("s3cret-pass"))

	err = svc.CheckUniqueness(ctx, "ada", "other@example.com")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "username", verr.Fields[0].Field)

	err = svc.CheckUniqueness(ctx, "someone", "grace@example.com")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Fields[0].Field)

	assert.NoError(t, svc.CheckUniqueness(ctx, "ada", "ada@example.com", created.ID))
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	svc, mails := newService(t)

	created, err := svc.Create(ctx, student.NewStudent{Username: "linus", Email: "linus@example.com", Password: "initial-pass"})
	require.NoError(t, err)

	pwd, err := svc.ResetPassword(ctx, created.ID, false)
	require.NoError(t, err)
	assert.Len(t, pwd, 12)
	assert.Empty(t, mails.sent)

	std, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.NoError(t, std.CheckPassword(pwd))
	assert.Error(t, std.CheckPassword("initial-pass"))

	again, err := svc.ResetPassword(ctx, created.ID, true)
	require.NoError(t, err)
	assert.NotEqual(t, pwd, again)
	require.Len(t, mails.sent, 1)
	assert.Equal(t, "linus@example.com", mails.sent[0].To[0].Address)
	assert.Equal(t, again, mails.sent[0].TemplateData.(map[string]interface{})["Password"])

	_, err = svc.ResetPassword(ctx, 999, false)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	s1, err := svc.Create(ctx, student.NewStudent{Username: "one", Email: "one@example.com"})
	require.NoError(t, err)
	s2, err := svc.Create(ctx, student.NewStudent{Username: "two", Email: "two@example.com"})
	require.NoError(t, err)

	n, err := svc.Delete(ctx, s1.ID, s2.ID, 12345)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.GetByID(ctx, s1.ID)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))

	page, err := svc.Query(ctx, nil, nil, core.Page{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	// the username is free again once the student is deleted
	assert.NoError(t, svc.CheckUniqueness(ctx, "one", "one@example.com"))
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for _, uname := range []string{"alice", "bob", "carol"} {
		_, err := svc.Create(ctx, student.NewStudent{Username: uname, Email: uname + "@example.com"})
		require.NoError(t, err)
	}

	page, err := svc.Query(ctx, &student.QueryFilter{Search: "CAR"}, nil, core.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "carol", page.Items[0].Username)

	page, err = svc.Query(ctx, nil, nil, core.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Page)

	inactive := false
	page, err = svc.Query(ctx, &student.QueryFilter{IsActive: &inactive}, nil, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestService_ImportCSV(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Create(ctx, student.NewStudent{Username: "taken", Email: "taken@example.com"})
	require.NoError(t, err)

	csv := strings.Join([]string{
		"Email,Username,Full_Name",
		"new1@example.com,new1,New One",
		"new2@example.com,NEW2,",
		"taken@example.com,fresh,",
		"bad-email,badrow,",
		",nomail,",
		"new1@example.com,new1,Duplicate",
		"",
		"new3@example.com,new3,New Three",
	}, "\n")

	result, err := svc.ImportCSV(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 2, result.Failed)

	statuses := make([]student.ImportStatus, 0, len(result.Rows))
	for _, row := range result.Rows {
		statuses = append(statuses, row.Status)
		if row.Status == student.ImportCreated {
			assert.NotEmpty(t, row.Password)
		} else {
			assert.Empty(t, row.Password)
			assert.NotEmpty(t, row.Error)
		}
	}
	assert.Equal(t, []student.ImportStatus{
		student.ImportCreated,
		student.ImportCreated,
		student.ImportSkipped,
		student.ImportFailed,
		student.ImportFailed,
		student.ImportSkipped,
		student.ImportCreated,
	}, statuses)
	assert.Equal(t, "new2", result.Rows[1].Username)

	std, err := svc.GetByUsername(ctx, "new1")
	require.NoError(t, err)
	assert.Equal(t, "New One", std.FullName)
	assert.NoError(t, std.CheckPassword(result.Rows[0].Password))
}

func TestService_ImportCSVHeader(t *testing.T) {
	svc, _ := newService(t)

	for _, input := range []string{"", "name,mail\nx,y"} {
		_, err := svc.ImportCSV(context.Background(), strings.NewReader(input))
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr), "input %q", input)
		assert.Equal(t, "file", verr.Fields[0].Field)
	}
}
