package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/analytics"
	"github.com/jsacademy/console/core/content"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
	appfs "github.com/jsacademy/console/fs"
	emailsvc "github.com/jsacademy/console/services/email"
	logsvc "github.com/jsacademy/console/services/logger"
	uploadsvc "github.com/jsacademy/console/services/upload"
	inmemdb "github.com/jsacademy/console/storage/database/inmem"
)

const testPassword = "s3cret-pass"

type testEnv struct {
	app       Server
	conf      *core.Config
	admin     admin.Admin
	token     string
	adminSvc  admin.Service
	adminRepo admin.Repository
	content   content.Service
	students  student.Service
	mails     *emailsvc.ConsoleService
	uploads   *memStore
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		AppName:          "JS Academy",
		SecretKey:        "test-secret",
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "JS Academy", Address: "noreply@jsacademy.dev"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Analytics: core.AnalyticsConfig{DefaultRangeDays: 30},
	}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "API : ", log.LstdFlags), conf)

	// set up DB & repos
	db, err := inmemdb.Open()
	require.NoError(t, err)
	adminRepo := inmemdb.NewAdminRepository(db)
	contentRepo := inmemdb.NewContentRepository(db)
	studentRepo := inmemdb.NewStudentRepository(db)
	progressRepo := inmemdb.NewProgressRepository(db)

	// set up services
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	content.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, logger, true)

	mails := emailsvc.NewConsoleServiceMock(conf.AppName, conf.DefaultFromEmail, logger)
	uploads := &memStore{saved: map[string][]byte{}}
	env := &testEnv{
		conf:      conf,
		adminSvc:  admin.NewService(adminRepo),
		adminRepo: adminRepo,
		content:   content.NewService(db, contentRepo),
		students:  student.NewService(studentRepo, validate, mails),
		mails:     mails,
		uploads:   uploads,
	}

	// set up server
	env.app = NewServer(&Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		AdminSvc:       env.adminSvc,
		ContentSvc:     env.content,
		StudentSvc:     env.students,
		ProgressSvc:    progress.NewService(db, progressRepo, contentRepo, studentRepo),
		AnalyticsSvc:   analytics.NewService(fakeAnalyticsRepo{}, conf.Analytics.DefaultRangeDays),
		UploadSvc:      uploadsvc.NewService(uploads, 1<<20, []string{"image/png", "image/jpeg"}),
	})

	env.admin = env.createAdmin(t, "instructor", "instructor@jsacademy.dev")
	env.token = env.getToken(t, env.admin)
	return env
}

func (env *testEnv) createAdmin(t *testing.T, username, email string) admin.Admin {
	t.Helper()
	adm, err := env.adminSvc.UpdateOrCreate(context.Background(), admin.NewAdmin{
		Name:     "Test " + username,
		Username: username,
		Email:    email,
		Password: testPassword,
	})
	require.NoError(t, err)
	return adm
}

func (env *testEnv) getToken(t *testing.T, adm admin.Admin) string {
	t.Helper()
	token, err := env.app.GenerateToken(adm)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	env.app.ServeHTTP(rec, req)
}

type memStore struct {
	saved map[string][]byte
}

func (s *memStore) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[name] = data
	return "/uploads/images/" + name, nil
}

type fakeAnalyticsRepo struct{}

func (fakeAnalyticsRepo) Overview(context.Context, time.Time, time.Time) (analytics.Overview, error) {
	return analytics.Overview{TotalStudents: 4, LessonsStarted: 8, LessonsCompleted: 6, QuizAttempts: 10, CorrectAttempts: 7}, nil
}

func (fakeAnalyticsRepo) TopicStats(context.Context, time.Time, time.Time) ([]analytics.TopicStats, error) {
	return nil, nil
}

func (fakeAnalyticsRepo) StudentActivity(context.Context) ([]analytics.StudentActivity, error) {
	return nil, nil
}

func (fakeAnalyticsRepo) LiveLessonCount(context.Context) (int, error) { return 0, nil }

func (fakeAnalyticsRepo) SignupActivity(context.Context, time.Time, time.Time) ([]analytics.StudentActivity, error) {
	return nil, nil
}

func (fakeAnalyticsRepo) DailyActivity(context.Context, time.Time, time.Time) ([]analytics.DailyActivity, error) {
	return nil, nil
}

func (fakeAnalyticsRepo) QuizPerformance(context.Context, time.Time, time.Time, analytics.QuizFilter) ([]analytics.QuizPerformance, error) {
	return nil, nil
}

func (fakeAnalyticsRepo) CompletionPace(context.Context, time.Time, time.Time) ([]analytics.CompletionPace, error) {
	return nil, nil
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func newMultipartRequest(t *testing.T, path, token, field, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// decodeData unmarshals the `data` member of a success envelope into dest.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var res struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(res.Data, dest))
}

func errResponse(msg string, fields ...string) []byte {
	res := Response{Message: msg}
	if len(fields) > 0 {
		res.Errors = make(map[string]string)
		for i := 0; i+1 < len(fields); i += 2 {
			res.Errors[fields[i]] = fields[i+1]
		}
	}
	data, _ := json.Marshal(res)
	return data
}
