package echoapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/student"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}
func (l *recordingLogger) Warn(string, ...interface{})  {}
func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *recordingLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func Test_newAppHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		debug        bool
		wantCode     int
		wantData     []byte
		wantLogged   bool
		wantShutdown bool
	}{
		{
			name:     "not found sentinel",
			err:      errors.Wrap(student.ErrNotFound, "getting student"),
			wantCode: http.StatusNotFound,
			wantData: errResponse("student not found"),
		},
		{
			name:     "duplicate maps to its field",
			err:      errors.Wrap(student.ErrEmailExists, "creating student"),
			wantCode: http.StatusBadRequest,
			wantData: errResponse(student.ErrEmailExists.Error(), "email", student.ErrEmailExists.Error()),
		},
		{
			name:     "field validation",
			err:      core.NewFieldValidationError("ids", "duplicate topic id 3"),
			wantCode: http.StatusBadRequest,
			wantData: errResponse("duplicate topic id 3", "ids", "duplicate topic id 3"),
		},
		{
			name:     "http error",
			err:      echo.ErrMethodNotAllowed,
			wantCode: http.StatusMethodNotAllowed,
			wantData: errResponse("Method Not Allowed"),
		},
		{
			name:       "database error is hidden",
			err:        errors.Wrap(errors.New(`pq: relation "lessons" does not exist`), "querying lessons"),
			wantCode:   http.StatusInternalServerError,
			wantData:   errResponse("internal server error"),
			wantLogged: true,
		},
		{
			name:       "database error in debug",
			err:        errors.New("pq: syntax error"),
			debug:      true,
			wantCode:   http.StatusInternalServerError,
			wantData:   errResponse("pq: syntax error"),
			wantLogged: true,
		},
		{
			name:         "shutdown",
			err:          errors.Wrap(core.NewShutdownError("integrity issue"), "saving"),
			wantCode:     http.StatusInternalServerError,
			wantData:     errResponse("internal server error"),
			wantLogged:   true,
			wantShutdown: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(recordingLogger)
			var shutdown bool
			handler := newAppHTTPErrorHandler(logger, core.NewTranslator(), func() { shutdown = true })

			e := echo.New()
			e.Debug = tt.debug
			rec := httptest.NewRecorder()
			ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			handler(tt.err, ctx)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
			assert.Equal(t, tt.wantLogged, len(logger.errors) > 0)
			assert.Equal(t, tt.wantShutdown, shutdown)
		})
	}
}
