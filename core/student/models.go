package student

import (
	"context"
	"crypto/rand"
	"hash/fnv"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/jsacademy/console/core"
)

const (
	// ActiveWindow is how recently a student must have been active to count as active.
	ActiveWindow = 30 * 24 * time.Hour

	generatedPasswordLen = 12
	passwordAlphabet     = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var avatarColors = []string{
	"#4f46e5", "#0ea5e9", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#ec4899", "#14b8a6",
}

type Student struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	PasswordHash []byte     `json:"-"`
	AvatarColor  string     `json:"avatar_color"`
	TotalScore   int        `json:"total_score"`
	LastActive   *time.Time `json:"last_active"` // UTC
	CreatedAt    time.Time  `json:"created_at"`  // UTC
	UpdatedAt    time.Time  `json:"updated_at"`  // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

// IsActive reports whether the student was active within ActiveWindow of now.
func (s *Student) IsActive(now time.Time) bool {
	return s.LastActive != nil && now.Sub(*s.LastActive) <= ActiveWindow
}

// GeneratePassword returns a random password drawn from an alphabet without look-alike characters.
func GeneratePassword() (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, generatedPasswordLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// AvatarColor picks a stable color for username.
func AvatarColor(username string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return avatarColors[h.Sum32()%uint32(len(avatarColors))]
}

// CreatedStudent is a new student along with its password when one was generated.
type CreatedStudent struct {
	Student
	Password string `json:"password,omitempty"`
}

// NewStudent contains information needed to create a new Student.
// A password is generated when none is given.
type NewStudent struct {
	Username    string `json:"username" validate:"required,min=3,max=50,alphanum_"`
	Email       string `json:"email" validate:"required,email,max=255"`
	FullName    string `json:"full_name" validate:"max=100"`
	Password    string `json:"password" validate:"omitempty,min=8,max=72"`
	AvatarColor string `json:"avatar_color" validate:"omitempty,hexcolor"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.FullName = core.CleanString(ns.FullName)
	ns.AvatarColor = core.CleanString(ns.AvatarColor, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.Username, ns.Email)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields keep their current value.
type UpdateStudent struct {
	Username    string  `json:"username" validate:"omitempty,min=3,max=50,alphanum_"`
	Email       string  `json:"email" validate:"omitempty,email,max=255"`
	FullName    *string `json:"full_name" validate:"omitempty,max=100"`
	Password    string  `json:"password" validate:"omitempty,min=8,max=72"`
	AvatarColor string  `json:"avatar_color" validate:"omitempty,hexcolor"`
}

func (us *UpdateStudent) Validate(ctx context.Context, validate *validator.Validate, orig Student, svc Service) error {
	if uname := core.CleanString(us.Username, true /* lower */); uname != "" {
		us.Username = uname
	} else {
		us.Username = orig.Username
	}
	if email := core.CleanString(us.Email, true /* lower */); email != "" {
		us.Email = email
	} else {
		us.Email = orig.Email
	}
	if us.FullName != nil {
		name := core.CleanString(*us.FullName)
		us.FullName = &name
	}
	us.AvatarColor = core.CleanString(us.AvatarColor, true /* lower */)

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, us.Username, us.Email, orig.ID)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom core.Date `query:"created_from"`
	CreatedTo   core.Date `query:"created_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type ImportStatus string

const (
	ImportCreated ImportStatus = "created"
	ImportSkipped ImportStatus = "skipped"
	ImportFailed  ImportStatus = "failed"
)

type ImportRow struct {
	Line     int          `json:"line"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Status   ImportStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
	Password string       `json:"password,omitempty"`
}

// ImportResult is the per-row tally of a CSV import.
type ImportResult struct {
	Total   int         `json:"total"`
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Rows    []ImportRow `json:"rows"`
}

func (r *ImportResult) add(row ImportRow) {
	r.Total++
	switch row.Status {
	case ImportCreated:
		r.Created++
	case ImportSkipped:
		r.Skipped++
	case ImportFailed:
		r.Failed++
	}
	r.Rows = append(r.Rows, row)
}
