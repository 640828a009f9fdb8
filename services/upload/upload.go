package uploadsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

const fileField = "file"

type (
	// Store persists an uploaded object and returns the URL it is served from.
	Store interface {
		Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	}

	Service interface {
		// SaveImage checks the size and the sniffed MIME type of an image, then stores it under a random name.
		SaveImage(ctx context.Context, filename string, size int64, r io.Reader) (string, error)
	}

	service struct {
		store        Store
		maxSize      int64
		allowedTypes []string
	}
)

var _ Service = (*service)(nil)

func NewService(store Store, maxSize int64, allowedTypes []string) Service {
	return &service{store: store, maxSize: maxSize, allowedTypes: allowedTypes}
}

func (svc *service) SaveImage(ctx context.Context, filename string, size int64, r io.Reader) (string, error) {
	if size > svc.maxSize {
		return "", svc.errTooLarge()
	}

	// the declared size is not trusted: read at most one byte past the cap
	data, err := io.ReadAll(io.LimitReader(r, svc.maxSize+1))
	if err != nil {
		return "", errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > svc.maxSize {
		return "", svc.errTooLarge()
	}
	if len(data) == 0 {
		return "", core.NewFieldValidationError(fileField, "the file is empty")
	}

	mtype := mimetype.Detect(data)
	if !svc.allowed(mtype) {
		return "", core.NewFieldValidationError(fileField, fmt.Sprintf(
			"%s files are not allowed (%s)", mtype.String(), strings.Join(svc.allowedTypes, ", "),
		))
	}

	ext := mtype.Extension()
	if ext == "" {
		ext = strings.ToLower(path.Ext(filename))
	}
	url, err := svc.store.Save(ctx, uuid.NewString()+ext, mtype.String(), bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "storing upload")
	}
	return url, nil
}

func (svc *service) allowed(mtype *mimetype.MIME) bool {
	for _, t := range svc.allowedTypes {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

func (svc *service) errTooLarge() error {
	return core.NewFieldValidationError(fileField, fmt.Sprintf("the file exceeds %d MB", svc.maxSize>>20))
}

// Stores

type localStore struct {
	dir     string
	baseURL string
}

var _ Store = (*localStore)(nil)

// NewLocalStore writes uploads to dir, served under baseURL.
func NewLocalStore(dir, baseURL string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload directory")
	}
	return &localStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *localStore) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	f, err := os.OpenFile(filepath.Join(s.dir, filepath.Base(name)), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", errors.Wrap(err, "writing file")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing file")
	}
	return s.baseURL + "/" + name, nil
}

type b2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ Store = (*b2Store)(nil)

// NewB2Store stores uploads in a Backblaze B2 bucket.
func NewB2Store(ctx context.Context, keyID, appKey, bucketName string) (Store, error) {
	client, err := b2.NewClient(ctx, keyID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrapf(err, "opening b2 bucket %q", bucketName)
	}
	return &b2Store{client: client, bucket: bucket}, nil
}

func (s *b2Store) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	key := path.Join("images", name)
	w := s.bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing b2 object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing b2 object")
	}
	return fmt.Sprintf("%s/file/%s/%s", s.bucket.BaseURL(), s.bucket.Name(), key), nil
}

// NewStore builds the store selected by the upload configuration.
func NewStore(ctx context.Context, conf core.UploadConfig) (Store, error) {
	switch conf.Backend {
	case "", "local":
		return NewLocalStore(conf.Dir, conf.BaseURL)
	case "b2":
		return NewB2Store(ctx, conf.B2KeyID, conf.B2AppKey, conf.B2Bucket)
	default:
		return nil, errors.Errorf("unknown upload backend %q", conf.Backend)
	}
}
