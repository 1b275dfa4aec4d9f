package geodair

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
	"google.golang.org/api/iterator"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Storage reads and writes objects of the pipeline such as raw exports and star schema tables.
type Storage interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	NewReader(ctx context.Context, name string) (io.ReadCloser, error)

	// NewWriter returns a writer for the object. The object is committed when
	// the writer is closed and discarded when it is aborted with AbortWriter.
	NewWriter(ctx context.Context, name, contentType string) (io.WriteCloser, error)
}

type aborter interface {
	Abort() error
}

// AbortWriter discards the object being written by w. Previous content of
// the object is kept. Writers which cannot abort are closed.
func AbortWriter(w io.WriteCloser) error {
	if a, ok := w.(aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// GCSStorage is a Storage backed by a Cloud Storage bucket.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSStorage builds a GCSStorage for the bucket.
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to build storage client for %s: %w", bucket, err)
	}

	return &GCSStorage{client: c, bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (s *GCSStorage) Bucket() string {
	return s.bucket
}

func (s *GCSStorage) List(ctx context.Context, prefix string) ([]Object, error) {
	objs := []Object{}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("failed to list gs://%s/%s: %w", s.bucket, prefix, err)
		}

		objs = append(objs, Object{Name: attrs.Name, Bucket: attrs.Bucket, Size: attrs.Size})
	}

	return objs, nil
}

func (s *GCSStorage) NewReader(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if xerrors.Is(err, storage.ErrObjectNotExist) {
			return nil, xerrors.Errorf("gs://%s/%s: %w", s.bucket, name, ErrObjectNotFound)
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to initialize object reader")
		return nil, xerrors.Errorf("failed to get reader of gs://%s/%s: %w", s.bucket, name, err)
	}

	return r, nil
}

func (s *GCSStorage) NewWriter(ctx context.Context, name, contentType string) (io.WriteCloser, error) {
	ctx, cancel := context.WithCancel(ctx)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	return &gcsWriter{Writer: w, cancel: cancel}, nil
}

// gcsWriter uploads an object. Canceling its context before Close leaves
// the object untouched.
type gcsWriter struct {
	*storage.Writer
	cancel context.CancelFunc
}

func (w *gcsWriter) Close() error {
	defer w.cancel()
	return w.Writer.Close()
}

func (w *gcsWriter) Abort() error {
	w.cancel()
	_ = w.Writer.Close()
	return nil
}

// Close closes the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// DirStorage is a Storage backed by a local directory.
// Object names are slash separated paths relative to the directory.
// Files whose name starts with a dot are not objects.
type DirStorage struct {
	root string
}

// NewDirStorage builds a DirStorage rooted at dir.
func NewDirStorage(dir string) (*DirStorage, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve %s: %w", dir, err)
	}

	return &DirStorage{root: root}, nil
}

func (s *DirStorage) List(_ context.Context, prefix string) ([]Object, error) {
	objs := []Object{}

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objs = append(objs, Object{Name: name, Bucket: s.root, Size: info.Size()})

		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to list %s in %s: %w", prefix, s.root, err)
	}

	sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })

	return objs, nil
}

func (s *DirStorage) NewReader(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if xerrors.Is(err, fs.ErrNotExist) {
			return nil, xerrors.Errorf("%s: %w", s.path(name), ErrObjectNotFound)
		}
		return nil, xerrors.Errorf("failed to open %s: %w", s.path(name), err)
	}

	return f, nil
}

func (s *DirStorage) NewWriter(_ context.Context, name, _ string) (io.WriteCloser, error) {
	p := s.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, xerrors.Errorf("failed to create directory for %s: %w", p, err)
	}

	f, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return nil, xerrors.Errorf("failed to create %s: %w", p, err)
	}

	return &dirWriter{File: f, path: p}, nil
}

// dirWriter writes to a hidden temporary file renamed to path on Close.
type dirWriter struct {
	*os.File
	path string
}

func (w *dirWriter) Close() error {
	if err := w.File.Close(); err != nil {
		os.Remove(w.File.Name())
		return xerrors.Errorf("failed to close %s: %w", w.path, err)
	}

	if err := os.Rename(w.File.Name(), w.path); err != nil {
		os.Remove(w.File.Name())
		return xerrors.Errorf("failed to commit %s: %w", w.path, err)
	}

	return nil
}

func (w *dirWriter) Abort() error {
	w.File.Close()

	if err := os.Remove(w.File.Name()); err != nil {
		return xerrors.Errorf("failed to discard %s: %w", w.path, err)
	}

	return nil
}

func (s *DirStorage) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}
