// Package output publishes rendered documents.
//
// A target is "-" (stdout), a file path, or an s3://bucket/key URL:
//
//	store, err := output.Open(ctx, "s3://reports/today.html")
//	if err != nil { ... }
//	where, err := store.Save(ctx, "text/html; charset=utf-8", body)
package output

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

// ErrTooLarge is returned when a document exceeds the size limit.
var ErrTooLarge = errors.New("output: document too large")

// ErrInvalidTarget is returned for an unusable target string.
var ErrInvalidTarget = errors.New("output: invalid target")

// Store is where a document goes.
type Store interface {
	// Save writes the document and returns where it went.
	Save(ctx context.Context, contentType string, r io.Reader) (location string, err error)
}

// Option configures Open.
type Option func(*options)

type options struct {
	maxSize  int64
	stdout   io.Writer
	s3Client S3API
}

// WithMaxSize limits the document size in bytes (0 = no limit).
func WithMaxSize(n int64) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithStdout replaces os.Stdout for the "-" target.
func WithStdout(w io.Writer) Option {
	return func(o *options) {
		o.stdout = w
	}
}

// WithS3Client sets the client used for s3:// targets. Without it a client
// is built from the AWS_* environment.
func WithS3Client(c S3API) Option {
	return func(o *options) {
		o.s3Client = c
	}
}

// Open returns the store for target. An empty target means stdout.
func Open(ctx context.Context, target string, opts ...Option) (Store, error) {
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case target == "" || target == "-":
		return &WriterStore{w: o.stdout, name: "stdout", maxSize: o.maxSize}, nil
	case strings.HasPrefix(target, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(target, "s3://"), "/")
		if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
			return nil, ErrInvalidTarget
		}
		client := o.s3Client
		if client == nil {
			client = NewS3Client(ctx)
		}
		return NewS3Store(client, bucket, key, o.maxSize), nil
	default:
		return NewDiskStore(target, o.maxSize), nil
	}
}

// WriterStore writes documents to an io.Writer.
type WriterStore struct {
	w       io.Writer
	name    string
	maxSize int64
}

// NewWriterStore returns a store writing to w.
func NewWriterStore(w io.Writer, name string) *WriterStore {
	return &WriterStore{w: w, name: name}
}

func (s *WriterStore) Save(_ context.Context, _ string, r io.Reader) (string, error) {
	body, err := readLimited(r, s.maxSize)
	if err != nil {
		return "", err
	}
	if _, err := s.w.Write(body); err != nil {
		return "", err
	}
	return s.name, nil
}

// readLimited reads r fully, failing with ErrTooLarge past max bytes.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max > 0 {
		r = io.LimitReader(r, max+1) // +1 to detect overflow
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if max > 0 && int64(len(body)) > max {
		return nil, ErrTooLarge
	}
	return body, nil
}
