// Package storage defines where encoded recordings are written and read
// back. A FileStore is either a local directory or an S3-compatible bucket;
// the encoder CLI picks one from a Location such as "takes/a.opus" or
// "s3://voice/takes/a.opus".
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. The file becomes visible
	// under its name, replacing any previous content, once the returned
	// WriteCloser is closed. Parent directories are created automatically.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Size returns the size of the named file in bytes.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Size(ctx context.Context, path string) (int64, error)
}

// Location is a parsed recording location.
type Location struct {
	// Bucket is set for s3:// locations.
	Bucket string
	// Path is the object key for S3 and a filesystem path otherwise.
	Path string
}

// ParseLocation parses "s3://bucket/key" or a local path.
func ParseLocation(s string) (Location, error) {
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		if s == "" {
			return Location{}, fmt.Errorf("storage: empty location")
		}
		return Location{Path: s}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("storage: invalid s3 location %q", s)
	}
	return Location{Bucket: bucket, Path: key}, nil
}

// IsS3 reports whether l names an object in a bucket.
func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Path
	}
	return l.Path
}
