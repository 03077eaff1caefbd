// Package storage resolves an IIIF identifier to image bytes. It is a
// read-only counterpart to the teacher's adapters/storage package: the
// server never writes images, only serves them, so Put/Delete are dropped
// and Open/Stat carry metadata (size, modification time); the
// modification time drives conditional requests and Last-Modified.
package storage

import (
	"context"
	"io"
	"time"

	apperrors "github.com/deepzoom/iiifd/apperrors"
)

// Object is a located image plus the metadata the service layer needs to
// answer conditional GETs and set response headers.
type Object struct {
	Name         string
	Size         int64
	LastModified time.Time
	Content      io.ReadCloser
}

// Adapter resolves an identifier to an Object. Implementations must be
// safe for concurrent use.
type Adapter interface {
	// Open returns the object named by identifier, or an
	// *apperrors.ServiceError with Category CategoryNotFound if it does
	// not exist.
	Open(ctx context.Context, identifier string) (*Object, error)

	// Stat is like Open but does not return Content; used by the service
	// layer's conditional-GET short-circuit (spec §4.5) to avoid opening
	// a file descriptor or S3 stream that will go unread.
	Stat(ctx context.Context, identifier string) (*Object, error)
}

// notFound builds the canonical apperrors.ErrNotFound-categorized error so
// the HTTP layer maps it to 404 regardless of which backend produced it.
func notFound(op string) error {
	return apperrors.New(apperrors.CategoryNotFound, op, apperrors.ErrNotFound)
}
