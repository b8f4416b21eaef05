// Package storage persists alert evidence (stills and clips) behind a
// narrow blob-store interface.
//
// Object paths follow {alertType}/{year}/{month}/{day}/{timestamp}.{ext}.
// Retention is enforced by the retention janitor, not at write time.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Store is the blob-store edge consumed by the evidence path.
type Store interface {
	// Put writes the object and returns its path.
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// URL resolves an access URL for a stored object, valid for ttl.
	URL(path string, ttl time.Duration) (string, error)
}

// ObjectPath generates the dated storage path for one evidence object.
func ObjectPath(alertType, ext string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s/%d/%02d/%02d/%d.%s",
		alertType, now.Year(), now.Month(), now.Day(), now.UnixNano(), ext)
}
