// Package storage mirrors produced contracts to S3-compatible object storage.
//
// The local processed directory stays the source of truth; the archive is a
// copy for retention outside the host.
package storage

import (
	"context"
)

// Archiver copies a local file to object storage under key.
type Archiver interface {
	Archive(ctx context.Context, key, path, contentType string) error
}
