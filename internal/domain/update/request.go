package update

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultBufferSize is the streaming buffer hint used when none is provided.
const DefaultBufferSize = 1024

var (
	// ErrURLRequired is returned when the request has no source URL.
	ErrURLRequired = errors.New("no target URL was specified")
	// ErrTargetRequired is returned when the request has no target path.
	ErrTargetRequired = errors.New("no output path was specified")
	// errUnsupportedScheme is returned for URLs that are not http or https.
	errUnsupportedScheme = errors.New("unsupported URL scheme")
	// errBadBufferSize is returned for non-positive buffer hints.
	errBadBufferSize = errors.New("buffer size must be positive")
)

// Request describes a single update transaction.
// It is built once by the CLI layer and never modified afterwards.
type Request struct {
	// URL is the source the new content is downloaded from.
	URL string
	// TargetPath is the file that is replaced, used as given (relative to the working directory).
	TargetPath string
	// BufferSize is the streaming buffer hint in bytes; it never caps the download size.
	BufferSize int
	// SkipBackup disables moving the existing target aside before writing.
	SkipBackup bool
	// KeepBackup keeps the backup file after a successful download.
	KeepBackup bool
	// RestartAfter launches the new executable after a successful download.
	RestartAfter bool
}

// Validate checks that the request can start a transaction.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrURLRequired
	}

	if strings.TrimSpace(r.TargetPath) == "" {
		return ErrTargetRequired
	}

	parsed, err := url.ParseRequestURI(r.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: %w", parsed.Scheme, errUnsupportedScheme)
	}

	if r.BufferSize < 0 {
		return fmt.Errorf("%d: %w", r.BufferSize, errBadBufferSize)
	}

	return nil
}

// EffectiveBufferSize returns the buffer hint, falling back to DefaultBufferSize.
func (r *Request) EffectiveBufferSize() int {
	if r.BufferSize <= 0 {
		return DefaultBufferSize
	}

	return r.BufferSize
}

// BackupSuffix is appended to the target path to name its backup.
const BackupSuffix = ".backup"

// BackupRecord links a target path to the sibling file holding its previous content.
// A record exists only while the backup file is on disk.
type BackupRecord struct {
	// TargetPath is the original location of the file.
	TargetPath string
	// BackupPath is where the previous content currently lives.
	BackupPath string
}

// BackupPathFor returns the backup location for the given target.
func BackupPathFor(targetPath string) string {
	return targetPath + BackupSuffix
}
