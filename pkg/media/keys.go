package media

import (
	mathrand "math/rand"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewKey returns a collision-resistant object key for a file called name,
// keeping its extension: uploads/2025/03/01JQ...XYZ.png.
func NewKey(prefix, name string, now time.Time) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy).String()
	entropyMu.Unlock()

	return strings.Join([]string{
		prefix,
		now.UTC().Format("2006"),
		now.UTC().Format("01"),
		strings.ToLower(id) + extension(name),
	}, "/")
}

// extension returns the lowercased extension of name, limited to simple
// alphanumeric suffixes.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}

	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}

	return ext
}

// detectContentType returns the declared type, falling back to a MIME
// type based on file extension.
func detectContentType(name, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
