package artifact

import (
	"context"
	"net/url"
	"os"
	"strings"
)

// ReadFile returns the full contents of an artifact or source file. The
// location may be a plain path or a file:// URI. Read errors are returned
// as-is.
func ReadFile(ctx context.Context, location string) ([]byte, error) {
	return os.ReadFile(Path(location))
}

// Path converts a file:// URI to a filesystem path; anything else is
// returned unchanged.
func Path(location string) string {
	if !strings.HasPrefix(location, "file://") {
		return location
	}
	u, err := url.Parse(location)
	if err != nil || u.Path == "" {
		return location
	}
	return u.Path
}
