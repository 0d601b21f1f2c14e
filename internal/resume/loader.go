// internal/resume/loader.go
package resume

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
)

// FileLoader resolves a resume reference as a path on disk. The version is
// a digest of the content, so a re-uploaded resume gets a new version and
// stale match scores are never reused.
type FileLoader struct {
	baseDir string
}

func NewFileLoader(baseDir string) *FileLoader {
	return &FileLoader{baseDir: baseDir}
}

func (l *FileLoader) Load(_ context.Context, ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("resume reference is empty")
	}

	path := ref
	if l.baseDir != "" && !strings.HasPrefix(ref, "/") {
		path = l.baseDir + "/" + ref
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read resume %s: %w", ref, err)
	}

	digest := sha256.Sum256(raw)
	version := fmt.Sprintf("%x", digest[:8])
	return version, string(raw), nil
}
