package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EvidenceDir is the subdirectory holding uploaded evidence files.
const EvidenceDir = "evidence"

// LocalEvidenceStore writes uploaded evidence bytes under the workspace data
// directory and returns file URLs. Deployments backed by object storage
// provide their own implementation of the same interface.
type LocalEvidenceStore struct {
	root string
}

func NewLocalEvidenceStore(root string) *LocalEvidenceStore {
	return &LocalEvidenceStore{root: root}
}

// UploadEvidence stores data under a timestamped file name derived from name
// and returns its file URL. The name is flattened to a single path element so
// callers cannot escape the evidence directory.
func (s *LocalEvidenceStore) UploadEvidence(_ context.Context, name string, data []byte) (string, error) {
	dir := filepath.Join(s.root, FieldtaskDir, EvidenceDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create evidence directory: %w", err)
	}

	base := sanitizeName(name)
	if base == "" {
		return "", fmt.Errorf("evidence name cannot be empty")
	}
	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), base)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write evidence file: %w", err)
	}
	return "file://" + path, nil
}

// sanitizeName flattens a caller-supplied name to one safe path element.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, name)
	return strings.Trim(name, "-.")
}
