package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source identifies one on-disk document by content. The fingerprint is the
// identity; the path is metadata.
type Source struct {
	Path        string
	Fingerprint string
	SizeBytes   int64
}

// FingerprintFile hashes a file's content with SHA-256 and returns its
// source descriptor. The stored path is absolute.
func FingerprintFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return Source{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	return Source{
		Path:        abs,
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
		SizeBytes:   size,
	}, nil
}

// FingerprintBytes hashes in-memory content the same way FingerprintFile
// hashes a file.
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
