package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fingerprint identifies a file version by relative path, size, and
// modification time. It never reads file contents, so a full-card scan only
// costs directory walks and stat calls. Any rename, rewrite, or truncation
// produces a new fingerprint.
func Fingerprint(relPath string, sizeBytes int64, mtime time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", relPath, sizeBytes, mtime.UTC().Unix())))
	return hex.EncodeToString(sum[:])
}
