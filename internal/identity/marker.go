package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MarkerFilename is the hidden file at a card's root holding its identity.
const MarkerFilename = ".dashvault_id"

// ReadMarker returns the card identity stored on a mounted volume. A missing
// file, unreadable media, or malformed contents all report no marker; card
// reads must never fail a scan.
func ReadMarker(mountpoint string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(mountpoint, MarkerFilename))
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(value); err != nil {
		return "", false
	}
	return value, true
}

// WriteMarker stores a card identity on a mounted volume. The marker is
// write-once: an existing valid marker is never overwritten.
func WriteMarker(mountpoint, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid card id %q: %w", id, err)
	}
	if existing, ok := ReadMarker(mountpoint); ok {
		if existing == id {
			return nil
		}
		return fmt.Errorf("card already carries identity %s", existing)
	}
	path := filepath.Join(mountpoint, MarkerFilename)
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// NewCardID generates a fresh card identity.
func NewCardID() string {
	return uuid.NewString()
}
