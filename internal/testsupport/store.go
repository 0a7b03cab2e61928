package testsupport

import (
	"context"
	"testing"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewDevice creates a device record for tests using the provided store.
func NewDevice(t testing.TB, store *catalog.Store, cardID, token string) *catalog.Device {
	t.Helper()

	device, err := store.InsertDevice(context.Background(), cardID, token, "VOL-"+token, "TESTCARD")
	if err != nil {
		t.Fatalf("store.InsertDevice: %v", err)
	}
	return device
}

// NewDeviceFile records a pending device file for tests.
func NewDeviceFile(t testing.TB, store *catalog.Store, deviceID int64, relPath, fingerprint string) *catalog.DeviceFile {
	t.Helper()

	file, err := store.UpsertDeviceFile(context.Background(), &catalog.DeviceFile{
		DeviceID:    deviceID,
		RelPath:     relPath,
		SizeBytes:   1024,
		ModTime:     time.Now().UTC(),
		Fingerprint: fingerprint,
	})
	if err != nil {
		t.Fatalf("store.UpsertDeviceFile: %v", err)
	}
	return file
}
