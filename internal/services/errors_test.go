package services_test

import (
	"errors"
	"strings"
	"testing"

	"dashvault/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "prober", "ffprobe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"prober", "ffprobe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "importer", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsPermanent(t *testing.T) {
	validationErr := services.Wrap(services.ErrValidation, "ingest", "decode", "invalid payload", nil)
	if !services.IsPermanent(validationErr) {
		t.Fatalf("expected validation error to be permanent: %v", validationErr)
	}

	toolErr := services.Wrap(services.ErrExternalTool, "thumbs", "ffmpeg", "exit 1", errors.New("io"))
	if services.IsPermanent(toolErr) {
		t.Fatalf("expected tool error to be retriable: %v", toolErr)
	}

	if services.IsPermanent(nil) {
		t.Fatal("expected nil error to be non-permanent")
	}
}
