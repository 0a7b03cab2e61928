package scanner

import (
	"os"
	"path/filepath"
	"strings"
)

// recordingDirs are the directory names dashcams use for each recording
// mode, searched at the card root and one level below (some firmwares nest
// them under DCIM or a vendor directory).
var recordingDirs = []string{
	"cont_rec",
	"evt_rec",
	"manual_rec",
	"parking_rec",
	"motion_timelapse_rec",
	"sos_rec",
}

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
}

// IsVideoFile reports whether the filename carries a recognized video
// extension.
func IsVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// IsDashcamCard reports whether the mounted volume looks like a dashcam SD
// card, judged purely by the presence of at least one recording directory.
func IsDashcamCard(mountpoint string) bool {
	return len(recordingRoots(mountpoint)) > 0
}

// recordingRoots returns the absolute paths of recording directories present
// on the card, checking the root and each immediate subdirectory.
func recordingRoots(mountpoint string) []string {
	var roots []string
	for _, dir := range recordingDirs {
		if path := existingDir(filepath.Join(mountpoint, dir)); path != "" {
			roots = append(roots, path)
		}
	}
	if len(roots) > 0 {
		return roots
	}

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, dir := range recordingDirs {
			if path := existingDir(filepath.Join(mountpoint, entry.Name(), dir)); path != "" {
				roots = append(roots, path)
			}
		}
	}
	return roots
}

func existingDir(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return ""
	}
	return path
}
