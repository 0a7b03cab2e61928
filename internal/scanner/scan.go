package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dashvault/internal/services"
)

// File describes one recording discovered on a card, with everything the
// catalog needs to upsert a device file row.
type File struct {
	RelPath     string
	SizeBytes   int64
	ModTime     time.Time
	Fingerprint string
	Camera      string
	Mode        string
	RecordedAt  *time.Time
}

// Scan walks the card's recording directories and returns every video file
// found, sorted by relative path. Unreadable entries are skipped; only a card
// with no recognizable layout is an error.
func Scan(mountpoint string) ([]File, error) {
	roots := recordingRoots(mountpoint)
	if len(roots) == 0 {
		return nil, services.Wrap(
			services.ErrValidation,
			"scanner",
			"scan",
			"no dashcam recording directories found under "+mountpoint,
			nil,
		)
	}

	var files []File
	for _, root := range roots {
		mode := ModeForDir(filepath.Base(root))
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if entry != nil && entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !IsVideoFile(entry.Name()) {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return nil
			}
			rel, err := filepath.Rel(mountpoint, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			camera, recordedAt := ParseFilename(entry.Name())
			files = append(files, File{
				RelPath:     rel,
				SizeBytes:   info.Size(),
				ModTime:     info.ModTime(),
				Fingerprint: Fingerprint(rel, info.Size(), info.ModTime()),
				Camera:      camera,
				Mode:        mode,
				RecordedAt:  recordedAt,
			})
			return nil
		})
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "scanner", "scan", "walking "+root, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
