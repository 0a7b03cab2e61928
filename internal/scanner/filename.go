package scanner

import (
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cameraTokens maps filename tokens to the canonical camera name. Vendors
// disagree on spelling; single letters come from two-channel firmwares.
var cameraTokens = map[string]string{
	"front": "front",
	"f":     "front",
	"a":     "front",
	"rear":  "rear",
	"back":  "rear",
	"r":     "rear",
	"b":     "rear",
	"int":   "interior",
	"inside": "interior",
}

var titleCaser = cases.Title(language.English)

// ParseFilename extracts the camera and recorded-at timestamp from a dashcam
// filename such as FRONT_20240107_123045.mp4 or 20240107_123045_R.mp4.
// Missing pieces are returned as zero values, never errors; filenames from
// unknown firmwares still import with whatever could be recognized.
func ParseFilename(name string) (camera string, recordedAt *time.Time) {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	tokens := strings.Split(base, "_")

	var datePart, timePart string
	for _, token := range tokens {
		switch {
		case len(token) == 8 && isDigits(token) && datePart == "":
			datePart = token
		case len(token) == 6 && isDigits(token) && datePart != "" && timePart == "":
			timePart = token
		default:
			if mapped, ok := cameraTokens[strings.ToLower(token)]; ok && camera == "" {
				camera = mapped
			}
		}
	}

	if datePart != "" && timePart != "" {
		if ts, err := time.ParseInLocation("20060102150405", datePart+timePart, time.Local); err == nil {
			recordedAt = &ts
		}
	}
	return camera, recordedAt
}

// ModeForDir maps a recording directory name to its mode identifier, e.g.
// cont_rec to "continuous" and motion_timelapse_rec to "motion timelapse".
func ModeForDir(dir string) string {
	switch dir {
	case "cont_rec":
		return "continuous"
	case "evt_rec":
		return "event"
	case "manual_rec":
		return "manual"
	case "parking_rec":
		return "parking"
	case "motion_timelapse_rec":
		return "motion timelapse"
	case "sos_rec":
		return "emergency"
	default:
		return strings.ReplaceAll(strings.TrimSuffix(dir, "_rec"), "_", " ")
	}
}

// ModeLabel renders a mode identifier for display ("motion timelapse" to
// "Motion Timelapse").
func ModeLabel(mode string) string {
	if mode == "" {
		return ""
	}
	return titleCaser.String(mode)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
