package volumes

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"dashvault/internal/services"
)

// Volume describes one mounted block device.
type Volume struct {
	Device     string
	Mountpoint string
	Label      string
	FSType     string
	UUID       string
	Serial     string
	Removable  bool
}

// UID returns the most stable identity available for the volume: the
// filesystem UUID when present, then the device serial, then the mountpoint.
// A reformat rewrites the UUID, which is why card identity does not rest on
// this alone.
func (v Volume) UID() string {
	if v.UUID != "" {
		return v.UUID
	}
	if v.Serial != "" {
		return v.Serial
	}
	return v.Mountpoint
}

const lsblkColumns = "PATH,MOUNTPOINT,LABEL,FSTYPE,UUID,SERIAL,RM"

// List enumerates mounted block devices using lsblk.
func List(ctx context.Context, binary string, timeout time.Duration) ([]Volume, error) {
	if binary == "" {
		binary = "lsblk"
	}
	lsblkCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		lsblkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := exec.CommandContext(lsblkCtx, binary, "-P", "-o", lsblkColumns).Output()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "volumes", "lsblk", "enumerate block devices", err)
	}
	return ParseLSBLK(string(output)), nil
}

// ParseLSBLK parses lsblk -P key="value" output into volumes. Devices
// without a mountpoint are skipped.
func ParseLSBLK(output string) []Volume {
	var volumes []Volume
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		data := parseKeyValueLine(line)
		if len(data) == 0 {
			continue
		}
		if data["MOUNTPOINT"] == "" {
			continue
		}
		volumes = append(volumes, Volume{
			Device:     data["PATH"],
			Mountpoint: data["MOUNTPOINT"],
			Label:      data["LABEL"],
			FSType:     data["FSTYPE"],
			UUID:       data["UUID"],
			Serial:     data["SERIAL"],
			Removable:  data["RM"] == "1",
		})
	}
	return volumes
}

func parseKeyValueLine(line string) map[string]string {
	result := make(map[string]string)
	rest := line
	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		eq := strings.Index(rest, "=")
		if eq < 0 {
			break
		}
		key := rest[:eq]
		rest = rest[eq+1:]
		if !strings.HasPrefix(rest, "\"") {
			break
		}
		rest = rest[1:]
		end := strings.Index(rest, "\"")
		if end < 0 {
			break
		}
		result[key] = rest[:end]
		rest = rest[end+1:]
	}
	return result
}

// FindByMountpoint returns the volume mounted at the given path, or an error
// when nothing is mounted there.
func FindByMountpoint(vols []Volume, mountpoint string) (Volume, error) {
	for _, v := range vols {
		if v.Mountpoint == mountpoint {
			return v, nil
		}
	}
	return Volume{}, fmt.Errorf("%w: no volume mounted at %s", services.ErrUnavailable, mountpoint)
}
