package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/logging"
	"dashvault/internal/services"
)

// Reconciler maps mounted volumes to device records and folds reformatted
// cards back into their history.
type Reconciler struct {
	store  *catalog.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "identity"),
	}
}

// Register resolves a mounted volume to a device record, creating one when
// the card has never been seen. Resolution order:
//
//  1. The card's marker file, when readable, is authoritative.
//  2. A device matching the volume UID resolves the card directly. A lost
//     marker is restored best-effort; a record that never received one
//     adopts this card and the marker is written.
//  3. Otherwise a new device is created with a fresh token, and a marker is
//     written when the media allows it.
//
// The returned bool reports whether a new device record was created.
func (r *Reconciler) Register(ctx context.Context, mountpoint, volumeUID, label string) (*catalog.Device, bool, error) {
	if cardID, ok := ReadMarker(mountpoint); ok {
		device, err := r.store.DeviceByCardID(ctx, cardID)
		if err != nil {
			return nil, false, err
		}
		if device != nil {
			if err := r.store.TouchDevice(ctx, device.ID, volumeUID, label); err != nil {
				return nil, false, err
			}
			device, err = r.store.GetDevice(ctx, device.ID)
			return device, false, err
		}
		// Marker exists but the catalog has no matching record (for
		// example a rebuilt database). Recreate the record around it.
		device, err = r.store.InsertDevice(ctx, cardID, uuid.NewString(), volumeUID, label)
		if err != nil {
			return nil, false, err
		}
		r.logger.Info("recreated device for orphaned marker",
			logging.String(logging.FieldDevice, cardID))
		return device, true, nil
	}

	if volumeUID != "" {
		device, err := r.store.DeviceByVolumeUID(ctx, volumeUID)
		if err != nil {
			return nil, false, err
		}
		if device != nil {
			if device.CardID != "" {
				// The card is known but its marker went missing (wiped
				// or unreadable). The volume identity is still exact, so
				// restore the marker best-effort instead of forking a
				// duplicate record.
				if err := WriteMarker(mountpoint, device.CardID); err != nil {
					r.logger.Warn("marker restore failed, keeping volume identity",
						logging.String(logging.FieldDevice, device.CardID),
						logging.Error(err))
				}
			} else {
				cardID := NewCardID()
				if err := WriteMarker(mountpoint, cardID); err != nil {
					r.logger.Warn("marker write failed, keeping volume identity",
						logging.String(logging.FieldDevice, device.Token),
						logging.Error(err))
				} else if err := r.store.SetDeviceCardID(ctx, device.ID, cardID); err != nil {
					return nil, false, err
				}
			}
			if err := r.store.TouchDevice(ctx, device.ID, volumeUID, label); err != nil {
				return nil, false, err
			}
			device, err = r.store.GetDevice(ctx, device.ID)
			return device, false, err
		}
	}

	cardID := NewCardID()
	if err := WriteMarker(mountpoint, cardID); err != nil {
		// Read-only media; the record lives on volume identity alone.
		r.logger.Warn("marker write failed for new card", logging.Error(err))
		cardID = ""
	}
	device, err := r.store.InsertDevice(ctx, cardID, uuid.NewString(), volumeUID, label)
	if err != nil {
		return nil, false, err
	}
	r.logger.Info("registered new device",
		logging.Int64(logging.FieldJobID, device.ID),
		logging.String(logging.FieldDevice, device.Token))
	return device, true, nil
}

// MaybeMergeLegacy folds a freshly created device record into an older one
// when their file inventories overlap enough to be the same physical card.
// Only a fresh record (first_seen ≈ last_seen) is ever merged: an
// established record's history is never rewritten by coincidence. Records
// already carrying an identity token are never merge targets: the token is
// proof of a distinct card regardless of shared footage.
//
// Among qualifying records the one sharing the most footage wins; the merge
// winner is then whichever of the pair has the earlier first_seen. Device
// files and clip provenance move to the winner, which takes the candidate's
// volume identity (and its marker, when the winner has none); the loser is
// deleted. Returns the surviving device and whether a merge happened.
func (r *Reconciler) MaybeMergeLegacy(ctx context.Context, candidate *catalog.Device) (*catalog.Device, bool, error) {
	tolerance := time.Duration(r.cfg.Merge.NewRecordToleranceSeconds) * time.Second
	if !candidate.IsFresh(tolerance) {
		return candidate, false, nil
	}

	candidateFPs, err := r.store.FingerprintsByDevice(ctx, candidate.ID)
	if err != nil {
		return nil, false, err
	}
	if len(candidateFPs) == 0 {
		return candidate, false, nil
	}

	devices, err := r.store.ListDevices(ctx)
	if err != nil {
		return nil, false, err
	}

	var match *catalog.Device
	matchOverlap := 0
	for _, other := range devices {
		if other.ID == candidate.ID {
			continue
		}
		// A record carrying its own identity token is a distinct card;
		// shared footage alone must never fuse two tokened cards.
		if other.CardID != "" {
			continue
		}
		otherFPs, err := r.store.FingerprintsByDevice(ctx, other.ID)
		if err != nil {
			return nil, false, err
		}
		overlap := 0
		for fp := range candidateFPs {
			if _, ok := otherFPs[fp]; ok {
				overlap++
			}
		}
		ratio := float64(overlap) / float64(len(candidateFPs))
		if overlap < r.cfg.Merge.MinOverlapCount || ratio < r.cfg.Merge.MinOverlapRatio {
			continue
		}
		// Prefer the record sharing the most footage with the candidate.
		if match == nil || overlap > matchOverlap {
			match = other
			matchOverlap = overlap
		}
	}
	if match == nil {
		return candidate, false, nil
	}

	winner, loser := match, candidate
	if candidate.FirstSeen.Before(match.FirstSeen) {
		winner, loser = candidate, match
	}

	movedFiles, err := r.store.ReparentDeviceFiles(ctx, loser.ID, winner.ID)
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "identity", "merge", "reparent files", err)
	}
	movedSources, err := r.store.ReparentClipSources(ctx, loser.ID, winner.ID)
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "identity", "merge", "reparent clip sources", err)
	}
	if err := r.store.DeleteDevice(ctx, loser.ID); err != nil {
		return nil, false, err
	}
	// The winner carries on under the candidate's current marker and
	// volume, but an existing token on the winner stays untouched.
	if winner.CardID == "" && candidate.CardID != "" {
		if err := r.store.SetDeviceCardID(ctx, winner.ID, candidate.CardID); err != nil {
			return nil, false, err
		}
	}
	if err := r.store.TouchDevice(ctx, winner.ID, candidate.VolumeUID, candidate.Label); err != nil {
		return nil, false, err
	}

	merged, err := r.store.GetDevice(ctx, winner.ID)
	if err != nil {
		return nil, false, err
	}
	r.logger.Info("merged reformatted card into existing device",
		logging.Int64("winner_id", winner.ID),
		logging.Int64("loser_id", loser.ID),
		logging.Int64("moved_files", movedFiles),
		logging.Int64("moved_sources", movedSources))
	return merged, true, nil
}
