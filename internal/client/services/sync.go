package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophcal/internal/changelog"
	"github.com/dmitrijs2005/gophcal/internal/client/repositories/state"
	"github.com/dmitrijs2005/gophcal/internal/client/store"
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/domain"
	"github.com/dmitrijs2005/gophcal/internal/logging"
	"github.com/dmitrijs2005/gophcal/internal/remote"
	"github.com/dmitrijs2005/gophcal/internal/storage"
)

const (
	logsPrefix      = "logs/"
	snapshotsPrefix = "snapshots/"
)

// SyncService exchanges change logs with other devices through a remote
// store. Each device writes only under its own id; readers keep a per-device
// cursor of the last blob applied.
type SyncService struct {
	cal    *CalendarService
	remote remote.Store
	cipher Cipher
	device string
	logger logging.Logger
}

func NewSyncService(cal *CalendarService, r remote.Store, c Cipher, deviceID string, logger logging.Logger) *SyncService {
	return &SyncService{
		cal:    cal,
		remote: r,
		cipher: c,
		device: deviceID,
		logger: logger.With("device", deviceID),
	}
}

// LogName is the remote name of the seq-th log blob pushed by device. Names of
// one device sort in push order.
func LogName(device string, seq uint64) string {
	return fmt.Sprintf("%s%s/%020d.log", logsPrefix, device, seq)
}

// SnapshotName is the remote name of device's calendar snapshot.
func SnapshotName(device string) string {
	return snapshotsPrefix + device + ".cal"
}

// Push publishes the pending log and reports how many entries it carried.
// A log that cannot be delivered is put back so the next push retries it.
//
// Blobs are numbered by a per-device counter that is stored locally before
// the upload, so a number is never reused even when the upload fails. If the
// local save fails after a successful upload, the stored log still holds the
// pushed entries and the next push publishes them again under a new number.
// Peers apply entries as upserts and removals, so the replay changes nothing.
func (s *SyncService) Push(ctx context.Context) (int, error) {
	s.cal.mu.Lock()
	defer s.cal.mu.Unlock()

	entries := s.cal.log.Drain()
	if len(entries) == 0 {
		return 0, nil
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		s.cal.log.Restore(entries)
		return 0, err
	}

	batch := changelog.New()
	batch.Restore(entries)

	var buf bytes.Buffer
	if err := storage.Save(&buf, s.cipher, batch); err != nil {
		s.cal.log.Restore(entries)
		return 0, fmt.Errorf("seal log: %w", err)
	}

	name := LogName(s.device, seq)
	if err := s.remote.Put(ctx, name, &buf); err != nil {
		s.cal.log.Restore(entries)
		return 0, fmt.Errorf("put %s: %w", name, err)
	}

	for _, e := range entries {
		if e.Type != changelog.Delete {
			s.cal.cal.MarkEventSynchronised(e.ObjID)
		}
	}

	buf.Reset()
	if err := storage.Save(&buf, s.cipher, s.cal.cal); err == nil {
		err = s.remote.Put(ctx, SnapshotName(s.device), &buf)
		if err != nil {
			s.logger.Warn(ctx, "calendar snapshot not published", "error", err)
		}
	}

	s.logger.Info(ctx, "log pushed", "blob", name, "entries", len(entries))
	if err := s.cal.saveLocked(ctx); err != nil {
		return len(entries), fmt.Errorf("save after push: %w", err)
	}
	return len(entries), nil
}

// Pull applies the logs other devices pushed since the last pull and reports
// how many entries were applied.
//
// Any blob that fails to decrypt, and any entry that does not carry a valid
// event, aborts the pull before anything is applied and the cursor stays where
// it was.
func (s *SyncService) Pull(ctx context.Context) (int, error) {
	cursor, err := s.loadCursor(ctx)
	if err != nil {
		return 0, err
	}

	names, err := s.remote.List(ctx, logsPrefix)
	if err != nil {
		return 0, fmt.Errorf("list logs: %w", err)
	}

	var incoming []remoteEntry
	for _, name := range names {
		device, ok := logDevice(name)
		if !ok || device == s.device || name <= cursor[device] {
			continue
		}

		entries, err := s.fetch(ctx, name)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			re, err := decodeEntry(e)
			if err != nil {
				return 0, fmt.Errorf("%s: entry for %s: %w", name, e.ObjID, err)
			}
			incoming = append(incoming, re)
		}
		cursor[device] = name
	}

	if len(incoming) == 0 {
		return 0, nil
	}

	// Blobs are listed device by device; interleave them by entry time.
	slices.SortStableFunc(incoming, func(a, b remoteEntry) int {
		return a.Time.Compare(b.Time)
	})

	s.cal.mu.Lock()
	defer s.cal.mu.Unlock()

	applied := 0
	for _, e := range incoming {
		if e.Type == changelog.Delete {
			s.cal.cal.RemoveEvent(e.ObjID)
		} else if err := s.cal.cal.UpsertEvent(e.event); err != nil {
			return applied, fmt.Errorf("apply %s: %w", e.ObjID, err)
		}
		applied++
	}

	raw, err := json.Marshal(cursor)
	if err != nil {
		return applied, fmt.Errorf("%w: cursor: %w", common.ErrSerialization, err)
	}
	err = s.cal.saveLocked(ctx, func(ctx context.Context, r *store.Repositories) error {
		return r.State.Set(ctx, state.KeyPullCursor, raw)
	})
	if err != nil {
		return applied, fmt.Errorf("save after pull: %w", err)
	}

	s.logger.Info(ctx, "logs pulled", "entries", applied)
	return applied, nil
}

func (s *SyncService) fetch(ctx context.Context, name string) ([]changelog.Entry, error) {
	rc, err := s.remote.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer rc.Close()

	batch := changelog.New()
	if err := storage.Load(rc, s.cipher, batch); err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return batch.Entries(), nil
}

// remoteEntry is a pulled entry with its event already decoded.
type remoteEntry struct {
	changelog.Entry
	event domain.Event
}

// decodeEntry checks that e can be replayed onto a calendar.
func decodeEntry(e changelog.Entry) (remoteEntry, error) {
	re := remoteEntry{Entry: e}
	switch e.Type {
	case changelog.Create, changelog.Update:
		ev, err := domain.UnmarshalEvent(e.Data)
		if err != nil {
			return re, err
		}
		if ev.ID != e.ObjID {
			return re, fmt.Errorf("%w: carries event %s", common.ErrValidation, ev.ID)
		}
		if err := ev.Validate(); err != nil {
			return re, err
		}
		ev.Synchronised = true
		re.event = ev
	case changelog.Delete:
	default:
		return re, fmt.Errorf("%w: unknown entry type %q", common.ErrDeserialization, e.Type)
	}
	return re, nil
}

// nextSeq reserves the next log number. Callers hold s.cal.mu.
func (s *SyncService) nextSeq(ctx context.Context) (uint64, error) {
	var seq uint64

	raw, err := s.cal.store.State.Get(ctx, state.KeyPushSeq)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		if seq, err = strconv.ParseUint(string(raw), 10, 64); err != nil {
			return 0, fmt.Errorf("%w: push sequence: %w", common.ErrDeserialization, err)
		}
	}

	seq++
	if err := s.cal.store.State.Set(ctx, state.KeyPushSeq, []byte(strconv.FormatUint(seq, 10))); err != nil {
		return 0, fmt.Errorf("reserve log number: %w", err)
	}
	return seq, nil
}

func (s *SyncService) loadCursor(ctx context.Context) (map[string]string, error) {
	cursor := make(map[string]string)

	raw, err := s.cal.store.State.Get(ctx, state.KeyPullCursor)
	if errors.Is(err, common.ErrNotFound) {
		return cursor, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("%w: cursor: %w", common.ErrDeserialization, err)
	}
	return cursor, nil
}

// logDevice extracts the device id from "logs/<device>/<n>.log".
func logDevice(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, logsPrefix)
	if !ok || path.Ext(rest) != ".log" {
		return "", false
	}
	device, file, ok := strings.Cut(rest, "/")
	if !ok || device == "" || strings.Contains(file, "/") {
		return "", false
	}
	return device, true
}

// Sync pulls, then pushes.
func (s *SyncService) Sync(ctx context.Context) (pulled, pushed int, err error) {
	if pulled, err = s.Pull(ctx); err != nil {
		return pulled, 0, err
	}
	pushed, err = s.Push(ctx)
	return pulled, pushed, err
}
