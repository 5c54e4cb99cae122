package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/changelog"
	"github.com/dmitrijs2005/gophcal/internal/client/repositories/snapshots"
	"github.com/dmitrijs2005/gophcal/internal/client/store"
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/domain"
	"github.com/dmitrijs2005/gophcal/internal/logging"
	"github.com/dmitrijs2005/gophcal/internal/storage"
)

// DefaultCalendarName is the name given to the calendar created on first use.
const DefaultCalendarName = "default"

// Cipher seals and opens blobs; *cryptox.Context satisfies it.
type Cipher interface {
	storage.Encrypter
	storage.Decrypter
}

// CalendarService owns the device calendar and the log of its pending
// changes. Every event mutation is recorded in the log and persisted, sealed
// by the device cipher, in the snapshots repository.
type CalendarService struct {
	mu     sync.Mutex
	store  *store.Store
	cipher Cipher
	logger logging.Logger

	cal *domain.Calendar
	log *changelog.Log
}

func NewCalendarService(s *store.Store, c Cipher, logger logging.Logger) *CalendarService {
	return &CalendarService{
		store:  s,
		cipher: c,
		logger: logger,
		cal:    domain.NewCalendar(DefaultCalendarName, "", true),
		log:    changelog.New(),
	}
}

// Load restores the calendar and pending log saved by a previous run. Missing
// snapshots leave the fresh state in place.
func (s *CalendarService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal := domain.NewCalendar(DefaultCalendarName, "", true)
	if err := s.loadSnapshot(ctx, snapshots.NameCalendar, cal); err != nil {
		return err
	}
	if cal.Days == nil {
		cal.Days = make(map[string][]domain.Event)
	}

	log := changelog.New()
	if err := s.loadSnapshot(ctx, snapshots.NameLog, log); err != nil {
		return err
	}

	s.cal, s.log = cal, log
	s.logger.Debug(ctx, "calendar loaded", "calendar", cal.ID, "pending", log.Len())
	return nil
}

func (s *CalendarService) loadSnapshot(ctx context.Context, name string, v any) error {
	snap, err := s.store.Snapshots.Get(ctx, name)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := storage.Load(bytes.NewReader(snap.Data), s.cipher, v); err != nil {
		return fmt.Errorf("load %s snapshot: %w", name, err)
	}
	return nil
}

// Save persists the calendar and pending log in one transaction.
func (s *CalendarService) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// saveLocked writes both snapshots plus whatever extra does, atomically.
// Callers hold s.mu.
func (s *CalendarService) saveLocked(ctx context.Context, extra ...func(context.Context, *store.Repositories) error) error {
	var calBuf, logBuf bytes.Buffer
	if err := storage.Save(&calBuf, s.cipher, s.cal); err != nil {
		return fmt.Errorf("seal calendar: %w", err)
	}
	if err := storage.Save(&logBuf, s.cipher, s.log); err != nil {
		return fmt.Errorf("seal log: %w", err)
	}

	return s.store.InTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		if err := r.Snapshots.Put(ctx, snapshots.NameCalendar, calBuf.Bytes()); err != nil {
			return err
		}
		if err := r.Snapshots.Put(ctx, snapshots.NameLog, logBuf.Bytes()); err != nil {
			return err
		}
		for _, fn := range extra {
			if err := fn(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddEvent stores a new event and records it in the log.
func (s *CalendarService) AddEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cal.Event(e.ID); ok {
		return domain.Event{}, fmt.Errorf("event %s: %w", e.ID, common.ErrAlreadyExists)
	}
	if err := s.cal.AddEvent(e); err != nil {
		return domain.Event{}, err
	}
	stored, _ := s.cal.Event(e.ID)
	if err := s.log.AddEntry(stored); err != nil {
		s.cal.RemoveEvent(e.ID)
		return domain.Event{}, err
	}

	s.logger.Info(ctx, "event added", "event", stored.ID, "start", stored.Start)
	return stored, s.saveLocked(ctx)
}

// UpdateEvent replaces an existing event. Whether the event is known remotely
// is kept from the stored copy, not taken from e.
func (s *CalendarService) UpdateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.cal.Event(e.ID)
	if !ok {
		return domain.Event{}, fmt.Errorf("event %s: %w", e.ID, common.ErrNotFound)
	}
	e.Synchronised = prev.Synchronised
	if err := s.cal.UpsertEvent(e); err != nil {
		return domain.Event{}, err
	}
	stored, _ := s.cal.Event(e.ID)
	if err := s.log.AddEntry(stored); err != nil {
		_ = s.cal.UpsertEvent(prev)
		return domain.Event{}, err
	}

	s.logger.Info(ctx, "event updated", "event", stored.ID)
	return stored, s.saveLocked(ctx)
}

// DeleteEvent removes an event and records the deletion.
func (s *CalendarService) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, ok := s.cal.RemoveEvent(id)
	if !ok {
		return fmt.Errorf("event %s: %w", id, common.ErrNotFound)
	}
	if err := s.log.AddDeletion(removed); err != nil {
		_ = s.cal.AddEvent(removed)
		return err
	}

	s.logger.Info(ctx, "event deleted", "event", id)
	return s.saveLocked(ctx)
}

// RepeatEvent adds n weekly copies of the event with the given id.
func (s *CalendarService) RepeatEvent(ctx context.Context, id string, n int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return nil, fmt.Errorf("%w: repeat count must be positive, got %d", common.ErrValidation, n)
	}
	e, ok := s.cal.Event(id)
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, common.ErrNotFound)
	}

	added, err := s.cal.RepeatEventNTimes(e, n)
	if err == nil {
		for _, r := range added {
			if err = s.log.AddEntry(r); err != nil {
				break
			}
		}
	}
	if err != nil {
		for _, r := range added {
			s.cal.RemoveEvent(r.ID)
			_ = s.log.AddDeletion(r)
		}
		return nil, err
	}

	s.logger.Info(ctx, "event repeated", "event", id, "copies", n)
	return added, s.saveLocked(ctx)
}

// Event returns the event with the given id.
func (s *CalendarService) Event(id string) (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal.Event(id)
}

// Events lists every event ordered by start.
func (s *CalendarService) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal.Events()
}

// EventsByDay lists the events starting on the UTC day of day.
func (s *CalendarService) EventsByDay(day time.Time) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, _ := s.cal.EventsByDay(day)
	return events
}

// Log returns the changes not yet pushed.
func (s *CalendarService) Log() []changelog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Entries()
}

// CalendarID identifies this device's calendar.
func (s *CalendarService) CalendarID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal.ID
}
