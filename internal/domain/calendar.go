package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

// Week is the distance between repeats made by RepeatEventNTimes.
const Week = 7 * 24 * time.Hour

// Calendar groups events by the UTC day they start on.
type Calendar struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
	Desc string `json:"desc"`
	// Sync tells whether the calendar takes part in synchronisation at all.
	Sync         bool               `json:"sync"`
	Synchronised bool               `json:"synchronised"`
	Days         map[string][]Event `json:"days"`
}

func NewCalendar(name, desc string, sync bool) *Calendar {
	return &Calendar{
		ID:   uuid.NewString(),
		Name: name,
		Desc: desc,
		Sync: sync,
		Days: make(map[string][]Event),
	}
}

// DayKey is the Days key for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// AddEvent stores e under the day of its start. The event is validated first.
func (c *Calendar) AddEvent(e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if c.Days == nil {
		c.Days = make(map[string][]Event)
	}

	e = e.normalized()
	key := DayKey(e.Start)
	c.Days[key] = append(c.Days[key], e)
	return nil
}

// UpsertEvent replaces the event with e's id, moving it to another day if its
// start changed, or adds it when absent.
func (c *Calendar) UpsertEvent(e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	c.RemoveEvent(e.ID)
	return c.AddEvent(e)
}

// DeleteEvent removes e by id. It reports whether anything was removed.
func (c *Calendar) DeleteEvent(e Event) bool {
	_, ok := c.RemoveEvent(e.ID)
	return ok
}

// RemoveEvent removes the event with the given id and returns it. Days left
// without events are dropped.
func (c *Calendar) RemoveEvent(id string) (Event, bool) {
	for key, events := range c.Days {
		i := slices.IndexFunc(events, func(e Event) bool { return e.ID == id })
		if i < 0 {
			continue
		}
		removed := events[i]
		events = slices.Delete(events, i, i+1)
		if len(events) == 0 {
			delete(c.Days, key)
		} else {
			c.Days[key] = events
		}
		return removed, true
	}
	return Event{}, false
}

// Event looks an event up by id.
func (c *Calendar) Event(id string) (Event, bool) {
	for _, events := range c.Days {
		for _, e := range events {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Event{}, false
}

// Events returns every event ordered by start time, then id.
func (c *Calendar) Events() []Event {
	var out []Event
	for _, events := range c.Days {
		out = append(out, events...)
	}
	sortEvents(out)
	return out
}

// EventsByDay returns the events starting on the UTC day of day. The bool is
// false when the day holds no events.
func (c *Calendar) EventsByDay(day time.Time) ([]Event, bool) {
	events, ok := c.Days[DayKey(day)]
	if !ok {
		return nil, false
	}
	out := slices.Clone(events)
	sortEvents(out)
	return out, true
}

// RepeatEventNTimes adds n copies of e, the i-th one i weeks later, and
// returns them.
func (c *Calendar) RepeatEventNTimes(e Event, n int) ([]Event, error) {
	var added []Event
	for i := 1; i <= n; i++ {
		r := e.Repeat(time.Duration(i) * Week)
		if err := c.AddEvent(r); err != nil {
			return added, err
		}
		added = append(added, r.normalized())
	}
	return added, nil
}

// SetSynchronised marks the calendar and every event in it.
func (c *Calendar) SetSynchronised(v bool) {
	c.Synchronised = v
	for _, events := range c.Days {
		for i := range events {
			events[i].Synchronised = v
		}
	}
}

// MarkEventSynchronised flags a single event. It reports whether the event
// exists.
func (c *Calendar) MarkEventSynchronised(id string) bool {
	for _, events := range c.Days {
		for i := range events {
			if events[i].ID == id {
				events[i].Synchronised = true
				return true
			}
		}
	}
	return false
}

func (c *Calendar) Validate() error {
	return validateStruct(c)
}

func (c *Calendar) GetID() string        { return c.ID }
func (c *Calendar) IsSynchronised() bool { return c.Synchronised }

func (c *Calendar) Marshal() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalCalendar parses the output of Calendar.Marshal.
func UnmarshalCalendar(s string) (*Calendar, error) {
	var c Calendar
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("%w: calendar: %w", common.ErrDeserialization, err)
	}
	if c.Days == nil {
		c.Days = make(map[string][]Event)
	}
	for key, events := range c.Days {
		for i := range events {
			events[i] = events[i].normalized()
		}
		c.Days[key] = events
	}
	return &c, nil
}

func sortEvents(events []Event) {
	slices.SortFunc(events, func(a, b Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
