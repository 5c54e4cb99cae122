package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/google/uuid"
)

// DefaultEventLength is how long a freshly created event lasts.
const DefaultEventLength = time.Hour

// Event is a single entry of a calendar.
type Event struct {
	ID       string    `json:"id" validate:"required"`
	Name     string    `json:"name" validate:"required"`
	Desc     string    `json:"desc"`
	Location string    `json:"location"`
	Start    time.Time `json:"start" validate:"required"`
	End      time.Time `json:"end" validate:"required,gtefield=Start"`

	// Synchronised is set once a remote peer is known to hold the event.
	Synchronised bool `json:"synchronised"`
}

// NewEvent starts now and lasts DefaultEventLength.
func NewEvent(name, desc, location string) Event {
	start := time.Now().UTC()
	return Event{
		ID:       uuid.NewString(),
		Name:     name,
		Desc:     desc,
		Location: location,
		Start:    start,
		End:      start.Add(DefaultEventLength),
	}
}

// Repeat returns a copy shifted by d with a new id. The copy has the same
// length and is not synchronised.
func (e Event) Repeat(d time.Duration) Event {
	r := e
	r.ID = uuid.NewString()
	r.Start = e.Start.Add(d)
	r.End = r.Start.Add(e.End.Sub(e.Start))
	r.Synchronised = false
	return r
}

func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Validate checks that the event has an id, a name and does not end before
// it starts.
func (e Event) Validate() error {
	return validateStruct(e)
}

func (e Event) GetID() string        { return e.ID }
func (e Event) IsSynchronised() bool { return e.Synchronised }

// Marshal returns the JSON text of the event.
func (e Event) Marshal() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalEvent parses the output of Event.Marshal.
func UnmarshalEvent(s string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return Event{}, fmt.Errorf("%w: event: %w", common.ErrDeserialization, err)
	}
	return e.normalized(), nil
}

// normalized keeps times in UTC without a monotonic reading so that events
// compare equal after a round trip through JSON.
func (e Event) normalized() Event {
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	return e
}
