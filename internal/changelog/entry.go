package changelog

import (
	"encoding/json"
	"fmt"
	"time"
)

// Content is what a domain object exposes to take part in logging: a stable
// id, whether a remote counterpart already knows it, and its serialized form.
type Content interface {
	GetID() string
	IsSynchronised() bool
	Marshal() (string, error)
}

// EntryType is the lifecycle event an Entry records.
type EntryType string

const (
	Create EntryType = "Create"
	Update EntryType = "Update"
	Delete EntryType = "Delete"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case Create, Update, Delete:
		return true
	}
	return false
}

func (t *EntryType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !EntryType(s).Valid() {
		return fmt.Errorf("unknown entry type %q", s)
	}
	*t = EntryType(s)
	return nil
}

// Entry is a single record of the change log.
type Entry struct {
	// Time is informational: it orders entries written by one device and is
	// not a cross-device causality clock.
	Time  time.Time `json:"time"`
	Type  EntryType `json:"entry_type"`
	ObjID string    `json:"obj_id"`
	// Data is the object snapshot at entry time; empty for Delete.
	Data string `json:"data,omitempty"`
}
