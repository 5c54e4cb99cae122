package snapshots

import (
	"context"
	"time"
)

// Names of the snapshots the client keeps.
const (
	NameCalendar = "calendar"
	NameLog      = "log"
)

type Snapshot struct {
	Name      string
	Data      []byte
	UpdatedAt time.Time
}

// Repository stores blobs by name. Get returns common.ErrNotFound for a
// missing name.
type Repository interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) (*Snapshot, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Snapshot, error)
}
