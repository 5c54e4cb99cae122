package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/client/store"
	"github.com/dmitrijs2005/gophcal/internal/cryptox"
	"github.com/dmitrijs2005/gophcal/internal/domain"
	"github.com/dmitrijs2005/gophcal/internal/logging"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "gophcal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newCipher(t *testing.T) *cryptox.Context {
	t.Helper()
	c, err := cryptox.New()
	require.NoError(t, err)
	return c
}

func newCalendarService(t *testing.T, c Cipher) *CalendarService {
	t.Helper()
	svc := NewCalendarService(newStore(t), c, logging.Nop())
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

func event(name string, start time.Time) domain.Event {
	e := domain.NewEvent(name, "", "")
	e.Start = start
	e.End = start.Add(time.Hour)
	return e
}
