package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/changelog"
	"github.com/dmitrijs2005/gophcal/internal/client/repositories/state"
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/cryptox"
	"github.com/dmitrijs2005/gophcal/internal/domain"
	"github.com/dmitrijs2005/gophcal/internal/logging"
	"github.com/dmitrijs2005/gophcal/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type device struct {
	cal  *CalendarService
	sync *SyncService
}

func newDevice(t *testing.T, id string, r remote.Store, c Cipher) *device {
	t.Helper()
	cal := newCalendarService(t, c)
	return &device{cal: cal, sync: NewSyncService(cal, r, c, id, logging.Nop())}
}

func newRemote(t *testing.T) remote.Store {
	t.Helper()
	r, err := remote.NewDirStore(t.TempDir())
	require.NoError(t, err)
	return r
}

func sharedCiphers(t *testing.T) (Cipher, Cipher) {
	t.Helper()
	a := newCipher(t)
	b, err := cryptox.FromKey(a.Key())
	require.NoError(t, err)
	return a, b
}

func clockAt(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		at := times[min(i, len(times)-1)]
		i++
		return at
	}
}

type failingRemote struct {
	remote.Store
	err error
}

func (f failingRemote) Put(ctx context.Context, name string, r io.Reader) error {
	return f.err
}

func TestSyncService_PushEmpty(t *testing.T) {
	d := newDevice(t, "laptop", newRemote(t), newCipher(t))
	n, err := d.sync.Push(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncService_PushThenPull(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	ca, cb := sharedCiphers(t)
	laptop := newDevice(t, "laptop", r, ca)
	phone := newDevice(t, "phone", r, cb)

	e, err := laptop.cal.AddEvent(ctx, event("standup", t0))
	require.NoError(t, err)

	n, err := laptop.sync.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, laptop.cal.Log())

	pushed, ok := laptop.cal.Event(e.ID)
	require.True(t, ok)
	assert.True(t, pushed.Synchronised)

	names, err := r.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, LogName("laptop", 1), names[0])
	assert.Equal(t, "snapshots/laptop.cal", names[1])

	n, err = phone.sync.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := phone.cal.Event(e.ID)
	require.True(t, ok)
	assert.Equal(t, "standup", got.Name)
	assert.True(t, got.Synchronised)
	assert.Empty(t, phone.cal.Log(), "pulled changes are not re-published")

	n, err = phone.sync.Pull(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "cursor skips applied logs")
}

func TestSyncService_UpdateAndDeletePropagate(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	ca, cb := sharedCiphers(t)
	laptop := newDevice(t, "laptop", r, ca)
	phone := newDevice(t, "phone", r, cb)

	keep, err := laptop.cal.AddEvent(ctx, event("keep", t0))
	require.NoError(t, err)
	drop, err := laptop.cal.AddEvent(ctx, event("drop", t0.Add(time.Hour)))
	require.NoError(t, err)
	_, _, err = laptop.sync.Sync(ctx)
	require.NoError(t, err)
	_, err = phone.sync.Pull(ctx)
	require.NoError(t, err)
	require.Len(t, phone.cal.Events(), 2)

	keep.Name = "kept and renamed"
	_, err = laptop.cal.UpdateEvent(ctx, keep)
	require.NoError(t, err)
	require.NoError(t, laptop.cal.DeleteEvent(ctx, drop.ID))

	log := laptop.cal.Log()
	require.Len(t, log, 2)
	assert.Equal(t, changelog.Update, log[0].Type)
	assert.Equal(t, changelog.Delete, log[1].Type)

	_, err = laptop.sync.Push(ctx)
	require.NoError(t, err)
	n, err := phone.sync.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := phone.cal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "kept and renamed", events[0].Name)
}

func TestSyncService_PullSkipsOwnLogs(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, "laptop", newRemote(t), newCipher(t))

	_, err := d.cal.AddEvent(ctx, event("standup", t0))
	require.NoError(t, err)
	_, err = d.sync.Push(ctx)
	require.NoError(t, err)

	n, err := d.sync.Pull(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncService_PullOrdersByEntryTime(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	base := newCipher(t)
	share := func() Cipher {
		c, err := cryptox.FromKey(base.Key())
		require.NoError(t, err)
		return c
	}

	// "zeta" lists after "alpha" but writes earlier.
	zeta := newDevice(t, "zeta", r, base)
	alpha := newDevice(t, "alpha", r, share())
	reader := newDevice(t, "reader", r, share())

	zeta.cal.log = changelog.New(changelog.WithClock(clockAt(t0, t0.Add(time.Minute))))
	alpha.cal.log = changelog.New(changelog.WithClock(clockAt(t0.Add(2 * time.Minute))))

	e, err := zeta.cal.AddEvent(ctx, event("draft", t0))
	require.NoError(t, err)
	_, err = zeta.sync.Push(ctx)
	require.NoError(t, err)
	_, err = alpha.sync.Pull(ctx)
	require.NoError(t, err)

	e.Name = "zeta edit"
	_, err = zeta.cal.UpdateEvent(ctx, e)
	require.NoError(t, err)
	e.Name = "alpha edit"
	_, err = alpha.cal.UpdateEvent(ctx, e)
	require.NoError(t, err)

	_, err = alpha.sync.Push(ctx)
	require.NoError(t, err)
	_, err = zeta.sync.Push(ctx)
	require.NoError(t, err)

	n, err := reader.sync.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, ok := reader.cal.Event(e.ID)
	require.True(t, ok)
	assert.Equal(t, "alpha edit", got.Name)
}

func TestSyncService_PullWithWrongKeyFails(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	laptop := newDevice(t, "laptop", r, newCipher(t))
	stranger := newDevice(t, "stranger", r, newCipher(t))

	_, err := laptop.cal.AddEvent(ctx, event("private", t0))
	require.NoError(t, err)
	_, err = laptop.sync.Push(ctx)
	require.NoError(t, err)

	n, err := stranger.sync.Pull(ctx)
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)
	assert.Zero(t, n)
	assert.Empty(t, stranger.cal.Events())

	_, err = stranger.cal.store.State.Get(ctx, state.KeyPullCursor)
	require.ErrorIs(t, err, common.ErrNotFound, "cursor must not advance")
}

func TestSyncService_PushFailureRestoresLog(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("share offline")
	d := newDevice(t, "laptop", failingRemote{Store: newRemote(t), err: boom}, newCipher(t))

	e, err := d.cal.AddEvent(ctx, event("standup", t0))
	require.NoError(t, err)
	before := d.cal.Log()

	n, err := d.sync.Push(ctx)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n)
	assert.Equal(t, before, d.cal.Log())

	got, ok := d.cal.Event(e.ID)
	require.True(t, ok)
	assert.False(t, got.Synchronised)

	// Edits made while offline still coalesce into the restored Create.
	e.Name = "standup (moved)"
	_, err = d.cal.UpdateEvent(ctx, e)
	require.NoError(t, err)
	log := d.cal.Log()
	require.Len(t, log, 1)
	assert.Equal(t, changelog.Create, log[0].Type)
}

func TestSyncService_LogNumbersIgnoreClock(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	ca, cb := sharedCiphers(t)
	laptop := newDevice(t, "laptop", r, ca)
	phone := newDevice(t, "phone", r, cb)

	// The second edit is stamped an hour before the first.
	laptop.cal.log = changelog.New(changelog.WithClock(clockAt(t0.Add(time.Hour), t0)))

	first, err := laptop.cal.AddEvent(ctx, event("first", t0))
	require.NoError(t, err)
	_, err = laptop.sync.Push(ctx)
	require.NoError(t, err)
	n, err := phone.sync.Pull(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	second, err := laptop.cal.AddEvent(ctx, event("second", t0.Add(time.Hour)))
	require.NoError(t, err)
	_, err = laptop.sync.Push(ctx)
	require.NoError(t, err)

	names, err := r.List(ctx, logsPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{LogName("laptop", 1), LogName("laptop", 2)}, names)

	n, err = phone.sync.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, id := range []string{first.ID, second.ID} {
		_, ok := phone.cal.Event(id)
		assert.True(t, ok, id)
	}
}

func TestSyncService_FailedPushKeepsLogNumber(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	d := newDevice(t, "laptop", failingRemote{Store: r, err: errors.New("offline")}, newCipher(t))

	_, err := d.cal.AddEvent(ctx, event("standup", t0))
	require.NoError(t, err)
	_, err = d.sync.Push(ctx)
	require.Error(t, err)

	d.sync.remote = r
	_, err = d.sync.Push(ctx)
	require.NoError(t, err)

	names, err := r.List(ctx, logsPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{LogName("laptop", 2)}, names)
}

func TestSyncService_PullRejectsInvalidEntry(t *testing.T) {
	ctx := context.Background()
	r := newRemote(t)
	ca, cb := sharedCiphers(t)
	laptop := newDevice(t, "laptop", r, ca)
	phone := newDevice(t, "phone", r, cb)

	// An event without a name never passes AddEvent; write it to the log directly.
	require.NoError(t, laptop.cal.log.AddEntry(domain.Event{ID: "nameless", Start: t0, End: t0.Add(time.Hour)}))
	_, err := laptop.cal.AddEvent(ctx, event("standup", t0))
	require.NoError(t, err)
	_, err = laptop.sync.Push(ctx)
	require.NoError(t, err)

	n, err := phone.sync.Pull(ctx)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorContains(t, err, "nameless")
	assert.Zero(t, n)
	assert.Empty(t, phone.cal.Events())

	_, err = phone.cal.store.State.Get(ctx, state.KeyPullCursor)
	require.ErrorIs(t, err, common.ErrNotFound, "cursor must not advance")

	n, err = phone.sync.Pull(ctx)
	require.ErrorIs(t, err, common.ErrValidation, "the bad log is retried")
	assert.Zero(t, n)
}

func TestLogName(t *testing.T) {
	a := LogName("laptop", 2)
	b := LogName("laptop", 10)
	assert.Equal(t, "logs/laptop/00000000000000000002.log", a)
	assert.Less(t, a, b)

	dev, ok := logDevice(b)
	require.True(t, ok)
	assert.Equal(t, "laptop", dev)

	for _, name := range []string{"logs/laptop.log", "logs//1.log", "logs/a/b/1.log", "snapshots/a.cal", "logs/a/1.tmp"} {
		_, ok := logDevice(name)
		assert.False(t, ok, name)
	}
}
