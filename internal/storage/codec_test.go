package storage_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/changelog"
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/cryptox"
	"github.com/dmitrijs2005/gophcal/internal/domain"
	"github.com/dmitrijs2005/gophcal/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEncrypter struct{ err error }

func (f failingEncrypter) Encrypt([]byte) ([]byte, error) { return nil, f.err }

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func newCrypto(t *testing.T) *cryptox.Context {
	t.Helper()
	c, err := cryptox.New()
	require.NoError(t, err)
	return c
}

func sampleCalendar(t *testing.T) *domain.Calendar {
	t.Helper()
	cal := domain.NewCalendar("work", "office", true)
	start := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	e := domain.Event{ID: "e1", Name: "planning", Location: "room 2", Start: start, End: start.Add(time.Hour)}
	require.NoError(t, cal.AddEvent(e))
	_, err := cal.RepeatEventNTimes(e, 2)
	require.NoError(t, err)
	require.NoError(t, cal.AddEvent(domain.NewEvent("now", "", "")))
	return cal
}

func TestSaveLoad_CalendarRoundTrip(t *testing.T) {
	c := newCrypto(t)
	cal := sampleCalendar(t)

	var buf bytes.Buffer
	require.NoError(t, storage.Save(&buf, c, cal))
	assert.NotContains(t, buf.String(), "planning", "sink must only see ciphertext")

	got, err := storage.LoadAs[*domain.Calendar](&buf, c)
	require.NoError(t, err)
	if diff := cmp.Diff(cal, got); diff != "" {
		t.Errorf("calendar mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoad_LogRoundTrip(t *testing.T) {
	c := newCrypto(t)
	l := changelog.New()
	cal := sampleCalendar(t)
	for _, e := range cal.Events() {
		require.NoError(t, l.AddEntry(e))
	}
	require.NoError(t, l.AddEntry(cal))

	var buf bytes.Buffer
	require.NoError(t, storage.Save(&buf, c, l))

	restored := changelog.New()
	require.NoError(t, storage.Load(&buf, c, restored))
	if diff := cmp.Diff(l.Entries(), restored.Entries()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, restored.CountCreates())
}

func TestLoad_CrossKeyFails(t *testing.T) {
	k1 := newCrypto(t)
	k2 := newCrypto(t)

	var buf bytes.Buffer
	require.NoError(t, storage.Save(&buf, k1, sampleCalendar(t)))

	_, err := storage.LoadAs[*domain.Calendar](&buf, k2)
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)
}

func TestLoad_Tampered(t *testing.T) {
	c := newCrypto(t)
	var buf bytes.Buffer
	require.NoError(t, storage.Save(&buf, c, map[string]int{"a": 1}))

	blob := buf.Bytes()
	blob[len(blob)-1] ^= 0x01

	var v map[string]int
	err := storage.Load(bytes.NewReader(blob), c, &v)
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)
	assert.Nil(t, v)
}

func TestLoad_EmptySourceIsMalformed(t *testing.T) {
	c := newCrypto(t)
	var v map[string]int
	err := storage.Load(bytes.NewReader(nil), c, &v)
	require.ErrorIs(t, err, common.ErrMalformed)
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestLoad_TruncatedBlobIsMalformed(t *testing.T) {
	c := newCrypto(t)
	var v map[string]int
	err := storage.Load(bytes.NewReader(make([]byte, c.NonceSize()-1)), c, &v)
	require.ErrorIs(t, err, common.ErrMalformed)
}

func TestLoad_ReadFailure(t *testing.T) {
	var v map[string]int
	err := storage.Load(failingReader{}, newCrypto(t), &v)
	require.ErrorIs(t, err, common.ErrIO)
}

func TestLoad_UndecodablePlaintext(t *testing.T) {
	c := newCrypto(t)
	blob, err := c.Encrypt([]byte("not json"))
	require.NoError(t, err)

	var v map[string]int
	err = storage.Load(bytes.NewReader(blob), c, &v)
	require.ErrorIs(t, err, common.ErrDeserialization)
}

func TestSave_Errors(t *testing.T) {
	c := newCrypto(t)

	t.Run("serialization", func(t *testing.T) {
		w := &failingWriter{}
		err := storage.Save(w, c, make(chan int))
		require.ErrorIs(t, err, common.ErrSerialization)
		assert.Zero(t, w.calls, "nothing is written")
	})

	t.Run("encryption", func(t *testing.T) {
		w := &failingWriter{}
		err := storage.Save(w, failingEncrypter{err: errors.New("hsm offline")}, 1)
		require.ErrorIs(t, err, common.ErrEncryption)
		assert.Zero(t, w.calls)
	})

	t.Run("encryption error kept as is", func(t *testing.T) {
		err := storage.Save(io.Discard, failingEncrypter{err: common.ErrEncryption}, 1)
		require.ErrorIs(t, err, common.ErrEncryption)
	})

	t.Run("write", func(t *testing.T) {
		w := &failingWriter{}
		err := storage.Save(w, c, 1)
		require.ErrorIs(t, err, common.ErrIO)
		assert.Equal(t, 1, w.calls, "blob is written in one call")
	})

	t.Run("short write", func(t *testing.T) {
		err := storage.Save(shortWriter{}, c, 1)
		require.ErrorIs(t, err, common.ErrIO)
		require.ErrorIs(t, err, io.ErrShortWrite)
	})
}

func TestSaveFileLoadFile(t *testing.T) {
	c := newCrypto(t)
	path := filepath.Join(t.TempDir(), "calendar.bin")
	cal := sampleCalendar(t)

	require.NoError(t, storage.SaveFile(path, c, cal))

	var got domain.Calendar
	require.NoError(t, storage.LoadFile(path, c, &got))
	if diff := cmp.Diff(cal, &got); diff != "" {
		t.Errorf("calendar mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	var v map[string]int
	err := storage.LoadFile(filepath.Join(t.TempDir(), "absent.bin"), newCrypto(t), &v)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "calendar.bin")
	err := storage.SaveFile(path, newCrypto(t), 1)
	require.ErrorIs(t, err, common.ErrIO)
}
