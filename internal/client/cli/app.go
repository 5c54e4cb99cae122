package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophcal/internal/client/config"
	"github.com/dmitrijs2005/gophcal/internal/client/services"
	"github.com/dmitrijs2005/gophcal/internal/client/store"
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/cryptox"
	"github.com/dmitrijs2005/gophcal/internal/filex"
	"github.com/dmitrijs2005/gophcal/internal/logging"
	"github.com/dmitrijs2005/gophcal/internal/remote"
	"github.com/spf13/cobra"
)

// EnvPassphrase holds the passphrase for non-interactive use.
const EnvPassphrase = config.EnvPrefix + "PASSPHRASE"

var errPassphraseMismatch = errors.New("passphrases do not match")

// App carries what the commands share: I/O, configuration, the logger and,
// once opened, the local store.
type App struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	getenv func(string) (string, bool)

	cfg    *config.Config
	logger logging.Logger
	store  *store.Store
}

func NewApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		getenv: os.LookupEnv,
		logger: logging.Nop(),
	}
}

// configure loads the configuration for cmd. It runs before every command.
func (a *App) configure(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(a.errOut, cfg.LogLevel, cfg.LogFormat).With("host", cfg.DeviceName)
	return nil
}

func (a *App) openStore(ctx context.Context) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if _, err := filex.EnsureDir(a.cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	st, err := store.InitDatabase(ctx, a.cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *App) keyService(ctx context.Context) (*services.KeyService, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	suite, err := cryptox.ParseSuite(a.cfg.Suite)
	if err != nil {
		return nil, err
	}
	return services.NewKeyService(st, suite), nil
}

// passphrase reads the passphrase from the environment or the terminal.
// With confirm the terminal prompt is repeated and both answers must match.
func (a *App) passphrase(confirm bool) ([]byte, error) {
	if v, ok := a.getenv(EnvPassphrase); ok && v != "" {
		return []byte(v), nil
	}

	p, err := GetPassword(a.errOut, "Passphrase: ")
	if err != nil {
		return nil, err
	}
	if !confirm {
		return p, nil
	}

	again, err := GetPassword(a.errOut, "Repeat passphrase: ")
	if err != nil {
		common.WipeByteArray(p)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if !bytes.Equal(p, again) {
		common.WipeByteArray(p)
		return nil, errPassphraseMismatch
	}
	return p, nil
}

// session is an unlocked device: its cipher, calendar and identity.
type session struct {
	cipher   *cryptox.Context
	calendar *services.CalendarService
	deviceID string
}

func (s *session) Close() {
	s.cipher.Wipe()
}

func (a *App) unlock(ctx context.Context) (*session, error) {
	ks, err := a.keyService(ctx)
	if err != nil {
		return nil, err
	}

	pass, err := a.passphrase(false)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pass)

	c, err := ks.Unlock(ctx, pass)
	if err != nil {
		return nil, err
	}
	deviceID, err := ks.DeviceID(ctx)
	if err != nil {
		c.Wipe()
		return nil, err
	}

	logger := a.logger.With("device", deviceID)
	cal := services.NewCalendarService(a.store, c, logger)
	if err := cal.Load(ctx); err != nil {
		c.Wipe()
		return nil, err
	}
	return &session{cipher: c, calendar: cal, deviceID: deviceID}, nil
}

func (a *App) syncService(ctx context.Context, s *session) (*services.SyncService, error) {
	r, err := remote.New(ctx, a.cfg.Remote)
	if err != nil {
		return nil, err
	}
	return services.NewSyncService(s.calendar, r, s.cipher, s.deviceID, a.logger), nil
}
