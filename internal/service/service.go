package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/juju/clock"

	"github.com/thoreinstein/savekeep/internal/config"
	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/fileset"
	"github.com/thoreinstein/savekeep/internal/journal"
	"github.com/thoreinstein/savekeep/internal/logging"
	"github.com/thoreinstein/savekeep/internal/naming"
	"github.com/thoreinstein/savekeep/internal/paths"
	"github.com/thoreinstein/savekeep/internal/registry"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

// Operation names, used in error prefixes and journal events.
const (
	OpAdd            = "add"
	OpList           = "list"
	OpGet            = "get"
	OpRemove         = "remove"
	OpFiles          = "files"
	OpAddFiles       = "add-files"
	OpRemoveFile     = "remove-file"
	OpBackup         = "backup"
	OpBackups        = "backups"
	OpSnapshot       = "snapshot"
	OpRestore        = "restore"
	OpRename         = "rename"
	OpRemoveSnapshot = "remove-snapshot"
	OpPrune          = "prune"
	OpVerify         = "verify"
	OpHistory        = "history"
)

// Service implements the savekeep backend contract.
type Service struct {
	store    paths.Store
	registry *registry.Registry
	files    *fileset.Manager
	engine   *snapshot.Engine
	journal  *journal.Journal
	logger   *slog.Logger

	safety  bool
	timeout time.Duration
}

// Option configures a Service.
type Option func(*options)

type options struct {
	logger *slog.Logger
	clock  clock.Clock
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the clock used for entry timestamps, snapshot ids and
// journal events.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New opens the store described by cfg. The store directory is created if
// needed. Close releases the journal.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{
		logger: logging.NewDiscard(),
		clock:  clock.WallClock,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, errors.Mark(errors.Wrap(errs[0], "validating config"), errors.ErrInvalidConfig)
	}
	store := paths.Store(cfg.StoreDir)
	if err := paths.EnsureDir(store.Entries(), paths.DefaultDirPerm); err != nil {
		return nil, errors.IO(err, "creating store")
	}

	norm := naming.Normalizer{Fold: cfg.FoldCase()}
	reg := registry.New(store.Index(),
		registry.WithNormalizer(norm),
		registry.WithClock(o.clock),
	)
	s := &Service{
		store:    store,
		registry: reg,
		files:    fileset.NewManager(reg),
		engine: snapshot.NewEngine(string(store),
			snapshot.WithRetention(cfg.Retention),
			snapshot.WithNormalizer(norm),
			snapshot.WithClock(o.clock),
			snapshot.WithLogger(o.logger),
		),
		logger:  o.logger,
		safety:  cfg.PreRestoreBackup,
		timeout: cfg.OperationTimeout,
	}

	if cfg.Journal {
		j, err := journal.Open(store.Journal(), journal.WithClock(o.clock))
		if err != nil {
			return nil, errors.Wrap(err, "opening journal")
		}
		s.journal = j
	}
	return s, nil
}

// Close releases the journal.
func (s *Service) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// Root returns the root storage directory.
func (s *Service) Root() string {
	return string(s.store)
}

// Retention returns the number of newest snapshots protected per entry.
func (s *Service) Retention() int {
	return s.engine.Retention()
}

// call runs fn with panic recovery and prefixes any error with the
// operation and entry name.
func (s *Service) call(op, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("operation panicked", "op", op, "entry", name, "panic", r, "stack", string(debug.Stack()))
			err = errors.Newf("internal error: %v", r)
		}
		if err != nil {
			if name != "" {
				err = errors.Wrapf(err, "%s %q", op, name)
			} else {
				err = errors.Wrap(err, op)
			}
		}
	}()
	return fn()
}

// record appends a journal event for a finished mutating call. Journal
// failures are logged and never fail the operation.
func (s *Service) record(ctx context.Context, op, name, id string, opErr error, format string, args ...any) {
	if s.journal == nil {
		return
	}
	ev := journal.Event{Op: op, Entry: name, Snapshot: id, Outcome: journal.OutcomeOK}
	if opErr != nil {
		ev.Outcome = journal.OutcomeError
		ev.Message = opErr.Error()
	} else if format != "" {
		ev.Message = fmt.Sprintf(format, args...)
	}
	// Record even when the caller's context is already done
	if _, err := s.journal.Record(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("journal write failed", "op", op, "entry", name, "error", err)
	}
}

// withTimeout applies operation_timeout to long-running calls.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// source builds what a backup of the entry captures.
func source(e *registry.Entry) snapshot.Source {
	return snapshot.Source{Name: e.Name, Root: e.Root, Files: e.Files}
}
