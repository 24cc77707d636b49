package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainsession "github.com/leadforge/sessionkit/internal/domain/session"
	"github.com/leadforge/sessionkit/internal/ports"
)

// Fixed storage keys. Both keys exist in at most one backend at a time.
const (
	sessionRecordKey = "sessionkit.session"
	storageModeKey   = "sessionkit.storage-mode"
)

// StoreOptions groups dependencies for Store.
type StoreOptions struct {
	Durable   ports.Backend
	Ephemeral ports.Backend
	Logger    *slog.Logger
}

// Store pairs the durable and ephemeral backends and enforces the
// single-writer invariant: after any write exactly one backend holds the
// session record.
type Store struct {
	durable   ports.Backend
	ephemeral ports.Backend
	logger    *slog.Logger
}

// NewStore constructs a Store over the two backends.
func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		durable:   opts.Durable,
		ephemeral: opts.Ephemeral,
		logger:    logger,
	}
}

func (s *Store) backend(mode domainsession.Mode) ports.Backend {
	if mode == domainsession.ModeEphemeral {
		return s.ephemeral
	}
	return s.durable
}

func otherMode(mode domainsession.Mode) domainsession.Mode {
	if mode == domainsession.ModeEphemeral {
		return domainsession.ModeDurable
	}
	return domainsession.ModeEphemeral
}

// PreferredMode reads the persisted mode flag, checking the durable backend
// first. Unset or invalid flags default to durable.
func (s *Store) PreferredMode(ctx context.Context) domainsession.Mode {
	for _, backend := range []ports.Backend{s.durable, s.ephemeral} {
		raw, err := backend.Read(ctx, storageModeKey)
		if err != nil {
			if !errors.Is(err, ports.ErrNotFound) {
				s.logger.WarnContext(ctx, "read storage mode flag failed", "error", err)
			}
			continue
		}
		var mode domainsession.Mode
		if unmarshalErr := mode.UnmarshalText(raw); unmarshalErr == nil {
			return mode
		}
	}
	return domainsession.ModeDurable
}

// SetPreferredMode persists the mode flag so a later load knows which
// backend to prefer. Called whenever a new login or sign-up flow begins.
func (s *Store) SetPreferredMode(ctx context.Context, mode domainsession.Mode) error {
	if !mode.Valid() {
		mode = domainsession.ModeDurable
	}
	if err := s.backend(mode).Write(ctx, storageModeKey, []byte(mode)); err != nil {
		return fmt.Errorf("persist storage mode: %w", err)
	}
	if err := s.backend(otherMode(mode)).Delete(ctx, storageModeKey); err != nil {
		return fmt.Errorf("clear stale storage mode: %w", err)
	}
	return nil
}

// ReadPreferring reads the session record, preferring the flagged backend
// and falling back to the other. A record found only in the non-preferred
// backend is migrated to the preferred one as a repair step, so after one
// successful read exactly one backend holds the session. Malformed records
// are treated as absent.
func (s *Store) ReadPreferring(ctx context.Context) (*domainsession.Record, domainsession.Mode, bool) {
	mode := s.PreferredMode(ctx)

	if rec := s.readRecord(ctx, s.backend(mode)); rec != nil {
		return rec, mode, true
	}

	rec := s.readRecord(ctx, s.backend(otherMode(mode)))
	if rec == nil {
		return nil, mode, false
	}

	// Repair: move the record under the preferred backend.
	if err := s.Write(ctx, *rec, mode); err != nil {
		s.logger.WarnContext(ctx, "migrate session record failed", "error", err, "mode", string(mode))
	}
	return rec, mode, true
}

func (s *Store) readRecord(ctx context.Context, backend ports.Backend) *domainsession.Record {
	raw, err := backend.Read(ctx, sessionRecordKey)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.WarnContext(ctx, "read session record failed", "error", err)
		}
		return nil
	}
	rec := domainsession.DecodeRecord(raw)
	if rec == nil {
		// Corrupt persisted state heals on the next successful login.
		s.logger.WarnContext(ctx, "discarding malformed session record")
	}
	return rec
}

// Write stores the record in the chosen backend and clears the other, so
// the two backends can never hold divergent sessions.
func (s *Store) Write(ctx context.Context, rec domainsession.Record, mode domainsession.Mode) error {
	if !mode.Valid() {
		mode = domainsession.ModeDurable
	}
	if err := s.backend(mode).Write(ctx, sessionRecordKey, domainsession.EncodeRecord(rec)); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	if err := s.backend(otherMode(mode)).Delete(ctx, sessionRecordKey); err != nil {
		return fmt.Errorf("clear other backend: %w", err)
	}
	return nil
}

// Clear erases the session record from both backends unconditionally. The
// mode flag survives; the next login overwrites it anyway.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	if err := s.durable.Delete(ctx, sessionRecordKey); err != nil {
		errs = append(errs, fmt.Errorf("clear durable backend: %w", err))
	}
	if err := s.ephemeral.Delete(ctx, sessionRecordKey); err != nil {
		errs = append(errs, fmt.Errorf("clear ephemeral backend: %w", err))
	}
	return errors.Join(errs...)
}
