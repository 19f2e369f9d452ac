package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/entity"
	"github.com/vibast-solutions/ms-go-taskguard/app/repository"
)

// TableBackend keeps locks as rows of a relational table and treats rows older
// than the timeout as abandoned.
//
// Reclaiming a stale row is not atomic: two workers that both read the same
// stale row may both delete it, and whichever inserts second is denied only if
// the first insert has already landed. Release deletes by key without checking
// acquired_at, so a run whose row was reclaimed as stale removes the
// reclaimer's row when it finishes. Pick timeouts well above task runtime.
type TableBackend struct {
	records *repository.LockRecordRepository
	clock   clockwork.Clock
	log     logrus.FieldLogger
}

// NewTableBackend constructs a timestamp-table lock backend.
func NewTableBackend(records *repository.LockRecordRepository, opts ...Option) *TableBackend {
	o := newOptions(opts)
	return &TableBackend{
		records: records,
		clock:   o.clock,
		log:     o.logger.WithField("backend", records.Dialect().Name),
	}
}

// Kind returns the kind matching the table's dialect.
func (b *TableBackend) Kind() Kind {
	return Kind(b.records.Dialect().Name)
}

// EnsureSchema creates the lock table if needed.
func (b *TableBackend) EnsureSchema(ctx context.Context) error {
	if err := b.records.CreateTable(ctx); err != nil {
		return fmt.Errorf("create lock table: %w", err)
	}
	return nil
}

// Acquire inserts a placeholder row and falls back to a staleness check when
// the key already exists.
func (b *TableBackend) Acquire(ctx context.Context, identifier string, timeout time.Duration) (Lease, bool, error) {
	log := b.log.WithField("key", identifier)
	log.Debugf("Timeout %s", timeout)

	now := b.clock.Now().UTC()
	record := entity.LockRecord{Key: identifier, AcquiredAt: now, TTL: timeout}

	err := b.records.Insert(ctx, record)
	if err == nil {
		log.Debug("Got lock")
		return Lease{Identifier: identifier}, true, nil
	}
	if !b.records.Dialect().IsUniqueViolation(err) {
		return Lease{}, false, fmt.Errorf("acquire lock %s: %w", identifier, err)
	}

	acquiredAt, err := b.records.FindAcquiredAt(ctx, identifier)
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		// Released between our insert and the read; reclaim below.
	case err != nil:
		return Lease{}, false, fmt.Errorf("read lock %s: %w", identifier, err)
	case now.Sub(acquiredAt) < timeout:
		log.Debug("Another instance is running")
		return Lease{}, false, nil
	default:
		log.WithField("acquired_at", acquiredAt).Debug("Timeout expired, stale lock found, releasing lock")
	}

	if err := b.records.Delete(ctx, identifier); err != nil {
		return Lease{}, false, fmt.Errorf("delete stale lock %s: %w", identifier, err)
	}
	if err := b.records.Insert(ctx, record); err != nil {
		if b.records.Dialect().IsUniqueViolation(err) {
			log.Debug("Stale lock reclaimed by another instance")
			return Lease{}, false, nil
		}
		return Lease{}, false, fmt.Errorf("acquire lock %s: %w", identifier, err)
	}

	log.Debug("Got lock")
	return Lease{Identifier: identifier}, true, nil
}

// Release deletes the lock row.
func (b *TableBackend) Release(ctx context.Context, lease Lease) error {
	b.log.WithField("key", lease.Identifier).Debug("Releasing lock")
	if err := b.records.Delete(ctx, lease.Identifier); err != nil {
		return fmt.Errorf("release lock %s: %w", lease.Identifier, err)
	}
	return nil
}

// IsAlreadyRunning reports whether a row exists that is younger than timeout.
func (b *TableBackend) IsAlreadyRunning(ctx context.Context, identifier string, timeout time.Duration) (bool, error) {
	acquiredAt, err := b.records.FindAcquiredAt(ctx, identifier)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", identifier, err)
	}
	return b.clock.Now().UTC().Sub(acquiredAt) < timeout, nil
}

// Reset deletes the lock row whatever its age.
func (b *TableBackend) Reset(ctx context.Context, identifier string) error {
	if err := b.records.Delete(ctx, identifier); err != nil {
		return fmt.Errorf("reset lock %s: %w", identifier, err)
	}
	return nil
}
