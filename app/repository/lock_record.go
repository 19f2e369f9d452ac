package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-taskguard/app/entity"
)

var ErrRecordNotFound = errors.New("lock record not found")

type LockRecordRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewLockRecordRepository constructs a repository over the task_locks table.
func NewLockRecordRepository(db *sql.DB, dialect Dialect) *LockRecordRepository {
	return &LockRecordRepository{db: db, dialect: dialect}
}

// Dialect returns the SQL dialect the repository was built with.
func (r *LockRecordRepository) Dialect() Dialect {
	return r.dialect
}

// CreateTable creates the task_locks table if it does not exist yet.
func (r *LockRecordRepository) CreateTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, r.dialect.createTable)
	return err
}

// Insert stores a new lock record. A duplicate key surfaces as the driver error.
func (r *LockRecordRepository) Insert(ctx context.Context, record entity.LockRecord) error {
	const query = `
		INSERT INTO task_locks (lock_key, acquired_at, ttl_seconds)
		VALUES (?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(query), record.Key, record.AcquiredAt.UnixMilli(), int64(record.TTL/time.Second))
	return err
}

// FindAcquiredAt returns the acquisition time of the record stored under key.
func (r *LockRecordRepository) FindAcquiredAt(ctx context.Context, key string) (time.Time, error) {
	const query = `
		SELECT acquired_at
		FROM task_locks
		WHERE lock_key = ?
	`
	var acquiredAt int64
	if err := r.db.QueryRowContext(ctx, r.dialect.rebind(query), key).Scan(&acquiredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrRecordNotFound
		}
		return time.Time{}, err
	}
	return time.UnixMilli(acquiredAt).UTC(), nil
}

// Delete removes the record stored under key. Missing records are not an error.
func (r *LockRecordRepository) Delete(ctx context.Context, key string) error {
	const query = `
		DELETE FROM task_locks
		WHERE lock_key = ?
	`
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(query), key)
	return err
}
