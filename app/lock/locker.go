package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/repository"
)

var ErrUnsupportedBackend = errors.New("unsupported lock backend")

// Kind tags the store technology a Backend is bound to.
type Kind string

const (
	KindRedis    Kind = "redis"
	KindMySQL    Kind = "mysql"
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

// ParseKind resolves a configured backend name into a Kind.
func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case KindRedis, KindMySQL, KindPostgres, KindSQLite:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, value)
	}
}

// Dialect returns the SQL dialect of a table-backed kind.
func (k Kind) Dialect() (repository.Dialect, bool) {
	switch k {
	case KindMySQL:
		return repository.MySQL, true
	case KindPostgres:
		return repository.Postgres, true
	case KindSQLite:
		return repository.SQLite, true
	default:
		return repository.Dialect{}, false
	}
}

// Lease is the proof of one successful Acquire. Releasing it never removes a
// lock taken by a later acquisition of the same identifier.
type Lease struct {
	Identifier string
	// Token is unique per acquisition on stores that can compare ownership.
	// An empty token releases by identifier.
	Token string
}

// Backend binds the single-instance lock operations to a shared store.
type Backend interface {
	// Acquire makes one non-blocking attempt to create the lock record.
	// It reports true only when this call created it.
	Acquire(ctx context.Context, identifier string, timeout time.Duration) (Lease, bool, error)
	// Release deletes the lock record of the lease. Releasing an absent lock is not an error.
	Release(ctx context.Context, lease Lease) error
	// IsAlreadyRunning reports whether a live lock record exists.
	// The timeout is the staleness threshold for stores without native expiry.
	IsAlreadyRunning(ctx context.Context, identifier string, timeout time.Duration) (bool, error)
	// Reset deletes the lock record regardless of its age or owner.
	Reset(ctx context.Context, identifier string) error
	// Kind returns the store technology of the backend.
	Kind() Kind
}

// Stores holds the store handles a backend may be built on.
type Stores struct {
	Redis *redis.Client
	DB    *sql.DB
}

type options struct {
	keyPrefix string
	clock     clockwork.Clock
	logger    logrus.FieldLogger
}

type Option func(*options)

// WithKeyPrefix sets the namespace prepended to Redis lock keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithClock sets the clock used for staleness checks.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithLogger sets the logger backends report lock decisions to.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		keyPrefix: DefaultKeyPrefix,
		clock:     clockwork.NewRealClock(),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the backend for kind from the given stores.
func New(kind Kind, stores Stores, opts ...Option) (Backend, error) {
	if kind == KindRedis {
		if stores.Redis == nil {
			return nil, fmt.Errorf("%w: redis client not configured", ErrUnsupportedBackend)
		}
		return NewRedisBackend(stores.Redis, opts...), nil
	}

	dialect, ok := kind.Dialect()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, kind)
	}
	if stores.DB == nil {
		return nil, fmt.Errorf("%w: %s database not configured", ErrUnsupportedBackend, kind)
	}
	return NewTableBackend(repository.NewLockRecordRepository(stores.DB, dialect), opts...), nil
}

// Provider defers backend construction until the first lock is taken.
type Provider struct {
	build func() (Backend, error)

	once    sync.Once
	backend Backend
	err     error
}

// NewProvider wraps a backend constructor; build runs at most once.
func NewProvider(build func() (Backend, error)) *Provider {
	return &Provider{build: build}
}

// NewProviderFor defers New(kind, stores, opts...) until first use.
func NewProviderFor(kind Kind, stores Stores, opts ...Option) *Provider {
	return NewProvider(func() (Backend, error) {
		return New(kind, stores, opts...)
	})
}

// Backend returns the backend, building it on the first call.
func (p *Provider) Backend() (Backend, error) {
	p.once.Do(func() {
		p.backend, p.err = p.build()
	})
	return p.backend, p.err
}
