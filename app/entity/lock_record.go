package entity

import "time"

// LockRecord is a row of the timestamp lock table.
type LockRecord struct {
	Key        string
	AcquiredAt time.Time
	TTL        time.Duration
}
