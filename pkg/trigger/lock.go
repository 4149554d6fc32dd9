package trigger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TenantLocker provides the per-tenant lease (§5): at most one in-flight
// scan per tenant at a time, across however many worker goroutines a single
// process runs.
type TenantLocker interface {
	// TryLock attempts to acquire the lease for tenantID. ok is false if
	// another scan already holds it. release must be called exactly once
	// when the scan completes or times out.
	TryLock(tenantID uuid.UUID) (release func(), ok bool)
}

// defaultLeaseTimeout bounds how long a held lease is honored without being
// released. The scan releases its lease in a deferred call, but a scan stuck
// in a call to an external dependency never reaches it and leaves the lease
// held forever otherwise.
const defaultLeaseTimeout = 5 * time.Minute

// InProcessLocker is a TenantLocker scoped to a single process: sufficient
// when the trigger worker runs as a single replica, or when each replica
// scans a disjoint tenant set. Cross-replica leasing belongs to a
// Postgres-advisory-lock-backed TenantLocker, not implemented here since
// nothing in this codebase runs more than one trigger-worker replica against
// the same tenant set. A lease older than its timeout is treated as
// orphaned and reclaimed by the next TryLock for that tenant, the
// generalization of the queue worker pool's stale-heartbeat orphan
// detection to an in-process lease.
type InProcessLocker struct {
	mu      sync.Mutex
	leased  map[uuid.UUID]time.Time
	timeout time.Duration
}

// NewInProcessLocker constructs an empty locker with the default lease
// timeout.
func NewInProcessLocker() *InProcessLocker {
	return NewInProcessLockerWithTimeout(defaultLeaseTimeout)
}

// NewInProcessLockerWithTimeout constructs an empty locker with an explicit
// lease timeout, mainly for tests exercising orphan reclaim.
func NewInProcessLockerWithTimeout(timeout time.Duration) *InProcessLocker {
	if timeout <= 0 {
		timeout = defaultLeaseTimeout
	}
	return &InProcessLocker{leased: make(map[uuid.UUID]time.Time), timeout: timeout}
}

func (l *InProcessLocker) TryLock(tenantID uuid.UUID) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acquiredAt, held := l.leased[tenantID]; held && time.Since(acquiredAt) < l.timeout {
		return nil, false
	}

	l.leased[tenantID] = time.Now()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.leased, tenantID)
	}, true
}

// OrphanedLeases returns the tenant IDs currently holding a lease older than
// the configured timeout, for admin/debug visibility. It does not reclaim
// them; the next TryLock call does that opportunistically.
func (l *InProcessLocker) OrphanedLeases() []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()

	var orphaned []uuid.UUID
	for tenantID, acquiredAt := range l.leased {
		if time.Since(acquiredAt) >= l.timeout {
			orphaned = append(orphaned, tenantID)
		}
	}
	return orphaned
}
