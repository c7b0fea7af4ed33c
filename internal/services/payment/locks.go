package payment

import "sync"

// companyLocks serializes payment mutations per company. The ledger's
// read-then-decide pattern is not atomic on its own; holding the company's
// lock across the read and the conditional write keeps the one-PENDING and
// one-SUCCESS invariants from racing, with the storage-level partial unique
// indexes as the backstop.
type companyLocks struct {
	mu    sync.Mutex
	locks map[int64]*companyLock
}

type companyLock struct {
	mu   sync.Mutex
	refs int
}

func newCompanyLocks() *companyLocks {
	return &companyLocks{locks: make(map[int64]*companyLock)}
}

// Lock acquires the mutex for companyID and returns its unlock function.
// Entries are reference counted so the map does not grow with tenant churn.
func (c *companyLocks) Lock(companyID int64) func() {
	c.mu.Lock()
	l, ok := c.locks[companyID]
	if !ok {
		l = &companyLock{}
		c.locks[companyID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, companyID)
		}
		c.mu.Unlock()
	}
}
