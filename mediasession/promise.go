package mediasession

// promiseEntry is a registered intent to consume a specific slot's
// contents, with a one-shot wake signal. ready is closed exactly once;
// err, if non-nil by the time ready closes, tells the waiter the fill
// never happened (teardown or transfer failure) instead of a successful
// commit.
type promiseEntry struct {
	index int
	ready chan struct{}
	err   error
}

// promiseRegistry is the ordered list of pending promises. All operations
// are documented as requiring the session's mutex; the registry itself
// holds no lock.
type promiseRegistry struct {
	entries []*promiseEntry // FIFO by insertion
}

// register appends a new promise for index and returns it. Caller must
// hold the session mutex and must have verified the slot is empty.
func (r *promiseRegistry) register(index int) *promiseEntry {
	e := &promiseEntry{index: index, ready: make(chan struct{})}
	r.entries = append(r.entries, e)
	return e
}

// resolveAll signals and removes every entry with this index, in
// registry order, with a nil error (a successful fill). Caller must hold
// the session mutex.
func (r *promiseRegistry) resolveAll(index int) {
	r.settleAll(index, nil)
}

// failAll signals and removes every entry with this index with the given
// error. Caller must hold the session mutex.
func (r *promiseRegistry) failAll(index int, err error) {
	r.settleAll(index, err)
}

func (r *promiseRegistry) settleAll(index int, err error) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.index == index {
			e.err = err
			close(e.ready)
		} else {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// drainTornDown signals every remaining promise with ErrTornDown and
// empties the registry. Called once at session teardown, so a reader
// still waiting on a fill that will never arrive unblocks instead of
// hanging forever.
func (r *promiseRegistry) drainTornDown() {
	for _, e := range r.entries {
		e.err = ErrTornDown
		close(e.ready)
	}
	r.entries = nil
}

// frontIndex returns the index of the oldest pending promise, if any.
// Caller must hold the session mutex.
func (r *promiseRegistry) frontIndex() (int, bool) {
	if len(r.entries) == 0 {
		return 0, false
	}
	return r.entries[0].index, true
}

// empty reports whether the registry holds no pending promises. Caller
// must hold the session mutex.
func (r *promiseRegistry) empty() bool {
	return len(r.entries) == 0
}
