package mediasession

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// readChunkSize caps a single read from the upstream response body. The
// actual buffer handed to resp.Body.Read is min(readChunkSize,
// s.packetSize) (see performFetch) so a chunk can never exceed one
// packet's capacity, whatever PacketSize a Config picks.
const readChunkSize = 32 * 1024

// maxFetchAttempts bounds the retry budget for a single byte range before
// the worker surfaces ErrTransferFailure to waiting readers. The range's
// slots stay empty, so the worker picks the range again on its next pass
// with a fresh budget.
const maxFetchAttempts = 5

const (
	backoffBase = 200 * time.Millisecond
	backoffCap  = 5 * time.Second
)

// MediaSession is a single session over one resolved stream URL: a packet
// cache, a promise registry, and one cooperating fetch worker goroutine.
type MediaSession struct {
	cfg      *Config
	resolved *ResolvedMedia
	client   *http.Client

	packetSize int64
	nearWindow int

	mu          sync.Mutex
	cond        *sync.Cond
	cache       *Cache
	promises    promiseRegistry
	destroying  atomic.Bool
	cancelFetch context.CancelFunc
	closing     chan struct{} // closed once, by Close, to interrupt a pending retry backoff

	wg sync.WaitGroup
}

func newSession(cfg *Config, resolved *ResolvedMedia, client *http.Client) *MediaSession {
	s := &MediaSession{
		cfg:        cfg,
		resolved:   resolved,
		client:     client,
		packetSize: cfg.PacketSize,
		nearWindow: cfg.NearWindow,
		cache:      NewCache(resolved.ContentLength, cfg.PacketSize),
		closing:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.wg.Add(1)
	go s.workerLoop()
	return s
}

// Title returns the resolved media's title.
func (s *MediaSession) Title() string { return s.resolved.Title }

// ContentLength returns the stream's declared total length.
func (s *MediaSession) ContentLength() int64 { return s.resolved.ContentLength }

// ContentType returns the resolved media's content type.
func (s *MediaSession) ContentType() string { return s.resolved.ContentType }

// Read satisfies (offset, len(dest)) from the cache, blocking on any
// packets not yet fetched. ctx bounds the wait; a ctx that's never
// canceled makes the call block unconditionally until the fill arrives.
func (s *MediaSession) Read(ctx context.Context, offset int64, dest []byte) (int, error) {
	length := int64(len(dest))
	if offset < 0 || length <= 0 || offset+length > s.resolved.ContentLength {
		return 0, ErrRangeBoundary
	}

	var total int64
	for length > 0 {
		index := int(offset / s.packetSize)
		po := offset % s.packetSize
		c := length
		if max := s.packetSize - po; c > max {
			c = max
		}

		s.mu.Lock()
		var wait *promiseEntry
		if !s.cache.IsFilled(index) {
			wait = s.promises.register(index)
			s.cond.Signal()
		}
		s.mu.Unlock()

		if wait != nil {
			select {
			case <-wait.ready:
				if wait.err != nil {
					return int(total), wait.err
				}
			case <-ctx.Done():
				return int(total), ctx.Err()
			}
		}

		s.mu.Lock()
		copy(dest[total:total+c], s.cache.Get(index)[po:po+c])
		s.mu.Unlock()

		offset += c
		total += c
		length -= c
	}
	return int(total), nil
}

// Close tears the session down: destroying is set, the in-flight transfer
// is canceled, every remaining promise is resolved with ErrTornDown so no
// waiting reader blocks forever, and the worker is joined.
func (s *MediaSession) Close() error {
	s.mu.Lock()
	if s.destroying.Load() {
		s.mu.Unlock()
		return nil
	}
	s.destroying.Store(true)
	cancel := s.cancelFetch
	s.promises.drainTornDown()
	s.mu.Unlock()

	close(s.closing)
	if cancel != nil {
		cancel()
	}
	s.cond.Broadcast()
	s.wg.Wait()
	return nil
}

// workerLoop is the fetch loop: a single long-lived worker that sleeps
// on a condition variable when idle instead of detaching and respawning
// each time new work shows up.
func (s *MediaSession) workerLoop() {
	defer s.wg.Done()
	for {
		left, right, ok := s.waitForWork()
		if !ok {
			slog.Debug("fetch worker idle", "size", s.cache.Size())
			return
		}
		slog.Debug("fetch worker picked range", "left", left, "right", right)
		s.fetchRange(left, right)
	}
}

// waitForWork blocks until there is a contiguous missing range to fetch
// or the session is being destroyed.
func (s *MediaSession) waitForWork() (left, right int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.destroying.Load() {
			return 0, 0, false
		}
		if l, r, have := s.pickRangeLocked(); have {
			return l, r, true
		}
		s.cond.Wait()
	}
}

// pickRangeLocked picks the next contiguous missing range to fetch,
// biased toward the oldest pending promise. Caller must hold s.mu.
func (s *MediaSession) pickRangeLocked() (left, right int, ok bool) {
	if idx, has := s.promises.frontIndex(); has {
		left = idx
	} else {
		idx, has := s.cache.FirstEmpty()
		if !has {
			return 0, 0, false
		}
		left = idx
	}
	right = s.cache.NextBoundary(left + 1)
	return left, right, true
}

// fetchRange performs the HTTP range request for [left, right), retrying
// with capped exponential backoff on transfer error, and surfacing
// ErrTransferFailure to any promise still touching the range once the
// retry budget is exhausted.
func (s *MediaSession) fetchRange(left, right int) {
	byteLo := int64(left) * s.packetSize
	byteHi := minInt64(int64(right)*s.packetSize, s.resolved.ContentLength) - 1

	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if s.destroying.Load() {
			return
		}
		if attempt > 0 {
			s.sleepBackoff(attempt)
			if s.destroying.Load() {
				return
			}
		}

		err := s.performFetch(byteLo, byteHi, left, right)
		if err == nil {
			return
		}
		lastErr = err
		slog.Warn("range fetch attempt failed", "left", left, "right", right, "attempt", attempt+1, "error", err)
	}

	s.failRange(left, right, fmt.Errorf("%w: %v", ErrTransferFailure, lastErr))
}

// sleepBackoff waits out the retry delay for attempt, returning early if
// the session is torn down mid-sleep so Close doesn't block on a worker
// that's merely waiting to retry.
func (s *MediaSession) sleepBackoff(attempt int) {
	d := backoffBase << uint(attempt-1)
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.closing:
	}
}

// fetchState tracks the in-progress packet fill for one HTTP range
// request attempt: which packet is being assembled, how many remain,
// and the scratch buffer accumulating the current packet's bytes.
type fetchState struct {
	current int
	undone  int
	storing int64
	scratch []byte
}

// performFetch issues one HTTP range request and streams the response
// into packets. It returns nil if the transfer completed (whether fully,
// or by a deliberate near-window abort to let the worker re-plan), and a
// non-nil error only for a genuine transfer failure worth retrying.
func (s *MediaSession) performFetch(byteLo, byteHi int64, left, right int) error {
	ctx := context.Background()
	if s.cfg.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TransferTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelFetch = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelFetch = nil
		s.mu.Unlock()
		cancel()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.resolved.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", byteLo, byteHi))

	resp, err := s.client.Do(req)
	if err != nil {
		if s.destroying.Load() {
			return nil
		}
		return fmt.Errorf("perform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	st := &fetchState{current: left, undone: right - left, scratch: newPacket(s.packetSize)}
	buf := make([]byte, minInt64(readChunkSize, s.packetSize))

	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			abort := s.handleChunk(st, buf[:n])
			if abort {
				cancel()
				return nil
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			if s.destroying.Load() {
				return nil
			}
			return fmt.Errorf("read: %w", rerr)
		}
	}

	switch {
	case st.undone == 0:
		return nil
	case st.undone == 1 && st.storing > 0:
		s.commitFinal(st)
		return nil
	default:
		return fmt.Errorf("incomplete range: %d packets undone", st.undone)
	}
}

// handleChunk folds one chunk of the response body into the in-progress
// packet, committing and re-planning at each packet boundary. A chunk
// never exceeds one packet's worth of bytes (performFetch sizes its read
// buffer as min(readChunkSize, packetSize)), so it crosses at most one
// packet boundary per call and the residual stub always fits in the
// fresh scratch packet allocated below.
func (s *MediaSession) handleChunk(st *fetchState, chunk []byte) (abort bool) {
	if st.undone == 0 || s.destroying.Load() {
		return true
	}

	n := int64(len(chunk))
	toPacket := s.packetSize - st.storing
	if toPacket > n {
		toPacket = n
	}
	if toPacket > 0 {
		copy(st.scratch[st.storing:st.storing+toPacket], chunk[:toPacket])
		st.storing += toPacket
	}

	if st.storing < s.packetSize {
		return false
	}

	full := st.scratch
	cont := s.commitAndSchedule(st, full)
	if !cont {
		return true
	}

	st.scratch = newPacket(s.packetSize)
	st.storing = 0
	if stub := n - toPacket; stub > 0 {
		copy(st.scratch[:stub], chunk[toPacket:])
		st.storing = stub
	}
	return false
}

// commitAndSchedule commits a just-filled packet, wakes any readers
// waiting on it, and decides whether the worker should keep streaming
// the current range or abort and re-plan. Executed under the session
// mutex.
func (s *MediaSession) commitAndSchedule(st *fetchState, full []byte) (cont bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Commit(st.current, full)
	s.promises.resolveAll(st.current)
	st.current++
	st.undone--

	if st.undone > 0 {
		if idx, has := s.promises.frontIndex(); has {
			if idx < st.current || idx > st.current+s.nearWindow {
				return false
			}
		}
	}
	return true
}

// commitFinal commits the trailing eof stub: the last packet of a stream
// whose length isn't a multiple of the packet size never reaches
// storing == packetSize, so it's committed directly on normal completion.
func (s *MediaSession) commitFinal(st *fetchState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Commit(st.current, st.scratch)
	s.promises.resolveAll(st.current)
	st.current++
	st.undone--
}

// failRange resolves every promise still pending on an index in
// [left, right) with err, so readers waiting on a range whose retry budget
// ran out don't block forever.
func (s *MediaSession) failRange(left, right int, err error) {
	s.mu.Lock()
	for i := left; i < right; i++ {
		s.promises.failAll(i, err)
	}
	s.mu.Unlock()
	slog.Error("range fetch abandoned", "left", left, "right", right, "error", err)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
