package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultDedupTimeout is how long an identical message stays suppressed.
const DefaultDedupTimeout = 8 * time.Hour

// dedupSweepThreshold is the seen-set size that triggers removal of
// expired fingerprints.
const dedupSweepThreshold = 1024

// Deduplicator is a rate-limited log sink. A message whose text and
// arguments match one logged within the timeout is dropped and replaced by
// a debug-level "dropped log message" record.
//
// One Deduplicator is created at startup and shared. Fingerprints older
// than the timeout are swept once the seen set grows past a threshold;
// Reset clears it outright.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Deduplicator struct {
	logger  *Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	seen    map[string]time.Time
	sweepAt int
}

// NewDeduplicator wraps logger. A non-positive timeout selects
// DefaultDedupTimeout.
func NewDeduplicator(logger *Logger, timeout time.Duration) *Deduplicator {
	if timeout <= 0 {
		timeout = DefaultDedupTimeout
	}
	return &Deduplicator{
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
		seen:    make(map[string]time.Time),
		sweepAt: dedupSweepThreshold,
	}
}

// Debug logs at debug level. Debug records are never deduplicated.
func (d *Deduplicator) Debug(msg string, args ...any) {
	d.logger.Debug(msg, args...)
}

// Info logs at info level unless an identical record was logged recently.
func (d *Deduplicator) Info(msg string, args ...any) {
	if d.allow(msg, args) {
		d.logger.Info(msg, args...)
	}
}

// Warn logs at warn level unless an identical record was logged recently.
func (d *Deduplicator) Warn(msg string, args ...any) {
	if d.allow(msg, args) {
		d.logger.Warn(msg, args...)
	}
}

// Error logs at error level unless an identical record was logged recently.
func (d *Deduplicator) Error(msg string, args ...any) {
	if d.allow(msg, args) {
		d.logger.Error(msg, args...)
	}
}

// Reset forgets every fingerprint so the next occurrence of any message is
// logged again.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]time.Time)
	d.sweepAt = dedupSweepThreshold
	d.mu.Unlock()
}

// DebugEnabled reports whether the wrapped logger emits debug records.
func (d *Deduplicator) DebugEnabled() bool {
	return d.logger.DebugEnabled()
}

func (d *Deduplicator) allow(msg string, args []any) bool {
	key := fingerprint(msg, args)
	now := d.now()

	d.mu.Lock()
	last, ok := d.seen[key]
	if ok && now.Sub(last) < d.timeout {
		d.mu.Unlock()
		d.logger.Debug("dropped log message", "message", msg)
		return false
	}
	d.seen[key] = now
	if len(d.seen) > d.sweepAt {
		d.sweep(now)
	}
	d.mu.Unlock()
	return true
}

// sweep drops expired fingerprints. When most entries are still live the
// next sweep is pushed out so a busy set is not rescanned on every call.
// Callers hold d.mu.
func (d *Deduplicator) sweep(now time.Time) {
	for key, last := range d.seen {
		if now.Sub(last) >= d.timeout {
			delete(d.seen, key)
		}
	}
	d.sweepAt = max(dedupSweepThreshold, 2*len(d.seen))
}

// fingerprint identifies a record by its message and formatted arguments.
func fingerprint(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for _, a := range args {
		b.WriteByte(0)
		fmt.Fprint(&b, a)
	}
	return b.String()
}
