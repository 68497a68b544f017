package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const dateLayout = "2006-01-02"

// ErrDailyQuotaExceeded is returned by Admit when the daily cap is reached.
// ResetIn is a hint for how long until the cap resets at local midnight.
type ErrDailyQuotaExceeded struct {
	Used    int
	Cap     int
	ResetIn time.Duration
}

func (e *ErrDailyQuotaExceeded) Error() string {
	return fmt.Sprintf("daily quota exceeded: %d/%d requests used, resets in %s",
		e.Used, e.Cap, e.ResetIn.Round(time.Minute))
}

// state is the on-disk quota snapshot. Field names match the original state
// file so an existing file keeps working across upgrades.
type state struct {
	DailyCount int         `json:"daily_request_count"`
	ResetDate  string      `json:"daily_reset_date,omitempty"` // YYYY-MM-DD
	Timestamps []time.Time `json:"request_timestamps"`
}

// Ledger gatekeeps every text-generation call against a daily cap and a
// rolling per-window cap, with the state persisted to a JSON file so limits
// survive process restarts.
//
// Single-process only: the state file is read-modify-written on every call,
// so concurrent processes sharing one file must serialize access externally.
type Ledger struct {
	path         string
	maxPerDay    int
	maxPerWindow int
	window       time.Duration // rolling window for the per-window cap
	margin       time.Duration // safety margin added to window waits
	logger       *slog.Logger

	now func() time.Time // swapped in tests
}

// NewLedger creates a ledger persisting to path. maxPerWindow applies over a
// 60-second rolling window; a minimum spacing of window/maxPerWindow between
// calls is enforced on top of it to smooth bursts.
func NewLedger(path string, maxPerDay, maxPerWindow int, logger *slog.Logger) *Ledger {
	return &Ledger{
		path:         path,
		maxPerDay:    maxPerDay,
		maxPerWindow: maxPerWindow,
		window:       time.Minute,
		margin:       time.Second,
		logger:       logger,
		now:          time.Now,
	}
}

// minSpacing is the enforced minimum gap between consecutive admitted calls.
func (l *Ledger) minSpacing() time.Duration {
	return l.window / time.Duration(l.maxPerWindow)
}

// Admit blocks until a call may proceed, records it, and persists the state.
// It returns *ErrDailyQuotaExceeded without sleeping when the daily cap is
// reached, or the context error if cancelled while waiting. Callers must pair
// a failed downstream call with Release.
func (l *Ledger) Admit(ctx context.Context) error {
	st := l.load()
	now := l.now()

	// New day: zero the counter and drop old timestamps.
	if rolled := l.resetIfNewDay(&st, now); rolled {
		l.logger.Info("daily quota reset", "date", st.ResetDate)
	}

	if st.DailyCount >= l.maxPerDay {
		return &ErrDailyQuotaExceeded{
			Used:    st.DailyCount,
			Cap:     l.maxPerDay,
			ResetIn: untilMidnight(now),
		}
	}

	st.Timestamps = pruneOlderThan(st.Timestamps, now.Add(-l.window))

	// Per-window cap: wait until the oldest recorded call leaves the window.
	if len(st.Timestamps) >= l.maxPerWindow {
		oldest := st.Timestamps[0]
		for _, ts := range st.Timestamps[1:] {
			if ts.Before(oldest) {
				oldest = ts
			}
		}
		wait := l.window - now.Sub(oldest)
		if wait > 0 {
			l.logger.Info("per-minute quota reached, waiting",
				"in_window", len(st.Timestamps),
				"cap", l.maxPerWindow,
				"wait", wait+l.margin,
			)
			if err := sleep(ctx, wait+l.margin); err != nil {
				return err
			}
			now = l.now()
		}
	}

	// Minimum spacing since the most recent call.
	if len(st.Timestamps) > 0 {
		last := st.Timestamps[0]
		for _, ts := range st.Timestamps[1:] {
			if ts.After(last) {
				last = ts
			}
		}
		if elapsed := now.Sub(last); elapsed < l.minSpacing() {
			wait := l.minSpacing() - elapsed
			l.logger.Info("enforcing call spacing", "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			now = l.now()
		}
	}

	st.Timestamps = append(st.Timestamps, now)
	st.DailyCount++
	l.save(st)

	l.logger.Info("quota admitted",
		"daily", fmt.Sprintf("%d/%d", st.DailyCount, l.maxPerDay),
		"in_window", fmt.Sprintf("%d/%d", len(st.Timestamps), l.maxPerWindow),
	)
	return nil
}

// Release refunds the daily slot of a call that failed after admission. The
// call's timestamp is kept on purpose: the request left the process, so it
// still counts against per-minute pacing. The count is floored at zero, so a
// stray second Release on an empty ledger is harmless.
func (l *Ledger) Release() {
	st := l.load()
	if st.DailyCount > 0 {
		st.DailyCount--
	}
	l.save(st)
}

// resetIfNewDay zeroes the state when the stored reset date is absent,
// unparseable, or older than today. Returns true if a reset happened.
func (l *Ledger) resetIfNewDay(st *state, now time.Time) bool {
	if st.ResetDate != "" {
		stored, err := time.ParseInLocation(dateLayout, st.ResetDate, now.Location())
		if err == nil && !midnight(now).After(stored) {
			return false
		}
	}
	st.DailyCount = 0
	st.ResetDate = now.Format(dateLayout)
	st.Timestamps = nil
	return true
}

// load reads the persisted state. A missing or unreadable file yields fresh
// empty state (fail open, never unavailable).
func (l *Ledger) load() state {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("reading quota state, starting fresh", "path", l.path, "error", err)
		}
		return state{}
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		l.logger.Warn("quota state corrupt, starting fresh", "path", l.path, "error", err)
		return state{}
	}
	return st
}

// save persists the state. Write failures are logged and tolerated: the
// process keeps the in-memory view for the rest of the run.
func (l *Ledger) save(st state) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		l.logger.Warn("encoding quota state", "error", err)
		return
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		l.logger.Warn("writing quota state, continuing in memory", "path", l.path, "error", err)
	}
}

func pruneOlderThan(timestamps []time.Time, cutoff time.Time) []time.Time {
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func untilMidnight(t time.Time) time.Duration {
	return midnight(t).AddDate(0, 0, 1).Sub(t)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("quota wait: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
