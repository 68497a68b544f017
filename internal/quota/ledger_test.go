package quota

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testLedger returns a ledger with a short window so tests run in real time.
func testLedger(t *testing.T, maxPerDay, maxPerWindow int) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quota_state.json")
	l := NewLedger(path, maxPerDay, maxPerWindow, discardLogger())
	l.window = 200 * time.Millisecond
	l.margin = 10 * time.Millisecond
	return l
}

func TestAdmit_DailyCapRejectsWithoutSleeping(t *testing.T) {
	l := testLedger(t, 2, 100)
	ctx := context.Background()

	if err := l.Admit(ctx); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	if err := l.Admit(ctx); err != nil {
		t.Fatalf("second admit: %v", err)
	}

	start := time.Now()
	err := l.Admit(ctx)
	if err == nil {
		t.Fatal("expected daily cap rejection, got nil")
	}
	var dailyErr *ErrDailyQuotaExceeded
	if !errors.As(err, &dailyErr) {
		t.Fatalf("expected *ErrDailyQuotaExceeded, got %T: %v", err, err)
	}
	if dailyErr.Used != 2 || dailyErr.Cap != 2 {
		t.Errorf("expected used=2 cap=2, got used=%d cap=%d", dailyErr.Used, dailyErr.Cap)
	}
	// Rejection must be immediate, not a wait-until-midnight.
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("rejection took %v, expected no sleep", elapsed)
	}
}

func TestAdmit_EnforcesMinimumSpacing(t *testing.T) {
	// window 200ms / cap 2 → min spacing 100ms between calls.
	l := testLedger(t, 100, 2)
	ctx := context.Background()

	if err := l.Admit(ctx); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	start := time.Now()
	if err := l.Admit(ctx); err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms spacing wait, got %v", elapsed)
	}
}

func TestAdmit_BlocksWhenWindowSaturated(t *testing.T) {
	// cap 1 per 200ms window: the second call must wait for the first
	// timestamp to leave the window.
	l := testLedger(t, 100, 1)
	ctx := context.Background()

	if err := l.Admit(ctx); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	start := time.Now()
	if err := l.Admit(ctx); err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected to wait for window drain, got %v", elapsed)
	}
}

func TestAdmit_ContextCancelledWhileWaiting(t *testing.T) {
	l := testLedger(t, 100, 1)
	l.window = 5 * time.Second

	if err := l.Admit(context.Background()); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Admit(ctx); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestRelease_RestoresDailyCountAndKeepsTimestamps(t *testing.T) {
	l := testLedger(t, 10, 100)

	if err := l.Admit(context.Background()); err != nil {
		t.Fatalf("admit: %v", err)
	}
	before := l.load()
	if before.DailyCount != 1 || len(before.Timestamps) != 1 {
		t.Fatalf("after admit: count=%d timestamps=%d", before.DailyCount, len(before.Timestamps))
	}

	l.Release()
	after := l.load()
	if after.DailyCount != 0 {
		t.Errorf("expected daily count back to 0, got %d", after.DailyCount)
	}
	// The failed call still counts against per-minute pacing.
	if len(after.Timestamps) != 1 {
		t.Errorf("expected timestamp retained, got %d", len(after.Timestamps))
	}

	// A stray second release must not drive the count negative.
	l.Release()
	if st := l.load(); st.DailyCount != 0 {
		t.Errorf("expected count floored at 0, got %d", st.DailyCount)
	}
}

func TestStateRoundTrip(t *testing.T) {
	l := testLedger(t, 10, 100)
	ts := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	l.save(state{DailyCount: 7, ResetDate: "2026-08-30", Timestamps: []time.Time{ts}})

	got := l.load()
	if got.DailyCount != 7 {
		t.Errorf("daily count: got %d, want 7", got.DailyCount)
	}
	if got.ResetDate != "2026-08-30" {
		t.Errorf("reset date: got %q", got.ResetDate)
	}
	if len(got.Timestamps) != 1 || !got.Timestamps[0].Equal(ts) {
		t.Errorf("timestamps: got %v", got.Timestamps)
	}
}

func TestLoad_CorruptStateStartsFresh(t *testing.T) {
	l := testLedger(t, 10, 100)
	if err := os.WriteFile(l.path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := l.load()
	if st.DailyCount != 0 || st.ResetDate != "" || len(st.Timestamps) != 0 {
		t.Errorf("expected fresh state, got %+v", st)
	}
	if err := l.Admit(context.Background()); err != nil {
		t.Errorf("admit after corrupt state: %v", err)
	}
}

func TestAdmit_NewDayResetsExhaustedQuota(t *testing.T) {
	l := testLedger(t, 5, 100)
	yesterday := l.now().AddDate(0, 0, -1)
	l.save(state{
		DailyCount: 5, // exhausted
		ResetDate:  yesterday.Format(dateLayout),
		Timestamps: []time.Time{yesterday},
	})

	if err := l.Admit(context.Background()); err != nil {
		t.Fatalf("expected reset on new day, got %v", err)
	}
	st := l.load()
	if st.DailyCount != 1 {
		t.Errorf("expected count 1 after reset+admit, got %d", st.DailyCount)
	}
	if st.ResetDate != l.now().Format(dateLayout) {
		t.Errorf("expected reset date today, got %q", st.ResetDate)
	}
}
