package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kbukum/caseflow/database"
	apperrors "github.com/kbukum/caseflow/errors"
)

func newSQLStore(t *testing.T) *SQL {
	t.Helper()
	db, err := database.Open(database.Config{DSN: filepath.Join(t.TempDir(), "runs.db"), LogLevel: "silent"}, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewSQL(db)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	return s
}

func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sql", func(t *testing.T) { fn(t, newSQLStore(t)) })
}

func day(s string) time.Time {
	d, _ := time.Parse(DateLayout, s)
	return d
}

func TestSaveAndGetRun(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		run := NewRun("covid_case_data_process", day("2021-10-27"), TriggerScheduled)
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}

		run.Start(time.Now())
		run.Fail(time.Now(), "insert_data", "LOAD_CONNECTION", "refused", 3)
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun update: %v", err)
		}

		got, err := s.GetRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if got.Status != RunFailed || got.FailedTask != "insert_data" || got.Attempts != 3 {
			t.Errorf("unexpected run %+v", got)
		}
		if got.LogicalDate != "2021-10-27" || got.StartedAt == nil || got.EndedAt == nil {
			t.Errorf("unexpected dates %+v", got)
		}
	})
}

func TestGetRunNotFound(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		_, err := s.GetRun(context.Background(), "missing")
		if apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})
}

func TestListRuns(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, d := range []string{"2021-10-27", "2021-10-28", "2021-10-29"} {
			r := NewRun("dag", day(d), TriggerScheduled)
			if d == "2021-10-28" {
				r.Succeed(time.Now())
			}
			_ = s.SaveRun(ctx, r)
			time.Sleep(2 * time.Millisecond)
		}
		_ = s.SaveRun(ctx, NewRun("other", day("2021-10-30"), TriggerManual))

		runs, err := s.ListRuns(ctx, ListOptions{DAGID: "dag"})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 3 || runs[0].LogicalDate != "2021-10-29" {
			t.Fatalf("expected 3 runs newest first, got %+v", runs)
		}

		limited, _ := s.ListRuns(ctx, ListOptions{DAGID: "dag", Limit: 1})
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}
		succeeded, _ := s.ListRuns(ctx, ListOptions{Status: RunSucceeded})
		if len(succeeded) != 1 || succeeded[0].LogicalDate != "2021-10-28" {
			t.Errorf("expected one succeeded run, got %+v", succeeded)
		}
	})
}

func TestAttempts(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, st := range []string{"running", "retrying", "running", "succeeded"} {
			a := &TaskAttempt{RunID: "r1", Task: "get_data", Attempt: i/2 + 1, Status: st, At: time.Now()}
			if err := s.RecordAttempt(ctx, a); err != nil {
				t.Fatalf("RecordAttempt: %v", err)
			}
		}
		got, err := s.Attempts(ctx, "r1")
		if err != nil {
			t.Fatalf("Attempts: %v", err)
		}
		if len(got) != 4 || got[3].Status != "succeeded" || got[3].Attempt != 2 {
			t.Errorf("unexpected attempts %+v", got)
		}
		none, _ := s.Attempts(ctx, "r2")
		if len(none) != 0 {
			t.Errorf("expected no attempts for r2, got %d", len(none))
		}
	})
}

func TestLastLogicalDate(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		last, err := s.LastLogicalDate(ctx, "dag")
		if err != nil || last != "" {
			t.Fatalf("expected empty, got %q err=%v", last, err)
		}
		_ = s.SaveRun(ctx, NewRun("dag", day("2021-10-27"), TriggerScheduled))
		_ = s.SaveRun(ctx, NewRun("dag", day("2021-10-29"), TriggerScheduled))
		_ = s.SaveRun(ctx, NewRun("dag", day("2021-11-05"), TriggerManual))
		_ = s.SaveRun(ctx, NewRun("other", day("2021-12-01"), TriggerScheduled))

		last, err = s.LastLogicalDate(ctx, "dag")
		if err != nil || last != "2021-10-29" {
			t.Fatalf("expected 2021-10-29, got %q err=%v", last, err)
		}
	})
}

func TestFailUnfinished(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		pending := NewRun("dag", day("2021-10-26"), TriggerScheduled)
		running := NewRun("dag", day("2021-10-27"), TriggerManual)
		running.Start(time.Now())
		done := NewRun("dag", day("2021-10-25"), TriggerScheduled)
		done.Start(time.Now())
		done.Succeed(time.Now())
		other := NewRun("other", day("2021-10-27"), TriggerScheduled)
		other.Start(time.Now())
		for _, r := range []*Run{pending, running, done, other} {
			if err := s.SaveRun(ctx, r); err != nil {
				t.Fatalf("SaveRun: %v", err)
			}
		}

		at := time.Date(2021, 10, 28, 3, 0, 0, 0, time.UTC)
		ids, err := s.FailUnfinished(ctx, "dag", at, "INTERRUPTED", "process exited")
		if err != nil {
			t.Fatalf("FailUnfinished: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("changed %v, want the pending and running runs", ids)
		}
		for _, id := range []string{pending.ID, running.ID} {
			got, err := s.GetRun(ctx, id)
			if err != nil {
				t.Fatalf("GetRun: %v", err)
			}
			if got.Status != RunFailed || got.ErrorCode != "INTERRUPTED" || got.EndedAt == nil || !got.EndedAt.Equal(at) {
				t.Errorf("run %s = %+v", id, got)
			}
		}
		if got, _ := s.GetRun(ctx, done.ID); got.Status != RunSucceeded || got.ErrorCode != "" {
			t.Errorf("finished run changed: %+v", got)
		}
		if got, _ := s.GetRun(ctx, other.ID); got.Status != RunRunning {
			t.Errorf("other dag changed: %+v", got)
		}

		again, err := s.FailUnfinished(ctx, "dag", at, "INTERRUPTED", "process exited")
		if err != nil || len(again) != 0 {
			t.Fatalf("second pass changed %v, err=%v", again, err)
		}
	})
}

func TestRunStatusTerminal(t *testing.T) {
	if RunRunning.Terminal() || RunPending.Terminal() {
		t.Error("running and pending are not terminal")
	}
	if !RunSucceeded.Terminal() || !RunFailed.Terminal() {
		t.Error("succeeded and failed are terminal")
	}
}
