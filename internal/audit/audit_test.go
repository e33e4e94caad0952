package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meditbot/pkg/logx"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(Config{Path: filepath.Join(t.TempDir(), "audit.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if l == nil {
		t.Fatal("Open returned nil log for a configured path")
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestOpenDisabledWithoutPath(t *testing.T) {
	l, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if l != nil {
		t.Fatal("empty path must disable the audit log")
	}
}

func TestNilLogIsSafe(t *testing.T) {
	var l *Log
	if err := l.Append(context.Background(), Entry{Shape: "case"}); err != nil {
		t.Fatalf("nil Append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if _, err := l.Summarize(context.Background(), time.Now()); err == nil {
		t.Fatal("nil Summarize must report the log as disabled")
	}
}

func TestAppendAndSummarize(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entries := []Entry{
		{At: now.Add(-2 * time.Hour), Shape: "case", CaseName: "Case1", PatientName: "John"},
		{At: now.Add(-1 * time.Hour), Shape: "order", CaseName: "Case2"},
		{At: now.Add(-30 * time.Minute), Shape: "unrecognized", Payload: "{}"},
		{At: now.Add(-48 * time.Hour), Shape: "case", CaseName: "stale"},
	}
	for i, e := range entries {
		if err := l.Append(ctx, e); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	sum, err := l.Summarize(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 3 {
		t.Fatalf("Total = %d, want 3 (stale entry excluded)", sum.Total)
	}
	if sum.ByShape["case"] != 1 || sum.ByShape["order"] != 1 || sum.ByShape["unrecognized"] != 1 {
		t.Fatalf("ByShape = %v", sum.ByShape)
	}
	if sum.LastCase != "Case2" {
		t.Fatalf("LastCase = %q, want Case2", sum.LastCase)
	}
	if sum.LastAt.IsZero() {
		t.Fatal("LastAt not populated")
	}
}

func TestSummarizeEmpty(t *testing.T) {
	l := openTestLog(t)
	sum, err := l.Summarize(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 0 || len(sum.ByShape) != 0 {
		t.Fatalf("sum = %+v", sum)
	}
}
