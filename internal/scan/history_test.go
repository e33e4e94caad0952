package scan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"meditbot/pkg/logx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "scan_history.json"), logx.Nop())
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	list, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d entries", len(list))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	list, err := s.Load()
	if err == nil {
		t.Fatal("expected a recoverable warning for corrupt history")
	}
	if len(list) != 0 {
		t.Fatalf("corrupt file must yield empty list, got %d entries", len(list))
	}
}

func TestRecordBoundAndOrder(t *testing.T) {
	s := newTestStore(t)

	var last []Event
	for i := 1; i <= 6; i++ {
		ev := Event{CaseName: fmt.Sprintf("case-%d", i), OccurredAt: "2024-01-01T10:00:00Z"}
		list, err := s.Record(ev)
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
		want := i
		if want > MaxHistory {
			want = MaxHistory
		}
		if len(list) != want {
			t.Fatalf("after %d records: len = %d, want %d", i, len(list), want)
		}
		last = list
	}

	wantNames := []string{"case-6", "case-5", "case-4", "case-3", "case-2"}
	for i, name := range wantNames {
		if last[i].CaseName != name {
			t.Fatalf("list[%d] = %q, want %q", i, last[i].CaseName, name)
		}
	}

	// The persisted file agrees with the returned list.
	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, last) {
		t.Fatalf("persisted list diverged:\n got %+v\nwant %+v", loaded, last)
	}
}

func TestRecordRejectsUnrecordable(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Record(Event{PatientName: "John"}); err == nil {
		t.Fatal("expected error for event without case name")
	}
	if _, statErr := os.Stat(s.path); !os.IsNotExist(statErr) {
		t.Fatal("unrecordable event must not touch the backing file")
	}
}

func TestRoundTripStability(t *testing.T) {
	s := newTestStore(t)
	events := []Event{
		{CaseName: "a", PatientName: "p1", OccurredAt: "2024-01-01T10:00:00Z"},
		{CaseName: "b", OccurredAt: "2024-01-02T10:00:00Z"},
	}
	for _, ev := range events {
		if _, err := s.Record(ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	first, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated loads disagree:\n%+v\n%+v", first, second)
	}
	if first[0].CaseName != "b" || first[1].CaseName != "a" {
		t.Fatalf("unexpected order: %+v", first)
	}
}

func TestPersistedFormat(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Record(Event{CaseName: "Кейс №1", PatientName: "Іван", OccurredAt: "2024-01-01T10:00:00Z"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatalf("read backing file: %v", err)
	}
	// Pretty-printed with the documented field names, non-ASCII preserved.
	for _, want := range []string{`"caseName"`, `"patientName"`, `"occurredAt"`, "Кейс №1", "Іван", "\n    "} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("backing file missing %q:\n%s", want, data)
		}
	}
	if bytes.Contains(data, []byte(`\u`)) {
		t.Fatalf("backing file escapes non-ASCII:\n%s", data)
	}
}
