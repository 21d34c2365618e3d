package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance/internal/database"
	"github.com/kozaktomas/attendance/internal/database/mock"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

var alice = database.Student{ID: 1, RegistrationNumber: "CS101", Name: "Alice", Course: "CS"}

func newStore() *mock.MockAttendanceStore {
	students := mock.NewMockStudentReader()
	students.AddStudent(alice)
	return mock.NewMockAttendanceStore(students)
}

func TestCommit_FormatsInLocation(t *testing.T) {
	store := newStore()
	loc := time.FixedZone("UTC+2", 2*60*60)
	l := New(store, WithLocation(loc))

	at := time.Date(2024, 5, 1, 22, 30, 15, 0, time.UTC) // 00:30:15 next day at UTC+2
	res, err := l.Commit(context.Background(), alice, at, 81.5)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res != Committed {
		t.Fatalf("expected Committed, got %v", res)
	}

	recs := store.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Date != "2024-05-02" || recs[0].Time != "00:30:15" {
		t.Errorf("unexpected date/time %s %s", recs[0].Date, recs[0].Time)
	}
	if recs[0].MatchPercentage != 81.5 {
		t.Errorf("unexpected percentage %v", recs[0].MatchPercentage)
	}
}

// A second commit on the same day is reported and changes nothing.
func TestCommit_SecondCommitSameDayIsAlreadyRecorded(t *testing.T) {
	store := newStore()
	notifier := &recordingNotifier{}
	l := New(store, WithLocation(time.UTC), WithNotifier(notifier))
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	if res, err := l.Commit(ctx, alice, first, 75); err != nil || res != Committed {
		t.Fatalf("first commit: %v %v", res, err)
	}

	res, err := l.Commit(ctx, alice, first.Add(3*time.Hour), 99)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if res != AlreadyRecordedToday {
		t.Errorf("expected AlreadyRecordedToday, got %v", res)
	}

	recs := store.Records()
	if len(recs) != 1 {
		t.Fatalf("ledger size changed: %d", len(recs))
	}
	if recs[0].Time != "09:00:00" || recs[0].MatchPercentage != 75 {
		t.Errorf("first record modified: %+v", recs[0])
	}
	if len(notifier.events) != 1 {
		t.Errorf("expected one notification, got %d", len(notifier.events))
	}

	// Next day is a new record.
	if res, err := l.Commit(ctx, alice, first.Add(24*time.Hour), 70); err != nil || res != Committed {
		t.Errorf("next day commit: %v %v", res, err)
	}
}

func TestCommit_StorageFailure(t *testing.T) {
	store := newStore()
	store.InsertError = errors.New("disk I/O error")
	notifier := &recordingNotifier{}
	l := New(store, WithNotifier(notifier))

	_, err := l.Commit(context.Background(), alice, time.Now(), 80)
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}
	if len(notifier.events) != 0 {
		t.Error("failed commit must not notify")
	}
}

func TestCommit_NotifierFailureIsIgnored(t *testing.T) {
	store := newStore()
	l := New(store, WithNotifier(&recordingNotifier{err: errors.New("broker down")}))

	res, err := l.Commit(context.Background(), alice, time.Now(), 80)
	if err != nil || res != Committed {
		t.Fatalf("notifier errors should not fail commit: %v %v", res, err)
	}
}

func TestCommit_Concurrent(t *testing.T) {
	store := newStore()
	l := New(store, WithLocation(time.UTC))
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Commit(context.Background(), alice, at, 80)
			if err != nil {
				t.Errorf("Commit: %v", err)
				return
			}
			if res == Committed {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if committed != 1 {
		t.Errorf("expected exactly one Committed, got %d", committed)
	}
}

func TestResultString(t *testing.T) {
	if Committed.String() != "committed" || AlreadyRecordedToday.String() != "already_recorded" {
		t.Error("unexpected result names")
	}
}
