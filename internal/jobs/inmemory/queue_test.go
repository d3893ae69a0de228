package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.CategorizeJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last seen: %+v", jobID, want, job)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	var mu sync.Mutex
	var handled []uint
	handler := func(_ context.Context, job jobs.Job) error {
		cj := job.(*jobs.CategorizeJob)
		mu.Lock()
		handled = append(handled, cj.UserID)
		mu.Unlock()
		cj.Updated = 7
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.CategorizeJob{UserID: 42}
	if err := q.PublishCategorize(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.JobID == "" {
		t.Fatal("publish did not assign a job id")
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Updated != 7 {
		t.Fatalf("updated count not recorded: %+v", done)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatalf("timestamps missing: %+v", done)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 1 || handled[0] != 42 {
		t.Fatalf("handled: %v", handled)
	}
}

func TestQueueRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	var mu sync.Mutex
	attempts := 0
	handler := func(_ context.Context, _ jobs.Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return fmt.Errorf("model unavailable")
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.CategorizeJob{UserID: 1, MaxRetries: 1}
	if err := q.PublishCategorize(ctx, job); err != nil {
		t.Fatal(err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "model unavailable" {
		t.Fatalf("error detail: %q", failed.Error)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Fatalf("got %d attempts, want 2 (initial + one retry)", attempts)
	}
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue(1, 1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	err := q.PublishCategorize(context.Background(), &jobs.CategorizeJob{UserID: 1})
	if err == nil {
		t.Fatal("publish succeeded on a closed queue")
	}
}

func TestStoreFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i, st := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusCompleted, jobs.JobStatusCompleted} {
		job := &jobs.CategorizeJob{
			JobID:  fmt.Sprintf("job-%d", i),
			UserID: uint(1 + i%2),
			Status: st,
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 2 {
		t.Fatalf("completed: %d, want 2", len(completed))
	}

	user1, err := store.ListJobs(ctx, jobs.JobFilter{UserID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(user1) != 2 {
		t.Fatalf("user 1 jobs: %d, want 2", len(user1))
	}

	if _, err := store.GetJob(ctx, "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	job := &jobs.CategorizeJob{JobID: "j1", UserID: 1, Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	got.Status = jobs.JobStatusFailed

	again, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != jobs.JobStatusPending {
		t.Fatal("mutation of a returned job leaked into the store")
	}
}
