package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		input   string
		want    ScheduleTime
		wantErr bool
	}{
		{"06:00", ScheduleTime{Hour: 6, Minute: 0}, false},
		{"23:59", ScheduleTime{Hour: 23, Minute: 59}, false},
		{"0:5", ScheduleTime{Hour: 0, Minute: 5}, false},
		{"24:00", ScheduleTime{}, true},
		{"12:60", ScheduleTime{}, true},
		{"noon", ScheduleTime{}, true},
		{"", ScheduleTime{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseScheduleTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestScheduleTime_String(t *testing.T) {
	st := ScheduleTime{Hour: 6, Minute: 5}
	if st.String() != "06:05" {
		t.Errorf("String() = %q, want 06:05", st.String())
	}
}

// testJob implements Job
type testJob struct {
	id      string
	execute func(ctx context.Context) error
}

func (j *testJob) Execute(ctx context.Context) error {
	if j.execute != nil {
		return j.execute(ctx)
	}
	return nil
}
func (j *testJob) ConnectionID() string { return j.id }
func (j *testJob) Description() string  { return "test job " + j.id }

func TestWorkerPool_ProcessesSubmittedJobs(t *testing.T) {
	pool := NewWorkerPool(2, 0, 10)
	pool.Start()

	var executed int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		job := &testJob{id: "conn-1", execute: func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			wg.Done()
			return nil
		}}
		if err := pool.Submit(job); err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
	}

	wg.Wait()
	pool.Shutdown()

	if got := atomic.LoadInt32(&executed); got != 5 {
		t.Errorf("executed = %d, want 5", got)
	}
}

func TestWorkerPool_FullQueueDropsJobs(t *testing.T) {
	// No workers started, so nothing drains the queue.
	pool := NewWorkerPool(1, 0, 1)

	first := &testJob{id: "conn-1"}
	if err := pool.Submit(first); err != nil {
		t.Fatalf("Submit() error on first job: %v", err)
	}

	second := &testJob{id: "conn-2"}
	if err := pool.Submit(second); err == nil {
		t.Error("expected a full queue to reject the job")
	}
}

func TestWorkerPool_ShutdownWaitsForInFlightJobs(t *testing.T) {
	pool := NewWorkerPool(1, 0, 1)
	pool.Start()

	done := make(chan struct{})
	job := &testJob{id: "conn-1", execute: func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		close(done)
		return nil
	}}
	if err := pool.Submit(job); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	pool.Shutdown()

	select {
	case <-done:
	default:
		t.Error("Shutdown() returned before the in-flight job finished")
	}
}

func TestScheduler_New_RequiresValidTimes(t *testing.T) {
	_, err := New(Config{
		ScheduleTimes: []string{"26:00"},
		WorkerCount:   1,
		QueueSize:     1,
		JobProvider:   func(ctx context.Context) ([]Job, error) { return nil, nil },
	})
	if err == nil {
		t.Error("expected an error for an invalid schedule time")
	}

	_, err = New(Config{
		ScheduleTimes: []string{},
		WorkerCount:   1,
		QueueSize:     1,
		JobProvider:   func(ctx context.Context) ([]Job, error) { return nil, nil },
	})
	if err == nil {
		t.Error("expected an error when no schedule times are given")
	}
}
