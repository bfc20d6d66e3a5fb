package performance

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	var wg sync.WaitGroup

	const tasks = 200
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		if !pool.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}) {
			t.Fatal("submit rejected while pool running")
		}
	}
	wg.Wait()

	if counter.Load() != tasks {
		t.Errorf("expected %d tasks run, got %d", tasks, counter.Load())
	}

	stats := pool.Stats()
	if stats.TasksTotal != tasks {
		t.Errorf("stats tasks total: got %d, want %d", stats.TasksTotal, tasks)
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Stop()

	if pool.Submit(func() {}) {
		t.Error("submit accepted after stop")
	}
}

func TestWorkerPool_ZeroWorkersDefaultsToNumCPU(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.Stats().Workers < 1 {
		t.Errorf("expected at least one worker, got %d", pool.Stats().Workers)
	}
}

func TestBatchProcessor_FlushesFullBatches(t *testing.T) {
	var flushed [][]int
	batch := NewBatchProcessor(3, func(chunk []int) error {
		copied := make([]int, len(chunk))
		copy(copied, chunk)
		flushed = append(flushed, copied)
		return nil
	})

	for i := 1; i <= 7; i++ {
		if err := batch.Add(i); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := batch.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(flushed) != 3 {
		t.Fatalf("expected 3 flushes, got %d", len(flushed))
	}
	if len(flushed[0]) != 3 || len(flushed[1]) != 3 || len(flushed[2]) != 1 {
		t.Errorf("wrong chunk sizes: %v", flushed)
	}

	var total int
	for _, chunk := range flushed {
		total += len(chunk)
	}
	if total != 7 {
		t.Errorf("items lost in batching: got %d, want 7", total)
	}
}

func TestBatchProcessor_PropagatesErrors(t *testing.T) {
	wantErr := errors.New("insert failed")
	batch := NewBatchProcessor(2, func(chunk []string) error {
		return wantErr
	})

	if err := batch.Add("a"); err != nil {
		t.Fatalf("first add flushed early: %v", err)
	}
	if err := batch.Add("b"); !errors.Is(err, wantErr) {
		t.Errorf("full-batch flush error not propagated: %v", err)
	}
}

func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(1)
		pool.Submit(func() {
			time.Sleep(time.Microsecond)
			wg.Done()
		})
		wg.Wait()
	}
}

func BenchmarkWorkerPoolParallel(b *testing.B) {
	pool := NewWorkerPool(8)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			done := make(chan struct{})
			pool.Submit(func() {
				close(done)
			})
			<-done
		}
	})
}
