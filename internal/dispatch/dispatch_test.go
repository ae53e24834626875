package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoReturnsResult(t *testing.T) {
	d := New(Config{})
	defer d.Close(context.Background())

	got, err := Do(context.Background(), d, 1, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestDoPropagatesError(t *testing.T) {
	d := New(Config{})
	defer d.Close(context.Background())

	boom := errors.New("boom")
	_, err := Do(context.Background(), d, 1, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestSameKeyRunsInOrder(t *testing.T) {
	d := New(Config{QueueLen: 32})
	defer d.Close(context.Background())

	var mu sync.Mutex
	var order []int

	// hold the worker so every submission queues behind the first job
	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Do(context.Background(), d, 7, func(ctx context.Context) (struct{}, error) {
			close(firstStarted)
			<-release
			return struct{}{}, nil
		})
	}()
	<-firstStarted

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			Do(context.Background(), d, 7, func(ctx context.Context) (struct{}, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return struct{}{}, nil
			})
		}()
		// give each submission time to land before the next, so queue
		// order matches submission order
		time.Sleep(20 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("jobs ran out of order: %v", order)
		}
	}
}

func TestSameKeyNeverOverlaps(t *testing.T) {
	d := New(Config{QueueLen: 64, Wait: 5 * time.Second})
	defer d.Close(context.Background())

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Do(context.Background(), d, 3, func(ctx context.Context) (struct{}, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxRunning); got != 1 {
		t.Fatalf("same-key jobs overlapped: max concurrency %d", got)
	}
}

func TestDifferentKeysRunInParallel(t *testing.T) {
	d := New(Config{Wait: 5 * time.Second})
	defer d.Close(context.Background())

	barrier := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)

	var wg sync.WaitGroup
	for _, key := range []int64{1, 2} {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			Do(context.Background(), d, key, func(ctx context.Context) (struct{}, error) {
				arrived.Done()
				<-barrier
				return struct{}{}, nil
			})
		}()
	}

	// both jobs must be inside their fn at once; if key 2 were serialized
	// behind key 1 this wait would never return
	done := make(chan struct{})
	go func() {
		arrived.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs on different keys did not run concurrently")
	}

	close(barrier)
	wg.Wait()
}

func TestWaitTimeoutJobStillCompletes(t *testing.T) {
	d := New(Config{Wait: 50 * time.Millisecond})
	defer d.Close(context.Background())

	completed := make(chan struct{})
	_, err := Do(context.Background(), d, 1, func(ctx context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		close(completed)
		return 1, nil
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("job abandoned after caller timed out")
	}
}

func TestCallerCancellationDoesNotCancelJob(t *testing.T) {
	d := New(Config{Wait: 5 * time.Second})
	defer d.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	sawCancel := make(chan bool, 1)

	started := make(chan struct{})
	go func() {
		<-started
		cancel()
	}()

	_, err := Do(ctx, d, 1, func(jobCtx context.Context) (int, error) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		sawCancel <- jobCtx.Err() != nil
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	select {
	case cancelled := <-sawCancel:
		if cancelled {
			t.Fatal("job context was cancelled along with the caller")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never finished")
	}
}

func TestQueueFull(t *testing.T) {
	d := New(Config{QueueLen: 1, Wait: 5 * time.Second})
	defer d.Close(context.Background())

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Do(context.Background(), d, 1, func(ctx context.Context) (struct{}, error) {
			close(firstStarted)
			<-release
			return struct{}{}, nil
		})
	}()
	<-firstStarted

	// fill the single queue slot
	wg.Add(1)
	go func() {
		defer wg.Done()
		Do(context.Background(), d, 1, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, nil
		})
	}()
	time.Sleep(50 * time.Millisecond)

	_, err := Do(context.Background(), d, 1, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	wg.Wait()
}

func TestCloseRejectsNewWork(t *testing.T) {
	d := New(Config{})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	_, err := Do(context.Background(), d, 1, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	d := New(Config{QueueLen: 8, Wait: 5 * time.Second})

	var ran int32
	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			Do(context.Background(), d, 1, func(ctx context.Context) (struct{}, error) {
				if i == 0 {
					close(firstStarted)
					<-release
				}
				atomic.AddInt32(&ran, 1)
				return struct{}{}, nil
			})
		}()
		if i == 0 {
			<-firstStarted
		} else {
			time.Sleep(20 * time.Millisecond)
		}
	}

	closeDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		closeDone <- d.Close(ctx)
	}()

	close(release)
	wg.Wait()

	if err := <-closeDone; err != nil {
		t.Fatalf("close did not drain in time: %v", err)
	}
	if got := atomic.LoadInt32(&ran); got != 4 {
		t.Fatalf("expected all 4 queued jobs to run, got %d", got)
	}
}

func TestWorkerRetiresAndRevives(t *testing.T) {
	d := New(Config{WorkerIdle: 30 * time.Millisecond})
	defer d.Close(context.Background())

	if _, err := Do(context.Background(), d, 1, func(ctx context.Context) (int, error) {
		return 1, nil
	}); err != nil {
		t.Fatalf("first job failed: %v", err)
	}

	// wait past the idle window, then verify the key still accepts work
	time.Sleep(100 * time.Millisecond)

	d.mu.Lock()
	_, alive := d.queues[1]
	d.mu.Unlock()
	if alive {
		t.Fatal("idle worker did not retire")
	}

	got, err := Do(context.Background(), d, 1, func(ctx context.Context) (int, error) {
		return 2, nil
	})
	if err != nil || got != 2 {
		t.Fatalf("job after retirement failed: %v %d", err, got)
	}
}
