package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

func zeroLoad(ctx context.Context, sourceID string) (uint64, error) {
	return 0, nil
}

func TestReserveStrictlyIncreasing(t *testing.T) {
	tr := NewTracker(zeroLoad)
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		var got uint64
		err := tr.Reserve(ctx, "src-a", func(seq uint64) error {
			got = seq
			return nil
		})
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if got != want {
			t.Fatalf("expected seq %d, got %d", want, got)
		}
	}
}

func TestReserveFailureConsumesNothing(t *testing.T) {
	tr := NewTracker(zeroLoad)
	ctx := context.Background()
	boom := errors.New("buffer full")

	err := tr.Reserve(ctx, "src-a", func(seq uint64) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}

	var got uint64
	if err := tr.Reserve(ctx, "src-a", func(seq uint64) error {
		got = seq
		return nil
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got != 1 {
		t.Errorf("failed reservation consumed a sequence number: got %d, want 1", got)
	}
}

func TestReserveRecoversFromStore(t *testing.T) {
	tr := NewTracker(func(ctx context.Context, sourceID string) (uint64, error) {
		return 41, nil
	})

	var got uint64
	if err := tr.Reserve(context.Background(), "src-a", func(seq uint64) error {
		got = seq
		return nil
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got != 42 {
		t.Errorf("expected recovery to continue at 42, got %d", got)
	}
}

func TestReserveLoadError(t *testing.T) {
	loadErr := errors.New("store unavailable")
	tr := NewTracker(func(ctx context.Context, sourceID string) (uint64, error) {
		return 0, loadErr
	})

	err := tr.Reserve(context.Background(), "src-a", func(seq uint64) error { return nil })
	if !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestReserveConcurrentGapFree(t *testing.T) {
	tr := NewTracker(zeroLoad)
	ctx := context.Background()

	const n = 200
	var (
		mu   sync.Mutex
		seqs []uint64
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Reserve(ctx, "src-a", func(seq uint64) error {
				mu.Lock()
				seqs = append(seqs, seq)
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if len(seqs) != n {
		t.Fatalf("expected %d assignments, got %d", n, len(seqs))
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("sequence numbers not gap-free: position %d holds %d", i, seq)
		}
	}
}

func TestCountersIndependentPerSource(t *testing.T) {
	tr := NewTracker(zeroLoad)
	ctx := context.Background()

	for _, src := range []string{"a", "b"} {
		var got uint64
		if err := tr.Reserve(ctx, src, func(seq uint64) error {
			got = seq
			return nil
		}); err != nil {
			t.Fatalf("reserve %s: %v", src, err)
		}
		if got != 1 {
			t.Errorf("source %s should start at 1, got %d", src, got)
		}
	}
	if tr.Last("a") != 1 || tr.Last("b") != 1 {
		t.Error("Last should report per-source counters")
	}
}
