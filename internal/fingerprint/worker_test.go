package fingerprint

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewWorkerDefaultSize(t *testing.T) {
	if w := NewWorker(0); w.Size() <= 0 {
		t.Errorf("expected positive default size, got %d", w.Size())
	}
	if w := NewWorker(3); w.Size() != 3 {
		t.Errorf("Size() = %d; want 3", w.Size())
	}
}

func TestWorkerSubmit(t *testing.T) {
	w := NewWorker(2)
	data := encodePNG(createTestImage(50, 50, color.White))

	want, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	ch := w.Submit(context.Background(), data)
	r, ok := <-ch
	if !ok {
		t.Fatal("expected a result before channel close")
	}
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if r.Fingerprint != want {
		t.Errorf("fingerprint = %d; want %d", r.Fingerprint, want)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after the single result")
	}
}

func TestWorkerConcurrentIsolation(t *testing.T) {
	w := NewWorker(4)
	good := encodePNG(createGradientImage(64, 64))
	bad := []byte("definitely not an image")

	want, err := Compute(good)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := good
			if i%2 == 1 {
				input = bad
			}
			fp, err := w.Compute(context.Background(), input)
			if i%2 == 1 {
				if !IsDecodeError(err) {
					t.Errorf("job %d: expected DecodeError, got %v", i, err)
				}
				failures.Add(1)
				return
			}
			if err != nil || fp != want {
				t.Errorf("job %d: got (%d, %v); want %d", i, fp, err, want)
			}
		}(i)
	}
	wg.Wait()

	if failures.Load() != 16 {
		t.Errorf("expected 16 failures, got %d", failures.Load())
	}
}

func TestWorkerComputeAll(t *testing.T) {
	w := NewWorker(3)
	inputs := [][]byte{
		encodePNG(createTestImage(20, 20, color.Black)),
		nil,
		encodePNG(createGradientImage(40, 40)),
	}

	var done atomic.Int32
	results, err := w.ComputeAll(context.Background(), len(inputs), Inputs(inputs), func(int, []byte, Result) { done.Add(1) })
	if err != nil {
		t.Fatalf("ComputeAll failed: %v", err)
	}
	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", results[0].Err, results[2].Err)
	}
	if !IsDecodeError(results[1].Err) {
		t.Errorf("expected DecodeError for empty input, got %v", results[1].Err)
	}
	if done.Load() != 3 {
		t.Errorf("onDone called %d times; want 3", done.Load())
	}

	want, _ := Compute(inputs[2])
	if results[2].Fingerprint != want {
		t.Errorf("results not index-aligned: %d vs %d", results[2].Fingerprint, want)
	}
}

func TestWorkerCancelled(t *testing.T) {
	w := NewWorker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := [][]byte{encodePNG(createTestImage(8, 8, color.White))}
	_, err := w.ComputeAll(ctx, len(inputs), Inputs(inputs), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWorkerComputeAllLoadsLazily(t *testing.T) {
	w := NewWorker(2)
	img := encodePNG(createGradientImage(32, 32))
	errMissing := errors.New("missing file")

	var loading, peak atomic.Int32
	load := func(_ context.Context, i int) ([]byte, error) {
		n := loading.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer loading.Add(-1)
		if i == 3 {
			return nil, errMissing
		}
		return img, nil
	}

	var mu sync.Mutex
	seen := make(map[int][]byte)
	results, err := w.ComputeAll(context.Background(), 10, load, func(i int, data []byte, r Result) {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = data
	})
	if err != nil {
		t.Fatalf("ComputeAll failed: %v", err)
	}

	if peak.Load() > int32(w.Size()) {
		t.Errorf("%d images loaded at once; want at most %d", peak.Load(), w.Size())
	}
	if !errors.Is(results[3].Err, errMissing) {
		t.Errorf("expected load error for job 3, got %v", results[3].Err)
	}
	if seen[3] != nil {
		t.Error("failed load should report nil data")
	}
	if len(seen) != 10 || len(seen[0]) != len(img) {
		t.Errorf("onDone saw %d jobs", len(seen))
	}
}
