package fingerprint

import (
	"context"

	"github.com/kozaktomas/fuzzysearch/internal/constants"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one hashing job.
type Result struct {
	Fingerprint Fingerprint
	Err         error
}

// Worker runs hashing jobs concurrently with a bounded number of slots.
// Jobs share no mutable state, so a slow or failing image never affects another.
type Worker struct {
	sem chan struct{}
}

// NewWorker creates a worker pool with the given number of slots.
// Non-positive sizes fall back to constants.HashWorkers.
func NewWorker(size int) *Worker {
	if size <= 0 {
		size = constants.HashWorkers
	}
	return &Worker{sem: make(chan struct{}, size)}
}

// Size returns the number of concurrent hashing slots.
func (w *Worker) Size() int {
	return cap(w.sem)
}

// Submit schedules a hashing job. The returned channel receives exactly one
// Result and is then closed.
func (w *Worker) Submit(ctx context.Context, imageData []byte) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)

		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			out <- Result{Err: ctx.Err()}
			return
		}
		defer func() { <-w.sem }()

		fp, err := Compute(imageData)
		out <- Result{Fingerprint: fp, Err: err}
	}()
	return out
}

// Compute hashes one image on the pool and waits for the result.
func (w *Worker) Compute(ctx context.Context, imageData []byte) (Fingerprint, error) {
	select {
	case r := <-w.Submit(ctx, imageData):
		return r.Fingerprint, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Loader returns the bytes of the i-th image of a batch. It runs inside the
// job, so at most Size images of a batch are held in memory at once.
type Loader func(ctx context.Context, i int) ([]byte, error)

// DoneFunc is called once per finished job with the loaded bytes (nil when
// loading failed) and the job's result.
type DoneFunc func(i int, data []byte, r Result)

// Inputs adapts images already in memory to a Loader.
func Inputs(inputs [][]byte) Loader {
	return func(_ context.Context, i int) ([]byte, error) {
		return inputs[i], nil
	}
}

// ComputeAll hashes a batch of n images fetched through load. Results are
// index-aligned; loading and decoding failures are reported in their Result
// rather than aborting the batch. onDone may be nil and may be called
// concurrently.
func (w *Worker) ComputeAll(ctx context.Context, n int, load Loader, onDone DoneFunc) ([]Result, error) {
	results := make([]Result, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.Size())

	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := load(gctx, i)
			if err == nil {
				var fp Fingerprint
				fp, err = w.Compute(gctx, data)
				results[i] = Result{Fingerprint: fp, Err: err}
			} else {
				results[i] = Result{Err: err}
			}
			if onDone != nil {
				onDone(i, data, results[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
