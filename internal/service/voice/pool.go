package voice

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// InferencePool bounds the number of concurrent model calls across all
// sessions. Calls queue on the semaphore in FIFO order.
type InferencePool struct {
	sem  *semaphore.Weighted
	size int
}

func NewInferencePool(size int) *InferencePool {
	if size <= 0 {
		size = 1
	}
	return &InferencePool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Do runs fn once a slot is free. A panic in fn is returned as an error.
func (p *InferencePool) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for inference slot: %w", err)
	}
	defer p.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inference call panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (p *InferencePool) Size() int {
	return p.size
}
