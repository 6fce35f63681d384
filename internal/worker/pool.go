package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned when classifying after Stop.
var ErrPoolClosed = errors.New("decode pool closed")

// Classifier decides whether a file holds a workout
type Classifier interface {
	IsWorkout(ctx context.Context, path string) (bool, error)
}

type classifyJob struct {
	ctx    context.Context
	path   string
	result chan<- classifyResult
}

type classifyResult struct {
	workout bool
	err     error
}

// Pool is a fixed set of goroutines dedicated to CPU-bound FIT decoding.
// It is sized independently of the upload fan-out.
type Pool struct {
	size       int
	classifier Classifier
	logger     *zap.Logger

	jobs     chan classifyJob
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewPool creates a new decode pool
func NewPool(size int, classifier Classifier, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:       size,
		classifier: classifier,
		logger:     logger,
		jobs:       make(chan classifyJob),
	}
}

// Start starts the pool workers
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue and waits for the workers to drain
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With(zap.Int("decoder_id", id))
	logger.Debug("Decoder started")

	for job := range p.jobs {
		workout, err := p.classify(job)
		// result is buffered, the send never blocks
		job.result <- classifyResult{workout: workout, err: err}
	}

	logger.Debug("Decoder finished - no more jobs")
}

func (p *Pool) classify(job classifyJob) (workout bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic on %s: %v", job.path, r)
		}
	}()

	if err := job.ctx.Err(); err != nil {
		return false, err
	}
	return p.classifier.IsWorkout(job.ctx, job.path)
}

// Classify hands path to a decode worker and blocks until its single result
// arrives or ctx is done.
func (p *Pool) Classify(ctx context.Context, path string) (bool, error) {
	result := make(chan classifyResult, 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return false, ErrPoolClosed
	}
	select {
	case p.jobs <- classifyJob{ctx: ctx, path: path, result: result}:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return false, ctx.Err()
	}

	select {
	case r := <-result:
		return r.workout, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
