package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/api/metrics"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const channelBuffer = 256

const (
	opHash   = "hash"
	opVerify = "verify"
)

// ErrPoolClosed is returned for jobs submitted after the pool stopped.
var ErrPoolClosed = errors.New("hash pool closed")

type hashJob struct {
	ctx       context.Context
	op        string
	plaintext string
	digest    string
	result    chan hashResult
}

type hashResult struct {
	digest string
	ok     bool
	err    error
}

// HashPool runs password hashing on a fixed set of worker goroutines so
// CPU-bound bcrypt work is bounded independently of request concurrency.
// Every Hash or Verify call is exactly one job on one worker.
type HashPool struct {
	inner   ports.PasswordHasher
	jobs    chan hashJob
	closed  chan struct{}
	workers int
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewHashPool creates a HashPool wrapping inner with numWorkers workers.
// If numWorkers <= 0, runtime.NumCPU() is used.
func NewHashPool(numWorkers int, inner ports.PasswordHasher, log zerolog.Logger) *HashPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &HashPool{
		inner:   inner,
		jobs:    make(chan hashJob, channelBuffer),
		closed:  make(chan struct{}),
		workers: numWorkers,
		log:     log,
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (p *HashPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		<-ctx.Done()
		close(p.closed)
	}()
}

// Wait blocks until every worker has returned after cancellation.
func (p *HashPool) Wait() {
	p.wg.Wait()
}

func (p *HashPool) Hash(ctx context.Context, plaintext string) (string, error) {
	res, err := p.submit(ctx, hashJob{op: opHash, plaintext: plaintext})
	if err != nil {
		return "", err
	}
	return res.digest, res.err
}

func (p *HashPool) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	res, err := p.submit(ctx, hashJob{op: opVerify, plaintext: plaintext, digest: digest})
	if err != nil {
		return false, err
	}
	return res.ok, res.err
}

func (p *HashPool) submit(ctx context.Context, job hashJob) (hashResult, error) {
	job.ctx = ctx
	job.result = make(chan hashResult, 1)

	metrics.HashQueueDepth.Inc()
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		metrics.HashQueueDepth.Dec()
		return hashResult{}, fmt.Errorf("hash pool: %w", ctx.Err())
	case <-p.closed:
		metrics.HashQueueDepth.Dec()
		return hashResult{}, ErrPoolClosed
	}

	select {
	case res := <-job.result:
		return res, nil
	case <-ctx.Done():
		return hashResult{}, fmt.Errorf("hash pool: %w", ctx.Err())
	case <-p.closed:
		return hashResult{}, ErrPoolClosed
	}
}

func (p *HashPool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			metrics.HashQueueDepth.Dec()
			if err := job.ctx.Err(); err != nil {
				job.result <- hashResult{err: err}
				continue
			}
			job.result <- p.run(job, id)
		}
	}
}

func (p *HashPool) run(job hashJob, workerID int) hashResult {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues(job.op).Observe(time.Since(start).Seconds())
	}()

	switch job.op {
	case opHash:
		digest, err := p.inner.Hash(job.ctx, job.plaintext)
		if err != nil && !errors.Is(err, domain.ErrValidation) {
			p.log.Error().Err(err).Int("worker_id", workerID).Msg("password hashing failed")
		}
		return hashResult{digest: digest, err: err}
	case opVerify:
		ok, err := p.inner.Verify(job.ctx, job.plaintext, job.digest)
		return hashResult{ok: ok, err: err}
	}
	return hashResult{err: fmt.Errorf("hash pool: unknown op %q", job.op)}
}
