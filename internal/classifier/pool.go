package classifier

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/fusion"
)

type job struct {
	ctx    context.Context
	data   []byte
	result chan jobResult
}

type jobResult struct {
	evidence *fusion.DetectionEvidence
	err      error
}

// pool serializes classifier inference through a fixed set of workers.
// The native runtime owns its own threading; bounding concurrent
// inferences keeps memory predictable under batch load.
type pool struct {
	backend Classifier
	jobs    chan job
	wg      sync.WaitGroup
	logger  *zap.Logger

	closeOnce sync.Once
}

func newPool(backend Classifier, workers int, logger *zap.Logger) *pool {
	p := &pool{
		backend: backend,
		jobs:    make(chan job),
		logger:  logger,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}

	logger.Info("Classifier worker pool started",
		zap.String("model", backend.ModelName()),
		zap.Int("workers", workers))

	return p
}

func (p *pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := j.ctx.Err(); err != nil {
			j.result <- jobResult{err: err}
			continue
		}
		evidence, err := p.backend.Classify(j.ctx, j.data)
		if err != nil {
			p.logger.Debug("Classifier inference failed",
				zap.Int("worker", id), zap.Error(err))
		}
		j.result <- jobResult{evidence: evidence, err: err}
	}
}

func (p *pool) Classify(ctx context.Context, data []byte) (*fusion.DetectionEvidence, error) {
	j := job{ctx: ctx, data: data, result: make(chan jobResult, 1)}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return nil, fmt.Errorf("classification not started: %w", ctx.Err())
	}

	// Once a worker picked the job up, the inference runs to completion;
	// a cancelled caller only stops waiting for the answer.
	select {
	case res := <-j.result:
		return res.evidence, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("classification abandoned: %w", ctx.Err())
	}
}

func (p *pool) ModelName() string {
	return p.backend.ModelName()
}

func (p *pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
	return p.backend.Close()
}
