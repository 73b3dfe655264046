// Package worker runs generation pipelines in the background. A submit
// returns the generation log id immediately; clients poll the log for
// progress. There is no cancellation: a scheduled run proceeds to
// completion or fatal failure.
package worker

import (
	"context"
	"fmt"
	"sync"

	"podgen/internal/core"
	"podgen/internal/genlog"
	"podgen/internal/logger"
	"podgen/internal/pipeline"
)

// DefaultWorkers is the number of concurrent generation runs.
const DefaultWorkers = 2

const queueBuffer = 16

// Runner executes one generation run. Satisfied by *pipeline.Orchestrator.
type Runner interface {
	NewLog(ctx context.Context, podcastID string) (genlog.Log, error)
	Run(ctx context.Context, podcast core.Podcast, l genlog.Log, opts pipeline.GenerateOptions) (pipeline.Result, error)
}

type job struct {
	podcast core.Podcast
	log     genlog.Log
	opts    pipeline.GenerateOptions
}

// Queue schedules generation runs across a fixed pool of workers.
// Different podcasts' runs are independent; their only shared state is the
// persistent store.
type Queue struct {
	runner Runner
	jobs   chan job
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a queue with the given worker count.
func NewQueue(runner Runner, workers int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	q := &Queue{
		runner: runner,
		jobs:   make(chan job, queueBuffer),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Submit creates and persists a generation log, schedules the run, and
// returns the log id for polling. Rejected submissions create no log. The
// request context covers only log creation; the run itself gets a fresh
// background context since there is no cancellation once scheduled.
func (q *Queue) Submit(ctx context.Context, podcast core.Podcast, opts pipeline.GenerateOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", fmt.Errorf("worker queue is shut down")
	}
	if len(q.jobs) == cap(q.jobs) {
		return "", fmt.Errorf("worker queue is full")
	}

	l, err := q.runner.NewLog(ctx, podcast.ID)
	if err != nil {
		return "", fmt.Errorf("failed to create generation log: %w", err)
	}

	// Only Submit adds jobs and it holds the lock, so the capacity
	// checked above still stands and this send cannot block.
	q.jobs <- job{podcast: podcast, log: l, opts: opts}
	logger.Get().Info("Generation run scheduled", "podcast_id", podcast.ID, "log_id", l.ID)
	return l.ID, nil
}

// Close stops accepting submissions and waits for in-flight runs to
// finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		// Fresh context per run: the triggering request has already been
		// answered and must not cancel the pipeline.
		_, err := q.runner.Run(context.Background(), j.podcast, j.log, j.opts)
		if err != nil {
			logger.Get().Warn("Background generation run failed",
				"podcast_id", j.podcast.ID, "log_id", j.log.ID, "error", err)
		}
	}
}
