package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/testkube/suiterunner/internal/suite"
)

// RunFunc starts one run of the suite and blocks until it completes.
type RunFunc func(ctx context.Context) error

// Worker triggers a suite run on a fixed interval.
type Worker struct {
	run      RunFunc
	interval time.Duration
}

func NewWorker(run RunFunc, interval time.Duration) *Worker {
	return &Worker{
		run:      run,
		interval: interval,
	}
}

// Start blocks, running the suite on every tick until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	log.Printf("Worker: scheduling suite runs every %s", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Worker: stopping...")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	err := w.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, suite.ErrRunInProgress):
		log.Println("Worker: run already in progress, skipping")
	default:
		log.Printf("Worker: scheduled run failed: %v", err)
	}
}
