package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/HScode1/Tweeter-automation-sub000/internal/repository"
	"github.com/HScode1/Tweeter-automation-sub000/internal/transfer"
)

type SweepService interface {
	RunSweep(ctx context.Context, now time.Time) (*transfer.SweepSummary, error)
}

type sweepService struct {
	pr        repository.PostRepository
	publisher PublisherService
}

func NewSweepService(pr repository.PostRepository, publisher PublisherService) SweepService {
	return &sweepService{
		pr:        pr,
		publisher: publisher,
	}
}

// RunSweep publishes every post due at the given time. Posts are
// processed concurrently and the sweep waits for all of them to settle;
// individual failures land in the results, only a failing due-post query
// returns an error.
func (s *sweepService) RunSweep(ctx context.Context, now time.Time) (*transfer.SweepSummary, error) {
	posts, err := s.pr.ListDue(ctx, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	results := make([]transfer.PostResult, len(posts))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10) // Concurrency limit

	for i := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			results[i] = s.publisher.PublishPost(ctx, posts[i])
		}(i)
	}

	wg.Wait()

	return &transfer.SweepSummary{
		Processed: len(posts),
		Results:   results,
	}, nil
}
