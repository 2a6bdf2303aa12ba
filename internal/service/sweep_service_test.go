package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HScode1/Tweeter-automation-sub000/internal/models"
	"github.com/HScode1/Tweeter-automation-sub000/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []int64
	status    string
}

func (f *fakePublisher) PublishPost(ctx context.Context, post *models.Post) transfer.PostResult {
	f.mu.Lock()
	f.published = append(f.published, post.ID)
	f.mu.Unlock()

	status := f.status
	if status == "" {
		status = transfer.ResultPublished
	}
	return transfer.PostResult{PostID: post.ID, Status: status}
}

func TestRunSweepProcessesAllDuePosts(t *testing.T) {
	pr := newFakePostRepo()
	pr.duePosts = []*models.Post{
		{ID: 1, Status: models.PostStatusScheduled},
		{ID: 2, Status: models.PostStatusScheduled},
		{ID: 3, Status: models.PostStatusPending},
	}
	pub := &fakePublisher{}

	s := NewSweepService(pr, pub)

	summary, err := s.RunSweep(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	require.Len(t, summary.Results, 3)

	// Results keep the order of the due list even though publication
	// runs concurrently.
	for i, post := range pr.duePosts {
		assert.Equal(t, post.ID, summary.Results[i].PostID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, pub.published)
}

func TestRunSweepEmpty(t *testing.T) {
	pr := newFakePostRepo()
	pub := &fakePublisher{}

	s := NewSweepService(pr, pub)

	summary, err := s.RunSweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, summary.Results)
	assert.Empty(t, pub.published)
}

func TestRunSweepDueQueryError(t *testing.T) {
	pr := newFakePostRepo()
	pr.dueErr = errors.New("connection refused")

	s := NewSweepService(pr, &fakePublisher{})

	summary, err := s.RunSweep(context.Background(), time.Now())
	assert.Error(t, err)
	assert.Nil(t, summary)
}

func TestRunSweepReportsIndividualFailures(t *testing.T) {
	pr := newFakePostRepo()
	pr.duePosts = []*models.Post{{ID: 5, Status: models.PostStatusScheduled}}
	pub := &fakePublisher{status: transfer.ResultFailed}

	s := NewSweepService(pr, pub)

	summary, err := s.RunSweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, transfer.ResultFailed, summary.Results[0].Status)
}
