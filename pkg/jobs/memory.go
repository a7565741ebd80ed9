package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"igfetch/pkg/instagram"
)

// MemoryRepository keeps jobs in a map for the life of the process
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	seq  map[string]int64
	next int64
	now  func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
		seq:  make(map[string]int64),
		now:  time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, url string, contentType instagram.ContentType) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Type:      contentType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	r.next++
	r.seq[job.ID] = r.next
	return job.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, u Update) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := job.Clone()
	if err := u.Apply(updated, r.now().UTC()); err != nil {
		return nil, err
	}
	r.jobs[id] = updated
	return updated.Clone(), nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		list = append(list, job)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return r.seq[list[i].ID] > r.seq[list[j].ID]
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*Job, len(list))
	for i, job := range list {
		out[i] = job.Clone()
	}
	return out, nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
