package forwarding

import (
	"context"
	"fmt"
	"sort"

	"export-consortium/internal/storage"
)

// Sink is the durable dead-letter store. Any Repository backend works; the
// handoff id is the key.
type Sink struct {
	repo storage.Repository[DeadLetter]
}

func NewSink(repo storage.Repository[DeadLetter]) *Sink {
	return &Sink{repo: repo}
}

func (s *Sink) Put(ctx context.Context, dl DeadLetter) error {
	if err := s.repo.Put(ctx, dl.Handoff.ID, dl); err != nil {
		return fmt.Errorf("persist dead letter %s: %w", dl.Handoff.ID, err)
	}
	return nil
}

func (s *Sink) Get(ctx context.Context, handoffID string) (DeadLetter, error) {
	return s.repo.Get(ctx, handoffID)
}

// List returns dead letters oldest failure first.
func (s *Sink) List(ctx context.Context) ([]DeadLetter, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].FailedAt.Before(items[j].FailedAt) })
	return items, nil
}

func (s *Sink) Remove(ctx context.Context, handoffID string) error {
	return s.repo.Delete(ctx, handoffID)
}
