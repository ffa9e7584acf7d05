package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"dailylog-bot/internal/blob"
	"dailylog-bot/internal/scratch"
)

// BlobRepository keeps the allow-list as a JSON array of ids in the remote
// folder, next to the daily logs.
type BlobRepository struct {
	blobs   blob.Store
	scratch *scratch.Manager
	name    string
}

func NewBlobRepository(blobs blob.Store, sm *scratch.Manager, name string) *BlobRepository {
	return &BlobRepository{blobs: blobs, scratch: sm, name: name}
}

func (r *BlobRepository) LoadAll(ctx context.Context) ([]int64, error) {
	lease := r.scratch.Acquire(r.name)
	defer lease.Release()

	ok, err := r.blobs.Download(ctx, r.name, lease.Path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []int64{}, nil
	}
	b, err := os.ReadFile(lease.Path)
	if err != nil {
		return nil, fmt.Errorf("read allow-list copy: %w", err)
	}
	if len(b) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("decode allow-list: %w", err)
	}
	return ids, nil
}

func (r *BlobRepository) Save(ctx context.Context, ids []int64) error {
	lease := r.scratch.Acquire(r.name)
	defer lease.Release()

	if ids == nil {
		ids = []int64{}
	}
	b, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("encode allow-list: %w", err)
	}
	if err := os.WriteFile(lease.Path, b, 0o644); err != nil {
		return fmt.Errorf("write allow-list copy: %w", err)
	}
	return r.blobs.Upload(ctx, r.name, lease.Path)
}
