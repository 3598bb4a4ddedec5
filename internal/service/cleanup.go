package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/pkg/blob"
	"github.com/Gopher0727/SocialSync/internal/utils"
)

const blobCleanupTimeout = 30 * time.Second

// BlobCleaner deletes objects whose rows are gone. Failures are only logged.
type BlobCleaner struct {
	store  blob.Store
	pool   *utils.WorkerPool
	logger *zap.Logger
}

// NewBlobCleaner runs deletions on pool; a nil pool deletes inline.
func NewBlobCleaner(store blob.Store, pool *utils.WorkerPool, logger *zap.Logger) *BlobCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobCleaner{store: store, pool: pool, logger: logger}
}

// Remove 在提交之后调用，异步删除
func (c *BlobCleaner) Remove(paths ...string) {
	if c == nil || c.store == nil || len(paths) == 0 {
		return
	}
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), blobCleanupTimeout)
		defer cancel()
		c.RemoveNow(ctx, paths...)
	}
	if c.pool == nil || !c.pool.Submit(job) {
		job()
	}
}

// RemoveNow 同步删除，用于事务失败后的补偿
func (c *BlobCleaner) RemoveNow(ctx context.Context, paths ...string) {
	if c == nil || c.store == nil {
		return
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := c.store.Delete(ctx, p); err != nil {
			c.logger.Warn("failed to delete blob", zap.String("path", p), zap.Error(err))
		}
	}
}
