// Package resource implements the Controller for global limits and governance.
//
// The Controller provides centralized management of four resource types:
//
//   - Memory: Track and limit vector memory (non-blocking, fail-fast)
//   - Workers: Bound the goroutines used by batch inserts and queries
//   - Background: Limit concurrent snapshot and maintenance jobs
//   - IO: Rate-limit snapshot IO to avoid starving foreground queries
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.AcquireMemory(1024*1024); err != nil {
//	    // ErrMemoryLimitExceeded - caller decides retry/backoff
//	}
//	defer rc.ReleaseMemory(1024*1024)
//
// # Worker Pool
//
// ForEach fans work out over an errgroup limited to MaxWorkers goroutines.
// Each task additionally holds a slot of a controller-wide semaphore, so
// concurrent batches sharing a controller stay within the same bound:
//
//	err := rc.ForEach(ctx, len(items), func(ctx context.Context, i int) error {
//	    return process(ctx, items[i])
//	})
//
// # IO Rate Limiting
//
// Token bucket rate limiter for snapshot IO:
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024, // 100MB/s
//	})
//
//	writer := resource.NewRateLimitedWriter(ctx, file, rc)
//	reader := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops and
// ForEach runs sequentially. This allows optional resource limiting without
// nil checks everywhere.
package resource
