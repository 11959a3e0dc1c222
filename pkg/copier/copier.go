// Package copier orchestrates the concurrent prefix copy: it resolves
// both buckets and the caller identity, pages through the source
// listing, and fans each page out to per-slice workers.
package copier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"s3aclcopy/pkg/bucket"
	"s3aclcopy/pkg/listing"
	"s3aclcopy/pkg/partition"
	"s3aclcopy/pkg/progress"
	"s3aclcopy/pkg/s3api"
)

// Location names a bucket and a key prefix within it.
type Location struct {
	Bucket string
	Prefix string
}

// Options configures one copy run.
type Options struct {
	Source  Location
	Dest    Location
	Threads int

	// MaxAttempts caps how often a single key is tried before it is
	// reported as failed. Zero disables the cap and retries forever.
	MaxAttempts int

	// RetryDelay is the base pause before a requeued key is tried
	// again, scaled linearly by the attempt count.
	RetryDelay time.Duration
}

// KeyError records a key that could not be copied.
type KeyError struct {
	Key      string
	Attempts int
	Err      error
}

func (e KeyError) Error() string {
	return fmt.Sprintf("%s (after %d attempts): %v", e.Key, e.Attempts, e.Err)
}

// Result aggregates the outcome of a run.
type Result struct {
	Copied  int64
	Skipped int64
	Retried int64

	// Dropped counts keys never attempted because their slice was
	// abandoned after an ACL read failure.
	Dropped int64

	Failed []KeyError
}

// Ok reports whether every listed key was copied or skipped.
func (r Result) Ok() bool {
	return len(r.Failed) == 0 && r.Dropped == 0
}

func (r *Result) merge(other Result) {
	r.Copied += other.Copied
	r.Skipped += other.Skipped
	r.Retried += other.Retried
	r.Dropped += other.Dropped
	r.Failed = append(r.Failed, other.Failed...)
}

// Copier copies every object under a source prefix into a destination
// prefix, preserving ACLs and granting the destination bucket owner
// full control of each copy.
type Copier struct {
	client   s3api.API
	counter  *progress.RequestCounter
	reporter progress.Reporter
	log      *logrus.Entry
	opts     Options
}

// New creates a copier. The client is shared by all workers and must
// be safe for concurrent use; counter must be the same counter the
// client's instrumentation increments.
func New(client s3api.API, counter *progress.RequestCounter, reporter progress.Reporter, log *logrus.Entry, opts Options) *Copier {
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	return &Copier{
		client:   client,
		counter:  counter,
		reporter: reporter,
		log:      log,
		opts:     opts,
	}
}

// Run executes the copy and returns the aggregated result. An error is
// returned only for setup failures (inaccessible buckets, unresolvable
// caller identity) and listing failures; per-key failures are reported
// through the result.
func (c *Copier) Run(ctx context.Context) (Result, error) {
	var total Result
	start := time.Now()

	src, _, err := bucket.Resolve(ctx, c.client, c.opts.Source.Bucket)
	if err != nil {
		return total, fmt.Errorf("source: %w", err)
	}

	dst, dstOwner, err := bucket.Resolve(ctx, c.client, c.opts.Dest.Bucket)
	if err != nil {
		return total, fmt.Errorf("destination: %w", err)
	}

	me, err := bucket.CallerIdentity(ctx, c.client)
	if err != nil {
		return total, err
	}

	c.log.WithFields(logrus.Fields{
		"source":      src.Name + ":" + c.opts.Source.Prefix,
		"destination": dst.Name + ":" + c.opts.Dest.Prefix,
		"dest_owner":  dstOwner.ID,
		"threads":     c.opts.Threads,
	}).Info("starting copy")

	enum := listing.New(c.client, src.Name, c.opts.Source.Prefix)
	for enum.HasMorePages() {
		page, err := enum.Next(ctx)
		if err != nil {
			return total, err
		}

		// Every worker for this page is joined before the next page
		// is listed; at most one page of keys is in flight.
		slices := partition.Split(page, c.opts.Threads)
		results := make([]Result, len(slices))

		var wg sync.WaitGroup
		for i, slice := range slices {
			wg.Add(1)
			go func(i int, slice listing.Page) {
				defer wg.Done()
				w := &worker{
					client:      c.client,
					counter:     c.counter,
					reporter:    c.reporter,
					log:         c.log,
					src:         c.opts.Source,
					dst:         c.opts.Dest,
					me:          me,
					dstOwner:    dstOwner,
					maxAttempts: c.opts.MaxAttempts,
					retryDelay:  c.opts.RetryDelay,
				}
				results[i] = w.run(ctx, slice)
			}(i, slice)
		}
		wg.Wait()

		for _, r := range results {
			total.merge(r)
		}
	}

	c.log.WithFields(logrus.Fields{
		"copied":  total.Copied,
		"skipped": total.Skipped,
		"retried": total.Retried,
		"dropped": total.Dropped,
		"failed":  len(total.Failed),
		"elapsed": time.Since(start).String(),
	}).Info("copy finished")

	return total, nil
}
