package copier

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"s3aclcopy/pkg/acl"
	"s3aclcopy/pkg/bucket"
	"s3aclcopy/pkg/listing"
	"s3aclcopy/pkg/progress"
	"s3aclcopy/pkg/s3api"
)

// worker copies one slice of a listing page. Workers share only the
// client session, the request counter and the resolved identities;
// there is no cross-worker work stealing.
type worker struct {
	client      s3api.API
	counter     *progress.RequestCounter
	reporter    progress.Reporter
	log         *logrus.Entry
	src, dst    Location
	me          bucket.Owner
	dstOwner    bucket.Owner
	maxAttempts int
	retryDelay  time.Duration
}

// item is a descriptor in flight through pass two.
type item struct {
	listing.Descriptor
	grants   []types.Grant
	attempts int
}

// run executes both passes over the slice. Pass one resolves the
// source ACL of every key; a failure there abandons the rest of the
// slice, reported through the result rather than lost silently. Pass
// two copies and re-ACLs each key, requeueing transient failures at
// the end of the work list.
func (w *worker) run(ctx context.Context, slice listing.Page) Result {
	var res Result

	items := make([]*item, 0, len(slice))
	for _, d := range slice {
		grants, err := acl.FetchGrants(ctx, w.client, w.src.Bucket, d.Key)
		if err != nil {
			w.log.WithError(err).WithField("key", d.Key).Error("ACL read failed, abandoning slice")
			res.Failed = append(res.Failed, KeyError{Key: d.Key, Attempts: 1, Err: err})
			// every other key in the slice is abandoned, including the
			// ones whose ACLs were already fetched
			res.Dropped += int64(len(slice) - 1)
			w.reporter.Report(w.counter.Drain())
			return res
		}
		items = append(items, &item{Descriptor: d, grants: grants})
		w.reporter.Report(w.counter.Drain())
	}

	for n := 0; n < len(items); n++ {
		it := items[n]

		copied, err := w.copyOne(ctx, it)
		if err != nil {
			it.attempts++
			if w.maxAttempts > 0 && it.attempts >= w.maxAttempts {
				w.log.WithError(err).WithFields(logrus.Fields{
					"key":      it.Key,
					"attempts": it.attempts,
				}).Error("giving up on key")
				res.Failed = append(res.Failed, KeyError{Key: it.Key, Attempts: it.attempts, Err: err})
			} else {
				w.log.WithError(err).WithField("key", it.Key).Warn("requeueing key")
				items = append(items, it)
				res.Retried++
				w.reporter.Retry()
				if w.retryDelay > 0 {
					time.Sleep(time.Duration(it.attempts) * w.retryDelay)
				}
			}
			w.reporter.Report(w.counter.Drain())
			continue
		}

		if copied {
			res.Copied++
		} else {
			res.Skipped++
		}
		w.reporter.Report(w.counter.Drain())
	}

	return res
}

// copyOne copies a single key and applies its merged ACL. The data
// copy is skipped when the destination already holds the same content
// fingerprint; the ACL is applied either way, which keeps reruns
// idempotent on data transfer without drifting on grants.
func (w *worker) copyOne(ctx context.Context, it *item) (copied bool, err error) {
	destKey := strings.Replace(it.Key, w.src.Prefix, w.dst.Prefix, 1)

	head, err := w.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(w.dst.Bucket),
		Key:    aws.String(destKey),
	})

	switch {
	case err == nil && aws.ToString(head.ETag) == it.ETag:
		// destination unchanged since a previous run

	case err != nil && !isNotFound(err):
		return false, err

	default:
		_, err = w.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(w.dst.Bucket),
			Key:        aws.String(destKey),
			CopySource: aws.String(w.src.Bucket + "/" + it.Key),
		})
		if err != nil {
			return false, err
		}
		copied = true
	}

	grants := acl.MergeOwnerFullControl(it.grants, w.dstOwner)
	if err := acl.Apply(ctx, w.client, w.dst.Bucket, destKey, w.me, grants); err != nil {
		return copied, err
	}

	return copied, nil
}
