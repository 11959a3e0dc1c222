// Package listing enumerates the source keys under a prefix, one page
// at a time.
package listing

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Descriptor identifies one source object to copy. Its ACL grants are
// resolved lazily by the worker that receives it.
type Descriptor struct {
	Key  string
	ETag string
}

// Page is one listing page of descriptors, in listing order.
type Page []Descriptor

// Enumerator walks every key under a prefix. Continuation tokens are
// handled internally; consuming all pages yields each key exactly once.
type Enumerator struct {
	bucket    string
	paginator *s3.ListObjectsV2Paginator
}

// New creates an enumerator for the keys of bucket starting with prefix.
func New(client s3.ListObjectsV2APIClient, bucket, prefix string) *Enumerator {
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	return &Enumerator{bucket: bucket, paginator: paginator}
}

// HasMorePages reports whether another page is available.
func (e *Enumerator) HasMorePages() bool {
	return e.paginator.HasMorePages()
}

// Next fetches the next listing page. Callers must fully process each
// page before requesting the next one; that keeps at most one page of
// keys in flight.
func (e *Enumerator) Next(ctx context.Context) (Page, error) {
	out, err := e.paginator.NextPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket '%s': %w", e.bucket, err)
	}

	page := make(Page, 0, len(out.Contents))
	for _, obj := range out.Contents {
		page = append(page, Descriptor{
			Key:  aws.ToString(obj.Key),
			ETag: aws.ToString(obj.ETag),
		})
	}
	return page, nil
}
