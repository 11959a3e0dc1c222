package s3api

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"s3aclcopy/pkg/progress"
)

// CountingClient wraps an API and increments a shared request counter
// on every call. This is the only place requests are counted; nothing
// is instrumented implicitly.
type CountingClient struct {
	api     API
	counter *progress.RequestCounter
}

// NewCountingClient creates a counting decorator around api.
func NewCountingClient(api API, counter *progress.RequestCounter) *CountingClient {
	return &CountingClient{api: api, counter: counter}
}

func (c *CountingClient) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	c.counter.Add(1)
	return c.api.ListBuckets(ctx, params, optFns...)
}

func (c *CountingClient) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	c.counter.Add(1)
	return c.api.HeadBucket(ctx, params, optFns...)
}

func (c *CountingClient) GetBucketAcl(ctx context.Context, params *s3.GetBucketAclInput, optFns ...func(*s3.Options)) (*s3.GetBucketAclOutput, error) {
	c.counter.Add(1)
	return c.api.GetBucketAcl(ctx, params, optFns...)
}

func (c *CountingClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	c.counter.Add(1)
	return c.api.ListObjectsV2(ctx, params, optFns...)
}

func (c *CountingClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	c.counter.Add(1)
	return c.api.HeadObject(ctx, params, optFns...)
}

func (c *CountingClient) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	c.counter.Add(1)
	return c.api.CopyObject(ctx, params, optFns...)
}

func (c *CountingClient) GetObjectAcl(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error) {
	c.counter.Add(1)
	return c.api.GetObjectAcl(ctx, params, optFns...)
}

func (c *CountingClient) PutObjectAcl(ctx context.Context, params *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	c.counter.Add(1)
	return c.api.PutObjectAcl(ctx, params, optFns...)
}

var _ API = (*CountingClient)(nil)
