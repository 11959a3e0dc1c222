// Package bucket resolves bucket handles and owner identities.
package bucket

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"s3aclcopy/pkg/s3api"
)

// Handle is a reference to one bucket within the shared client session.
type Handle struct {
	Name string
}

// Owner identifies a canonical S3 user.
type Owner struct {
	ID          string
	DisplayName string
}

// Resolve verifies that the named bucket is accessible and returns its
// handle together with its owning identity. Any failure here is fatal
// to the run: a missing or unreadable bucket invalidates the whole
// copy, so callers abort rather than retry.
func Resolve(ctx context.Context, client s3api.API, name string) (Handle, Owner, error) {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return Handle{}, Owner{}, fmt.Errorf("bucket '%s' is not accessible: %w", name, err)
	}

	// Bucket metadata carries no owner in SDK v2; the ACL does.
	acl, err := client.GetBucketAcl(ctx, &s3.GetBucketAclInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return Handle{}, Owner{}, fmt.Errorf("failed to read owner of bucket '%s': %w", name, err)
	}
	if acl.Owner == nil {
		return Handle{}, Owner{}, fmt.Errorf("bucket '%s' has no owner in its ACL", name)
	}

	owner := Owner{
		ID:          aws.ToString(acl.Owner.ID),
		DisplayName: aws.ToString(acl.Owner.DisplayName),
	}
	return Handle{Name: name}, owner, nil
}

// CallerIdentity resolves the identity behind the session credentials,
// the principal used to authorize ACL writes. It is resolved once per
// run and passed explicitly to every worker.
func CallerIdentity(ctx context.Context, client s3api.API) (Owner, error) {
	resp, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return Owner{}, fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	if resp.Owner == nil {
		return Owner{}, fmt.Errorf("caller identity missing from bucket listing")
	}

	return Owner{
		ID:          aws.ToString(resp.Owner.ID),
		DisplayName: aws.ToString(resp.Owner.DisplayName),
	}, nil
}
