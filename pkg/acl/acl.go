// Package acl fetches, merges and applies object access-control lists.
package acl

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"s3aclcopy/pkg/bucket"
	"s3aclcopy/pkg/s3api"
)

// FetchGrants returns the grants on one object, in the order the
// storage API lists them.
func FetchGrants(ctx context.Context, client s3api.API, bucketName, key string) ([]types.Grant, error) {
	resp, err := client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ACL of '%s': %w", key, err)
	}
	return resp.Grants, nil
}

// MergeOwnerFullControl appends a FULL_CONTROL grant for owner, looked
// up by canonical id. The grant is appended even when the owner already
// holds one; the storage API accepts duplicate grants and keeping the
// original list intact is the point.
func MergeOwnerFullControl(grants []types.Grant, owner bucket.Owner) []types.Grant {
	merged := make([]types.Grant, 0, len(grants)+1)
	merged = append(merged, grants...)
	merged = append(merged, types.Grant{
		Grantee: &types.Grantee{
			Type: types.TypeCanonicalUser,
			ID:   aws.String(owner.ID),
		},
		Permission: types.PermissionFullControl,
	})
	return merged
}

// Apply replaces the ACL of the destination object with grants,
// authorized as me.
func Apply(ctx context.Context, client s3api.API, bucketName, key string, me bucket.Owner, grants []types.Grant) error {
	_, err := client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
		AccessControlPolicy: &types.AccessControlPolicy{
			Owner: &types.Owner{
				ID:          aws.String(me.ID),
				DisplayName: aws.String(me.DisplayName),
			},
			Grants: grants,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to apply ACL to '%s': %w", key, err)
	}
	return nil
}
