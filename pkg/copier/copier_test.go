package copier

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3aclcopy/pkg/progress"
)

// fakeStore is an in-memory stand-in for the storage API, shared by
// the orchestrator and worker tests.
type fakeStore struct {
	mu sync.Mutex

	// source listing, one inner slice per page
	pages [][]types.Object

	// source object ACLs by key
	acls map[string][]types.Grant

	// source eTags observed while listing, by key
	srcETags map[string]string

	// destination objects by key, value is the stored eTag
	dstETags map[string]string

	// owners by bucket name, caller identity from ListBuckets
	owners map[string]types.Owner
	me     types.Owner

	// remaining failures to inject, by destination key
	copyFailures map[string]int
	aclFailures  map[string]int

	// per-bucket HeadBucket errors
	headBucketErr map[string]error

	// source keys whose GetObjectAcl fails
	aclReadErr map[string]bool

	listCalls int
	copies    []*s3.CopyObjectInput
	aclPuts   []*s3.PutObjectAclInput
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		acls:          map[string][]types.Grant{},
		srcETags:      map[string]string{},
		dstETags:      map[string]string{},
		owners:        map[string]types.Owner{},
		me:            types.Owner{ID: aws.String("me-id"), DisplayName: aws.String("me")},
		copyFailures:  map[string]int{},
		aclFailures:   map[string]int{},
		headBucketErr: map[string]error{},
		aclReadErr:    map[string]bool{},
	}
}

func (f *fakeStore) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &s3.ListBucketsOutput{Owner: &f.me}, nil
}

func (f *fakeStore) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if err := f.headBucketErr[aws.ToString(params.Bucket)]; err != nil {
		return nil, err
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeStore) GetBucketAcl(ctx context.Context, params *s3.GetBucketAclInput, optFns ...func(*s3.Options)) (*s3.GetBucketAclOutput, error) {
	owner, ok := f.owners[aws.ToString(params.Bucket)]
	if !ok {
		owner = types.Owner{ID: aws.String("owner-of-" + aws.ToString(params.Bucket))}
	}
	return &s3.GetBucketAclOutput{Owner: &owner}, nil
}

func (f *fakeStore) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	idx := 0
	if tok := aws.ToString(params.ContinuationToken); tok != "" {
		idx = int(tok[0] - '0')
	}

	var contents []types.Object
	if idx < len(f.pages) {
		contents = f.pages[idx]
	}
	for _, o := range contents {
		f.srcETags[aws.ToString(o.Key)] = aws.ToString(o.ETag)
	}
	out := &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}
	if idx+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + idx + 1)))
	}
	return out, nil
}

func (f *fakeStore) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	etag, ok := f.dstETags[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeStore) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.Key)
	if f.copyFailures[key] > 0 {
		f.copyFailures[key]--
		return nil, errors.New("InternalError: copy failed")
	}
	f.copies = append(f.copies, params)

	// the destination now carries the source's content fingerprint
	srcKey := aws.ToString(params.CopySource)
	if _, rest, ok := strings.Cut(srcKey, "/"); ok {
		srcKey = rest
	}
	etag, ok := f.srcETags[srcKey]
	if !ok {
		etag = `"` + srcKey + `"`
	}
	f.dstETags[key] = etag
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeStore) GetObjectAcl(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.Key)
	if f.aclReadErr[key] {
		return nil, errors.New("AccessDenied: cannot read ACL")
	}
	return &s3.GetObjectAclOutput{Grants: f.acls[key]}, nil
}

func (f *fakeStore) PutObjectAcl(ctx context.Context, params *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.Key)
	if f.aclFailures[key] > 0 {
		f.aclFailures[key]--
		return nil, errors.New("InternalError: acl put failed")
	}
	f.aclPuts = append(f.aclPuts, params)
	return &s3.PutObjectAclOutput{}, nil
}

func (f *fakeStore) copiedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.copies))
	for _, c := range f.copies {
		keys = append(keys, aws.ToString(c.Key))
	}
	return keys
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestCopier(store *fakeStore, opts Options) *Copier {
	return New(store, &progress.RequestCounter{}, progress.Nop{}, testLogger(), opts)
}

func srcObj(key, etag string) types.Object {
	return types.Object{Key: aws.String(key), ETag: aws.String(etag)}
}

func defaultOptions() Options {
	return Options{
		Source:      Location{Bucket: "bucketA", Prefix: "logs/2020/"},
		Dest:        Location{Bucket: "bucketB", Prefix: "archive/"},
		Threads:     2,
		MaxAttempts: 5,
	}
}

func TestRunCopiesAllKeysAcrossPages(t *testing.T) {
	store := newFakeStore()
	store.pages = [][]types.Object{
		{srcObj("logs/2020/01.txt", `"e1"`), srcObj("logs/2020/02.txt", `"e2"`), srcObj("logs/2020/03.txt", `"e3"`)},
		{srcObj("logs/2020/04.txt", `"e4"`)},
	}

	result, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Ok())
	assert.EqualValues(t, 4, result.Copied)
	assert.EqualValues(t, 0, result.Skipped)
	assert.ElementsMatch(t, []string{
		"archive/01.txt", "archive/02.txt", "archive/03.txt", "archive/04.txt",
	}, store.copiedKeys())
	assert.Len(t, store.aclPuts, 4)
}

func TestRunPrefixSubstitution(t *testing.T) {
	store := newFakeStore()
	store.pages = [][]types.Object{{srcObj("logs/2020/01.txt", `"e1"`)}}

	_, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, store.copies, 1)
	assert.Equal(t, "bucketB", aws.ToString(store.copies[0].Bucket))
	assert.Equal(t, "archive/01.txt", aws.ToString(store.copies[0].Key))
	assert.Equal(t, "bucketA/logs/2020/01.txt", aws.ToString(store.copies[0].CopySource))
}

func TestRunIdempotentRerun(t *testing.T) {
	store := newFakeStore()
	store.pages = [][]types.Object{
		{srcObj("logs/2020/01.txt", `"e1"`), srcObj("logs/2020/02.txt", `"e2"`)},
	}
	// destination already holds identical content
	store.dstETags["archive/01.txt"] = `"e1"`
	store.dstETags["archive/02.txt"] = `"e2"`

	result, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Ok())
	assert.EqualValues(t, 0, result.Copied)
	assert.EqualValues(t, 2, result.Skipped)
	assert.Empty(t, store.copies, "no data copy on an unchanged rerun")
	assert.Len(t, store.aclPuts, 2, "ACLs are still reapplied")
}

func TestRunChangedObjectIsRecopied(t *testing.T) {
	store := newFakeStore()
	store.pages = [][]types.Object{{srcObj("logs/2020/01.txt", `"e1-v2"`)}}
	store.dstETags["archive/01.txt"] = `"e1-v1"`

	result, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, result.Copied)
	assert.EqualValues(t, 0, result.Skipped)
	assert.Len(t, store.copies, 1)
}

func TestRunMergesDestinationOwnerGrant(t *testing.T) {
	store := newFakeStore()
	store.pages = [][]types.Object{{srcObj("logs/2020/01.txt", `"e1"`)}}
	store.owners["bucketB"] = types.Owner{ID: aws.String("dest-owner")}
	store.acls["logs/2020/01.txt"] = []types.Grant{
		{
			Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String("alice")},
			Permission: types.PermissionRead,
		},
	}

	_, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, store.aclPuts, 1)
	policy := store.aclPuts[0].AccessControlPolicy
	require.NotNil(t, policy)
	assert.Equal(t, "me-id", aws.ToString(policy.Owner.ID))

	require.Len(t, policy.Grants, 2)
	assert.Equal(t, "alice", aws.ToString(policy.Grants[0].Grantee.ID))
	assert.Equal(t, "dest-owner", aws.ToString(policy.Grants[1].Grantee.ID))
	assert.Equal(t, types.PermissionFullControl, policy.Grants[1].Permission)
}

func TestRunEmptyPrefix(t *testing.T) {
	store := newFakeStore()
	store.pages = [][]types.Object{{}}

	result, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Ok())
	assert.EqualValues(t, 0, result.Copied)
	assert.Empty(t, store.copies)
	assert.Empty(t, store.aclPuts)
}

func TestRunSourceBucketInaccessible(t *testing.T) {
	store := newFakeStore()
	store.headBucketErr["bucketA"] = errors.New("403 Forbidden")

	_, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
	assert.Zero(t, store.listCalls, "no listing after a fatal setup failure")
}

func TestRunDestBucketInaccessible(t *testing.T) {
	store := newFakeStore()
	store.headBucketErr["bucketB"] = errors.New("404 Not Found")

	_, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination")
	assert.Zero(t, store.listCalls, "no listing after a fatal setup failure")
}

func TestRunPassOneFailureOnlyDropsOneSlice(t *testing.T) {
	store := newFakeStore()
	// threads=2 over 4 keys: slices of 2; poison the first key of the
	// first slice, the second slice must still complete
	store.pages = [][]types.Object{{
		srcObj("logs/2020/01.txt", `"e1"`),
		srcObj("logs/2020/02.txt", `"e2"`),
		srcObj("logs/2020/03.txt", `"e3"`),
		srcObj("logs/2020/04.txt", `"e4"`),
	}}
	store.aclReadErr["logs/2020/01.txt"] = true

	result, err := newTestCopier(store, defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Ok())
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "logs/2020/01.txt", result.Failed[0].Key)
	assert.EqualValues(t, 1, result.Dropped)
	assert.EqualValues(t, 2, result.Copied)
	assert.ElementsMatch(t, []string{"archive/03.txt", "archive/04.txt"}, store.copiedKeys())
}
