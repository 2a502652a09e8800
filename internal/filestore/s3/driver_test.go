package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time checks for the fakes.
var (
	_ api       = (*fakeAPI)(nil)
	_ presigner = (*fakePresigner)(nil)
)

type fakeAPI struct {
	pages         []*s3.ListObjectsV2Output
	listInputs    []*s3.ListObjectsV2Input
	headBucketErr error
	lastPut       *s3.PutObjectInput
	lastDelete    *s3.DeleteObjectInput
	putErr        error
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listInputs = append(f.listInputs, in)
	i := len(f.listInputs) - 1
	if i >= len(f.pages) {
		return &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}, nil
	}
	return f.pages[i], nil
}

func (f *fakeAPI) ListBuckets(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &s3.ListBucketsOutput{Buckets: []types.Bucket{{Name: aws.String("media")}}}, nil
}

func (f *fakeAPI) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headBucketErr != nil {
		return nil, f.headBucketErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader("hello")),
		ContentLength: aws.Int64(5),
		ContentType:   aws.String("text/plain"),
		ETag:          aws.String(`"abc"`),
	}, nil
}

func (f *fakeAPI) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(5), ETag: aws.String(`"abc"`)}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.lastDelete = in
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://s3.example.com/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key) + "?X-Amz-Expires=" + opts.Expires.String(),
		Method: http.MethodGet,
	}, nil
}

func newTestDriver(f *fakeAPI) *Driver {
	return &Driver{api: f, presign: fakePresigner{}, bucket: "media"}
}

func TestListObjects_PaginatesRecursively(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeAPI{pages: []*s3.ListObjectsV2Output{
		{
			Contents: []types.Object{
				{Key: aws.String("docs/"), Size: aws.Int64(0), LastModified: &now},
				{Key: aws.String("docs/a.txt"), Size: aws.Int64(10), ETag: aws.String(`"e1"`), LastModified: &now},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("t1"),
		},
		{
			Contents:    []types.Object{{Key: aws.String("readme.md"), Size: aws.Int64(3)}},
			IsTruncated: aws.Bool(false),
		},
	}}

	got, err := newTestDriver(f).ListObjects(context.Background(), "media", filestore.ListOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].IsDir)
	assert.Equal(t, "docs/a.txt", got[1].Key)
	assert.Equal(t, int64(10), got[1].Size)
	assert.Equal(t, "e1", got[1].ETag)
	assert.Equal(t, now, got[1].LastModified)
	assert.Equal(t, "readme.md", got[2].Key)

	require.Len(t, f.listInputs, 2)
	assert.Nil(t, f.listInputs[0].Delimiter)
	assert.Equal(t, "t1", aws.ToString(f.listInputs[1].ContinuationToken))
}

func TestListObjects_DelimitedAndLimited(t *testing.T) {
	f := &fakeAPI{pages: []*s3.ListObjectsV2Output{{
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("docs/images/")}},
		Contents: []types.Object{
			{Key: aws.String("docs/a.txt"), Size: aws.Int64(1)},
			{Key: aws.String("docs/b.txt"), Size: aws.Int64(1)},
		},
		IsTruncated: aws.Bool(false),
	}}}

	got, err := newTestDriver(f).ListObjects(context.Background(), "media", filestore.ListOptions{
		Prefix: "docs/",
		Limit:  2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "docs/images/", got[0].Key)
	assert.True(t, got[0].IsDir)
	assert.Equal(t, "docs/a.txt", got[1].Key)

	assert.Equal(t, "/", aws.ToString(f.listInputs[0].Delimiter))
	assert.Equal(t, "docs/", aws.ToString(f.listInputs[0].Prefix))
}

func TestPutObject(t *testing.T) {
	f := &fakeAPI{}
	info, err := newTestDriver(f).PutObject(context.Background(), "media", "docs/a.txt",
		strings.NewReader("hello"), 5, filestore.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	assert.Equal(t, "etag-1", info.ETag)
	assert.Equal(t, int64(5), aws.ToInt64(f.lastPut.ContentLength))
	assert.Equal(t, "text/plain", aws.ToString(f.lastPut.ContentType))
	assert.Equal(t, "docs/a.txt", aws.ToString(f.lastPut.Key))
}

func TestPutObject_UnknownSize(t *testing.T) {
	f := &fakeAPI{}
	_, err := newTestDriver(f).PutObject(context.Background(), "media", "a", strings.NewReader("x"), -1, filestore.PutOptions{})
	require.NoError(t, err)
	assert.Nil(t, f.lastPut.ContentLength)
	assert.Nil(t, f.lastPut.ContentType)
}

func TestPutObject_MapsError(t *testing.T) {
	f := &fakeAPI{putErr: &smithy.GenericAPIError{Code: "AccessDenied"}}
	_, err := newTestDriver(f).PutObject(context.Background(), "media", "a", strings.NewReader("x"), 1, filestore.PutOptions{})
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestDeleteObject(t *testing.T) {
	f := &fakeAPI{}
	require.NoError(t, newTestDriver(f).DeleteObject(context.Background(), "media", "docs/a.txt"))
	assert.Equal(t, "docs/a.txt", aws.ToString(f.lastDelete.Key))
}

func TestGetAndStatObject(t *testing.T) {
	d := newTestDriver(&fakeAPI{})

	obj, err := d.GetObject(context.Background(), "media", "a.txt")
	require.NoError(t, err)
	defer obj.Close()
	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "abc", obj.Info().ETag)
	assert.Equal(t, "text/plain", obj.Info().ContentType)

	info, err := d.StatObject(context.Background(), "media", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
}

func TestPresignGetURL(t *testing.T) {
	u, err := newTestDriver(&fakeAPI{}).PresignGetURL(context.Background(), "media", "a.txt", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com/media/a.txt?X-Amz-Expires=1h0m0s", u)
}

func TestPing(t *testing.T) {
	assert.NoError(t, newTestDriver(&fakeAPI{}).Ping(context.Background()))

	notFound := &awshttp.ResponseError{ResponseError: &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
		Err:      errors.New("not found"),
	}}
	err := newTestDriver(&fakeAPI{headBucketErr: notFound}).Ping(context.Background())
	assert.True(t, errs.IsNotFound(err))

	noBucket := &Driver{api: &fakeAPI{}, presign: fakePresigner{}}
	assert.NoError(t, noBucket.Ping(context.Background()))
}

func statusErr(code int) error {
	return &awshttp.ResponseError{ResponseError: &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
		Err:      errors.New(http.StatusText(code)),
	}}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, errs.ErrKindNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, errs.ErrKindPermissionDenied},
		{"too large", &smithy.GenericAPIError{Code: "EntityTooLarge"}, errs.ErrKindTooLarge},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, errs.ErrKindTimeout},
		{"bad name", &smithy.GenericAPIError{Code: "InvalidBucketName"}, errs.ErrKindInvalidInput},
		{"status 404", statusErr(http.StatusNotFound), errs.ErrKindNotFound},
		{"status 403", statusErr(http.StatusForbidden), errs.ErrKindPermissionDenied},
		{"status 413", statusErr(http.StatusRequestEntityTooLarge), errs.ErrKindTooLarge},
		{"status 503", statusErr(http.StatusServiceUnavailable), errs.ErrKindOperationFailed},
		{"plain", errors.New("dial tcp: refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "", endpointURL("", true))
	assert.Equal(t, "https://r2.example.com", endpointURL("https://r2.example.com", false))
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "https://localhost:9000", endpointURL("localhost:9000", true))
}
