// Package s3 provides an AWS SDK v2 implementation of filestore.Store.
//
// It talks to AWS S3 or any S3-compatible server (Ceph, R2, Garage, MinIO)
// through a custom endpoint with optional path-style addressing.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
)

const defaultRegion = "us-east-1"

// api is the subset of *s3.Client the driver uses.
type api interface {
	s3.ListObjectsV2APIClient
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// presigner is the subset of *s3.PresignClient the driver uses.
type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ api       = (*s3.Client)(nil)
	_ presigner = (*s3.PresignClient)(nil)
)

// Driver is an S3 implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	api     api
	presign presigner
	bucket  string // used by Ping
}

// New builds an S3 client from cfg and verifies access to the default bucket.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}

	// Static credentials when given, otherwise the default AWS chain.
	if cfg.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to load aws config", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	d := &Driver{
		api:     client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.DefaultBucket,
	}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// endpointURL adds a scheme to a bare "host:port" endpoint.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// --- filestore.Store implementation ---

// Ping checks the default bucket with HeadBucket, or lists buckets when no
// default bucket is configured.
func (d *Driver) Ping(ctx context.Context) error {
	if d.bucket == "" {
		if _, err := d.api.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
			return mapError(err, "ping failed")
		}
		return nil
	}
	if _, err := d.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucket)}); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client is shared and needs no teardown.
func (d *Driver) Close() error {
	return nil
}

// ListBuckets returns all buckets accessible with the configured credentials.
func (d *Driver) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	out, err := d.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]filestore.BucketInfo, len(out.Buckets))
	for i, b := range out.Buckets {
		buckets[i] = filestore.BucketInfo{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		}
	}
	return buckets, nil
}

// ListObjects walks every ListObjectsV2 page under opts.Prefix.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Marker != "" {
		input.StartAfter = aws.String(opts.Marker)
	}
	if !opts.Recursive {
		input.Delimiter = aws.String("/")
	}

	var results []filestore.ObjectInfo
	full := func() bool { return opts.Limit > 0 && len(results) >= opts.Limit }

	pages := s3.NewListObjectsV2Paginator(d.api, input)
	for pages.HasMorePages() && !full() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects")
		}

		for _, cp := range page.CommonPrefixes {
			if full() {
				break
			}
			results = append(results, filestore.ObjectInfo{
				Key:   aws.ToString(cp.Prefix),
				IsDir: true,
			})
		}
		for _, o := range page.Contents {
			if full() {
				break
			}
			key := aws.ToString(o.Key)
			results = append(results, filestore.ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(o.Size),
				ETag:         trimETag(aws.ToString(o.ETag)),
				LastModified: aws.ToTime(o.LastModified),
				IsDir:        strings.HasSuffix(key, "/"),
			})
		}
	}

	return results, nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	return &object{
		ReadCloser: out.Body,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         sizeOrUnknown(out.ContentLength),
			ContentType:  aws.ToString(out.ContentType),
			ETag:         trimETag(aws.ToString(out.ETag)),
			LastModified: aws.ToTime(out.LastModified),
		},
	}, nil
}

// StatObject returns metadata for the object at key via HeadObject.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	out, err := d.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         sizeOrUnknown(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         trimETag(aws.ToString(out.ETag)),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// PutObject uploads body to key inside bucket.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	out, err := d.api.PutObject(ctx, input)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to put object %q", key))
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opts.ContentType,
		ETag:         trimETag(aws.ToString(out.ETag)),
		LastModified: time.Now().UTC(),
	}, nil
}

// DeleteObject removes the object at key inside bucket.
func (d *Driver) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := d.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, fmt.Sprintf("failed to delete object %q", key))
	}
	return nil
}

// PresignGetURL returns a time-limited public download URL for the object.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := d.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return req.URL, nil
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

func sizeOrUnknown(n *int64) int64 {
	if n == nil {
		return -1
	}
	return *n
}

// object wraps a GetObject body and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
