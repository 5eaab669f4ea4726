package rpc

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justyntemme/duopane/internal/debug"
)

// S3Config describes a bucket store reached directly instead of through rc.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

type s3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Service answers list requests straight from an S3 compatible store.
// The first path segment of a request is the bucket.
type S3Service struct {
	client s3API
}

// NewS3Service builds an S3 client from cfg.
func NewS3Service(ctx context.Context, cfg S3Config) (*S3Service, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	} else {
		opts = append(opts, awsconfig.WithRegion("us-east-1"))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Service{client: client}, nil
}

// List implements ListService.
func (s *S3Service) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	bucket, prefix := splitBucketPath(req.Remote)
	if bucket == "" {
		return s.listBuckets(ctx)
	}
	return s.listObjects(ctx, bucket, prefix, req.Opt)
}

func (s *S3Service) listBuckets(ctx context.Context) (*ListResponse, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	resp := &ListResponse{List: make([]ListItem, 0, len(out.Buckets))}
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		item := ListItem{Path: name, Name: name, Size: -1, IsDir: true, IsBucket: true}
		if b.CreationDate != nil {
			item.ModTime = b.CreationDate.UTC().Format(time.RFC3339)
		}
		resp.List = append(resp.List, item)
	}
	return resp, nil
}

func (s *S3Service) listObjects(ctx context.Context, bucket, prefix string, opt ListOptions) (*ListResponse, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	resp := &ListResponse{}
	pages := s3.NewListObjectsV2Paginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}

		for _, p := range page.CommonPrefixes {
			key := strings.TrimSuffix(aws.ToString(p.Prefix), "/")
			if key == "" {
				continue
			}
			resp.List = append(resp.List, ListItem{
				Path:  bucket + "/" + key,
				Name:  path.Base(key),
				Size:  -1,
				IsDir: true,
			})
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Skip directory markers, including the prefix object itself
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			item := ListItem{
				Path: bucket + "/" + key,
				Name: path.Base(key),
				Size: aws.ToInt64(obj.Size),
			}
			if !opt.NoModTime && obj.LastModified != nil {
				item.ModTime = obj.LastModified.UTC().Format(time.RFC3339)
			}
			resp.List = append(resp.List, item)
		}
	}

	debug.Log(debug.REMOTE, "s3 list %s/%s: %d items", bucket, prefix, len(resp.List))
	return resp, nil
}

// splitBucketPath turns "bucket/dir/sub/" into ("bucket", "dir/sub/").
// A non-empty prefix always ends with "/" so only direct children match.
func splitBucketPath(remote string) (bucket, prefix string) {
	remote = strings.Trim(remote, "/")
	if remote == "" {
		return "", ""
	}
	bucket, prefix, _ = strings.Cut(remote, "/")
	if prefix != "" {
		prefix += "/"
	}
	return bucket, prefix
}
