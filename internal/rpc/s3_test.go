package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	buckets []types.Bucket
	pages   []*s3.ListObjectsV2Output
	inputs  []*s3.ListObjectsV2Input
}

func (f *fakeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &s3.ListBucketsOutput{Buckets: f.buckets}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.inputs = append(f.inputs, in)
	page := f.pages[len(f.inputs)-1]
	return page, nil
}

func TestSplitBucketPath(t *testing.T) {
	testCases := []struct {
		in     string
		bucket string
		prefix string
	}{
		{"", "", ""},
		{"/", "", ""},
		{"photos", "photos", ""},
		{"photos/", "photos", ""},
		{"photos/2024", "photos", "2024/"},
		{"/photos/2024/jan/", "photos", "2024/jan/"},
	}
	for _, tc := range testCases {
		b, p := splitBucketPath(tc.in)
		if b != tc.bucket || p != tc.prefix {
			t.Errorf("splitBucketPath(%q): expected (%q, %q), got (%q, %q)", tc.in, tc.bucket, tc.prefix, b, p)
		}
	}
}

func TestS3Service_ListBuckets(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := &S3Service{client: &fakeS3{buckets: []types.Bucket{
		{Name: aws.String("photos"), CreationDate: &created},
		{Name: aws.String("backups")},
	}}}

	resp, err := svc.List(context.Background(), ListRequest{Fs: "s3:"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.List) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(resp.List))
	}
	first := resp.List[0]
	if !first.IsBucket || !first.IsDir || first.Path != "photos" || first.ModTime != "2024-05-01T12:00:00Z" {
		t.Errorf("unexpected bucket item %+v", first)
	}
}

func TestS3Service_ListObjects(t *testing.T) {
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("2024/jan/")}},
			Contents: []types.Object{
				{Key: aws.String("2024/"), Size: aws.Int64(0)},
				{Key: aws.String("2024/a.jpg"), Size: aws.Int64(42), LastModified: &modified},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents:    []types.Object{{Key: aws.String("2024/b.jpg"), Size: aws.Int64(7)}},
			IsTruncated: aws.Bool(false),
		},
	}}
	svc := &S3Service{client: fake}

	resp, err := svc.List(context.Background(), ListRequest{Fs: "s3:", Remote: "photos/2024"})
	if err != nil {
		t.Fatal(err)
	}

	if len(fake.inputs) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.ToString(in.Bucket) != "photos" || aws.ToString(in.Prefix) != "2024/" || aws.ToString(in.Delimiter) != "/" {
		t.Errorf("unexpected input bucket=%q prefix=%q delimiter=%q",
			aws.ToString(in.Bucket), aws.ToString(in.Prefix), aws.ToString(in.Delimiter))
	}

	want := []ListItem{
		{Path: "photos/2024/jan", Name: "jan", Size: -1, IsDir: true},
		{Path: "photos/2024/a.jpg", Name: "a.jpg", Size: 42, ModTime: "2024-01-02T03:04:05Z"},
		{Path: "photos/2024/b.jpg", Name: "b.jpg", Size: 7},
	}
	if len(resp.List) != len(want) {
		t.Fatalf("expected %d items, got %d: %+v", len(want), len(resp.List), resp.List)
	}
	for i, w := range want {
		if resp.List[i] != w {
			t.Errorf("item %d: expected %+v, got %+v", i, w, resp.List[i])
		}
	}
}
