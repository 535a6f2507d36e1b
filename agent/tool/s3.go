package tool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cloudwego/eino/schema"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
)

const (
	ToolListS3Buckets       = "list_s3_buckets"
	ToolListPublicS3Buckets = "list_public_s3_buckets"
	ToolInspectS3Bucket     = "inspect_s3_bucket"
	ToolGetS3BucketInfo     = "get_s3_bucket_info"
)

const (
	allUsersURI      = "http://acs.amazonaws.com/groups/global/AllUsers"
	inspectMaxKeys   = 100
	aclFanOutWorkers = 4
)

type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type BucketList struct {
	Buckets   []Bucket `json:"buckets"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated,omitempty"`
}

type PublicBucketList struct {
	Buckets []Bucket `json:"buckets"`
	Count   int      `json:"count"`
	Checked int      `json:"checked"`
	// Skipped counts buckets whose ACL could not be read.
	Skipped int `json:"skipped,omitempty"`
}

type Object struct {
	Key          string    `json:"key"`
	Size         string    `json:"size"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

type BucketContents struct {
	Bucket    string   `json:"bucket"`
	Objects   []Object `json:"objects"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated"`
}

type BucketInfo struct {
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	ObjectCount int64     `json:"object_count"`
	TotalBytes  int64     `json:"total_bytes"`
	TotalSize   string    `json:"total_size"`
	// Partial is set when the object walk stopped at the page cap.
	Partial bool `json:"partial,omitempty"`
}

type S3Set struct {
	client *awsclient.Client
	api    awsclient.S3API
}

func NewS3Set(client *awsclient.Client, api awsclient.S3API) *S3Set {
	return &S3Set{client: client, api: api}
}

func (s *S3Set) Service() string {
	return awsclient.ServiceS3
}

func (s *S3Set) Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        ToolListS3Buckets,
			Description: "List all S3 buckets in the account with their creation dates.",
			Invoke:      s.listBuckets,
		},
		{
			Name:        ToolListPublicS3Buckets,
			Description: "List S3 buckets whose ACL grants access to everyone (AllUsers).",
			Invoke:      s.listPublicBuckets,
		},
		{
			Name:        ToolInspectS3Bucket,
			Description: "List up to 100 objects in an S3 bucket.",
			Params:      map[string]*schema.ParameterInfo{ParamBucketName: stringParam("Name of the S3 bucket")},
			Invoke:      s.inspectBucket,
		},
		{
			Name:        ToolGetS3BucketInfo,
			Description: "Get creation date, object count and total size of an S3 bucket.",
			Params:      map[string]*schema.ParameterInfo{ParamBucketName: stringParam("Name of the S3 bucket")},
			Invoke:      s.bucketInfo,
		},
	}
}

func (s *S3Set) listBuckets(ctx context.Context, _ map[string]any) (any, error) {
	buckets, truncated, err := s.allBuckets(ctx)
	if err != nil {
		return nil, err
	}
	return BucketList{Buckets: buckets, Count: len(buckets), Truncated: truncated}, nil
}

func (s *S3Set) allBuckets(ctx context.Context) ([]Bucket, bool, error) {
	return collect(ctx, s.client, "ListBuckets", func(ctx context.Context, token *string) ([]Bucket, *string, error) {
		resp, err := s.api.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
		if err != nil {
			return nil, nil, err
		}
		out := make([]Bucket, 0, len(resp.Buckets))
		for _, b := range resp.Buckets {
			out = append(out, Bucket{Name: aws.ToString(b.Name), CreatedAt: aws.ToTime(b.CreationDate)})
		}
		return out, resp.ContinuationToken, nil
	})
}

func (s *S3Set) listPublicBuckets(ctx context.Context, _ map[string]any) (any, error) {
	buckets, _, err := s.allBuckets(ctx)
	if err != nil {
		return nil, err
	}

	public := make([]bool, len(buckets))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(aclFanOutWorkers)
	for i, b := range buckets {
		g.Go(func() error {
			resp, err := awsclient.Do(gctx, s.client, "GetBucketAcl", func(ctx context.Context) (*s3.GetBucketAclOutput, error) {
				return s.api.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: aws.String(b.Name)})
			})
			if err != nil {
				skipped.Add(1)
				return nil
			}
			public[i] = grantsAllUsers(resp.Grants)
			return nil
		})
	}
	_ = g.Wait()
	// a cancelled fan-out fails every ACL read; that is not "none public"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := PublicBucketList{Buckets: []Bucket{}, Checked: len(buckets), Skipped: int(skipped.Load())}
	for i, b := range buckets {
		if public[i] {
			out.Buckets = append(out.Buckets, b)
		}
	}
	out.Count = len(out.Buckets)
	return out, nil
}

func grantsAllUsers(grants []s3types.Grant) bool {
	for _, g := range grants {
		if g.Grantee != nil && aws.ToString(g.Grantee.URI) == allUsersURI {
			return true
		}
	}
	return false
}

func (s *S3Set) inspectBucket(ctx context.Context, args map[string]any) (any, error) {
	bucket, err := bucketNameArg(args)
	if err != nil {
		return nil, err
	}

	resp, err := awsclient.Do(ctx, s.client, "ListObjectsV2", func(ctx context.Context) (*s3.ListObjectsV2Output, error) {
		return s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int32(inspectMaxKeys),
		})
	})
	if err != nil {
		return nil, err
	}

	out := BucketContents{Bucket: bucket, Objects: make([]Object, 0, len(resp.Contents))}
	for _, obj := range resp.Contents {
		out.Objects = append(out.Objects, Object{
			Key:          aws.ToString(obj.Key),
			Size:         humanize.IBytes(uint64(max(aws.ToInt64(obj.Size), 0))),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	out.Count = len(out.Objects)
	out.Truncated = aws.ToBool(resp.IsTruncated)
	return out, nil
}

func (s *S3Set) bucketInfo(ctx context.Context, args map[string]any) (any, error) {
	bucket, err := bucketNameArg(args)
	if err != nil {
		return nil, err
	}

	buckets, _, err := s.allBuckets(ctx)
	if err != nil {
		return nil, err
	}
	info := BucketInfo{Name: bucket}
	found := false
	for _, b := range buckets {
		if b.Name == bucket {
			info.CreatedAt = b.CreatedAt
			found = true
			break
		}
	}
	if !found {
		return nil, notFound("bucket %q does not exist in this account", bucket)
	}

	sizes, partial, err := collect(ctx, s.client, "ListObjectsV2", func(ctx context.Context, token *string) ([]int64, *string, error) {
		resp, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket), ContinuationToken: token})
		if err != nil {
			return nil, nil, err
		}
		out := make([]int64, 0, len(resp.Contents))
		for _, obj := range resp.Contents {
			out = append(out, aws.ToInt64(obj.Size))
		}
		if !aws.ToBool(resp.IsTruncated) {
			return out, nil, nil
		}
		return out, resp.NextContinuationToken, nil
	})
	if err != nil {
		return nil, err
	}
	for _, size := range sizes {
		info.TotalBytes += size
	}
	info.ObjectCount = int64(len(sizes))
	info.Partial = partial
	info.TotalSize = humanize.IBytes(uint64(max(info.TotalBytes, 0)))
	return info, nil
}
