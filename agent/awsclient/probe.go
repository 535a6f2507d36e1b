package awsclient

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

type ProbeResult struct {
	Service   string
	Reachable bool
	Kind      contractx.ErrorKind
	Message   string
	Latency   time.Duration
}

// ProbeS3 issues one list-shaped call with no retries and no metrics, so it
// does not disturb what real queries observe.
func ProbeS3(ctx context.Context, c *Client, api S3API) ProbeResult {
	return probe(ctx, c, "ListBuckets", func(ctx context.Context) error {
		_, err := api.ListBuckets(ctx, &s3.ListBucketsInput{MaxBuckets: aws.Int32(1)})
		return err
	})
}

func ProbeIAM(ctx context.Context, c *Client, api IAMAPI) ProbeResult {
	return probe(ctx, c, "ListUsers", func(ctx context.Context) error {
		_, err := api.ListUsers(ctx, &iam.ListUsersInput{MaxItems: aws.Int32(1)})
		return err
	})
}

func ProbeEC2(ctx context.Context, c *Client, api EC2API) ProbeResult {
	return probe(ctx, c, "DescribeInstances", func(ctx context.Context) error {
		_, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{MaxResults: aws.Int32(5)})
		return err
	})
}

func probe(ctx context.Context, c *Client, operation string, call func(context.Context) error) ProbeResult {
	pc := c.probeClient()
	start := time.Now()
	_, err := Do(ctx, pc, "probe."+operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	res := ProbeResult{
		Service:   c.service,
		Reachable: err == nil,
		Latency:   time.Since(start),
	}
	if err != nil {
		res.Kind = KindOf(err)
		var awsErr *Error
		if errors.As(err, &awsErr) {
			res.Message = awsErr.Message()
		} else {
			res.Message = err.Error()
		}
	}
	return res
}
