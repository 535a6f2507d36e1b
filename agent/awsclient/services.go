package awsclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

// The capability interfaces below list only read operations. Tools can reach
// AWS through nothing else, which keeps the assistant read-only.

type S3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketAcl(ctx context.Context, in *s3.GetBucketAclInput, optFns ...func(*s3.Options)) (*s3.GetBucketAclOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type IAMAPI interface {
	ListUsers(ctx context.Context, in *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListGroups(ctx context.Context, in *iam.ListGroupsInput, optFns ...func(*iam.Options)) (*iam.ListGroupsOutput, error)
	ListPolicies(ctx context.Context, in *iam.ListPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListPoliciesOutput, error)
	ListRoles(ctx context.Context, in *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
	GetUser(ctx context.Context, in *iam.GetUserInput, optFns ...func(*iam.Options)) (*iam.GetUserOutput, error)
	ListGroupsForUser(ctx context.Context, in *iam.ListGroupsForUserInput, optFns ...func(*iam.Options)) (*iam.ListGroupsForUserOutput, error)
	ListUserPolicies(ctx context.Context, in *iam.ListUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error)
	ListAttachedUserPolicies(ctx context.Context, in *iam.ListAttachedUserPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error)
}

type EC2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

var (
	_ S3API  = (*s3.Client)(nil)
	_ IAMAPI = (*iam.Client)(nil)
	_ EC2API = (*ec2.Client)(nil)
)

type Config struct {
	Region     string        `envconfig:"REGION" default:"us-east-1"`
	Profile    string        `envconfig:"PROFILE"`
	MaxRetries int           `envconfig:"MAX_RETRIES" split_words:"true" default:"3"`
	BaseDelay  time.Duration `envconfig:"BASE_DELAY" split_words:"true" default:"1s"`
	MaxDelay   time.Duration `envconfig:"MAX_DELAY" split_words:"true" default:"20s"`
	Jitter     bool          `envconfig:"JITTER" default:"false"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"30s"`
	S3Enabled  bool          `envconfig:"S3_ENABLED" default:"true"`
	IAMEnabled bool          `envconfig:"IAM_ENABLED" default:"true"`
	EC2Enabled bool          `envconfig:"EC2_ENABLED" default:"true"`
}

func (c Config) Policy() RetryPolicy {
	p := DefaultPolicy()
	p.MaxRetries = c.MaxRetries
	if c.BaseDelay > 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	p.Jitter = c.Jitter
	return p
}

func (c Config) EnabledServices() []string {
	var out []string
	if c.S3Enabled {
		out = append(out, ServiceS3)
	}
	if c.IAMEnabled {
		out = append(out, ServiceIAM)
	}
	if c.EC2Enabled {
		out = append(out, ServiceEC2)
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Region) == "" {
		return fmt.Errorf("%w: aws region is required", contractx.ErrValidation)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: aws timeout must be >= 0", contractx.ErrValidation)
	}
	return c.Policy().Validate()
}

// Services holds the raw SDK clients of one session. Disabled services are nil.
type Services struct {
	S3  S3API
	IAM IAMAPI
	EC2 EC2API
}

// LoadSDKConfig resolves credentials and region the usual SDK way. The SDK's own
// retryer is disabled so RetryPolicy is the only retry layer.
func LoadSDKConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(strings.TrimSpace(cfg.Region)),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)))
	}
	if profile := strings.TrimSpace(cfg.Profile); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func NewServices(ctx context.Context, cfg Config) (Services, error) {
	awsCfg, err := LoadSDKConfig(ctx, cfg)
	if err != nil {
		return Services{}, err
	}

	var svcs Services
	if cfg.S3Enabled {
		svcs.S3 = s3.NewFromConfig(awsCfg)
	}
	if cfg.IAMEnabled {
		svcs.IAM = iam.NewFromConfig(awsCfg)
	}
	if cfg.EC2Enabled {
		svcs.EC2 = ec2.NewFromConfig(awsCfg)
	}
	return svcs, nil
}
