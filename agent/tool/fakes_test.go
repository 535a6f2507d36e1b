package tool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code + " from fake"}
}

func testClient(t *testing.T, service string) *awsclient.Client {
	t.Helper()

	c, err := awsclient.New(service, awsclient.DefaultPolicy(),
		awsclient.WithLogger(zerolog.Nop()),
		awsclient.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	if err != nil {
		t.Fatalf("awsclient.New() error = %v", err)
	}
	return c
}

type fakeS3 struct {
	mu       sync.Mutex
	buckets  []string
	acls     map[string][]s3types.Grant
	aclErrs  map[string]error
	objects  map[string][]s3types.Object
	pageSize int
	listErr  error
	calls    map[string]int
	onACL    func()
}

func (f *fakeS3) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[op]++
}

func (f *fakeS3) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeS3) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.count("ListBuckets")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &s3.ListBucketsOutput{}
	for _, name := range f.buckets {
		out.Buckets = append(out.Buckets, s3types.Bucket{
			Name:         aws.String(name),
			CreationDate: aws.Time(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		})
	}
	return out, nil
}

func (f *fakeS3) GetBucketAcl(ctx context.Context, in *s3.GetBucketAclInput, _ ...func(*s3.Options)) (*s3.GetBucketAclOutput, error) {
	f.count("GetBucketAcl")
	if f.onACL != nil {
		f.onACL()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := aws.ToString(in.Bucket)
	if err := f.aclErrs[name]; err != nil {
		return nil, err
	}
	return &s3.GetBucketAclOutput{Grants: f.acls[name]}, nil
}

// ListObjectsV2 pages by pageSize using the key index as the token.
func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.count("ListObjectsV2")
	all, ok := f.objects[aws.ToString(in.Bucket)]
	if !ok {
		return nil, apiErr("NoSuchBucket")
	}
	size := f.pageSize
	if in.MaxKeys != nil {
		size = int(*in.MaxKeys)
	}
	if size <= 0 {
		size = 1000
	}
	start := 0
	if in.ContinuationToken != nil {
		for i, obj := range all {
			if aws.ToString(obj.Key) == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+size, len(all))
	out := &s3.ListObjectsV2Output{Contents: all[start:end], IsTruncated: aws.Bool(end < len(all))}
	if end < len(all) {
		out.NextContinuationToken = all[end].Key
	}
	return out, nil
}

type fakeIAM struct {
	awsclient.IAMAPI

	users       []string
	getUserErr  error
	groupsErr   error
	calls       int
	policyScope iamtypes.PolicyScopeType
}

func (f *fakeIAM) ListUsers(_ context.Context, in *iam.ListUsersInput, _ ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	f.calls++
	// two pages when there is more than one user
	users := f.users
	out := &iam.ListUsersOutput{}
	if in.Marker == nil && len(users) > 1 {
		users = users[:1]
		out.IsTruncated = true
		out.Marker = aws.String("page-2")
	} else if in.Marker != nil {
		users = users[1:]
	}
	for _, u := range users {
		out.Users = append(out.Users, iamtypes.User{UserName: aws.String(u)})
	}
	return out, nil
}

func (f *fakeIAM) ListPolicies(_ context.Context, in *iam.ListPoliciesInput, _ ...func(*iam.Options)) (*iam.ListPoliciesOutput, error) {
	f.calls++
	f.policyScope = in.Scope
	return &iam.ListPoliciesOutput{Policies: []iamtypes.Policy{{PolicyName: aws.String("ReadOnlyBilling")}}}, nil
}

func (f *fakeIAM) GetUser(_ context.Context, in *iam.GetUserInput, _ ...func(*iam.Options)) (*iam.GetUserOutput, error) {
	f.calls++
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	return &iam.GetUserOutput{User: &iamtypes.User{
		UserName:   in.UserName,
		Arn:        aws.String("arn:aws:iam::123456789012:user/" + aws.ToString(in.UserName)),
		CreateDate: aws.Time(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)),
	}}, nil
}

func (f *fakeIAM) ListGroupsForUser(_ context.Context, _ *iam.ListGroupsForUserInput, _ ...func(*iam.Options)) (*iam.ListGroupsForUserOutput, error) {
	f.calls++
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return &iam.ListGroupsForUserOutput{Groups: []iamtypes.Group{{GroupName: aws.String("developers")}}}, nil
}

func (f *fakeIAM) ListUserPolicies(_ context.Context, _ *iam.ListUserPoliciesInput, _ ...func(*iam.Options)) (*iam.ListUserPoliciesOutput, error) {
	f.calls++
	return &iam.ListUserPoliciesOutput{PolicyNames: []string{"inline-s3"}}, nil
}

func (f *fakeIAM) ListAttachedUserPolicies(_ context.Context, _ *iam.ListAttachedUserPoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error) {
	f.calls++
	return &iam.ListAttachedUserPoliciesOutput{AttachedPolicies: []iamtypes.AttachedPolicy{{PolicyName: aws.String("ReadOnlyAccess")}}}, nil
}

type fakeEC2 struct {
	instances []ec2types.Instance
	inputs    []*ec2.DescribeInstancesInput
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.inputs = append(f.inputs, in)
	var matched []ec2types.Instance
	for _, inst := range f.instances {
		if len(in.InstanceIds) > 0 && aws.ToString(inst.InstanceId) != in.InstanceIds[0] {
			continue
		}
		if len(in.Filters) > 0 && (inst.State == nil || string(inst.State.Name) != in.Filters[0].Values[0]) {
			continue
		}
		matched = append(matched, inst)
	}
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{Instances: matched}}}, nil
}

func ec2Instance(id, name string, state ec2types.InstanceStateName) ec2types.Instance {
	return ec2types.Instance{
		InstanceId:       aws.String(id),
		InstanceType:     ec2types.InstanceTypeT3Micro,
		State:            &ec2types.InstanceState{Name: state},
		PrivateIpAddress: aws.String("10.0.0.1"),
		VpcId:            aws.String("vpc-1"),
		SubnetId:         aws.String("subnet-1"),
		Placement:        &ec2types.Placement{AvailabilityZone: aws.String("us-east-1a")},
		SecurityGroups:   []ec2types.GroupIdentifier{{GroupId: aws.String("sg-1"), GroupName: aws.String("web")}},
		Tags:             []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}},
	}
}
