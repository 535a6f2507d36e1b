package tool

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/cloudwego/eino/schema"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
)

const (
	ToolListEC2Instances        = "list_ec2_instances"
	ToolGetEC2InstanceDetails   = "get_ec2_instance_details"
	ToolListRunningEC2Instances = "list_running_ec2_instances"
	ToolSearchEC2Instances      = "search_ec2_instances"
)

type Instance struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Type       string    `json:"type"`
	State      string    `json:"state"`
	LaunchTime time.Time `json:"launch_time,omitzero"`
	PrivateIP  string    `json:"private_ip,omitempty"`
}

type InstanceList struct {
	Instances []Instance `json:"instances"`
	Count     int        `json:"count"`
	Truncated bool       `json:"truncated,omitempty"`
}

type InstanceDetails struct {
	Instance
	PublicIP         string   `json:"public_ip,omitempty"`
	VPCID            string   `json:"vpc_id,omitempty"`
	SubnetID         string   `json:"subnet_id,omitempty"`
	AvailabilityZone string   `json:"availability_zone,omitempty"`
	SecurityGroups   []string `json:"security_groups"`
}

type InstanceSearch struct {
	SearchTerm string     `json:"search_term"`
	Matches    []Instance `json:"matches"`
	Count      int        `json:"count"`
	Truncated  bool       `json:"truncated,omitempty"`
}

type EC2Set struct {
	client *awsclient.Client
	api    awsclient.EC2API
}

func NewEC2Set(client *awsclient.Client, api awsclient.EC2API) *EC2Set {
	return &EC2Set{client: client, api: api}
}

func (s *EC2Set) Service() string {
	return awsclient.ServiceEC2
}

func (s *EC2Set) Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        ToolListEC2Instances,
			Description: "List EC2 instances in the configured region with id, name, type, state, launch time and private IP.",
			Invoke:      s.listInstances,
		},
		{
			Name:        ToolGetEC2InstanceDetails,
			Description: "Get details of one EC2 instance including VPC, subnet, availability zone and security groups.",
			Params:      map[string]*schema.ParameterInfo{ParamInstanceID: stringParam("EC2 instance id, e.g. i-0123456789abcdef0")},
			Invoke:      s.instanceDetails,
		},
		{
			Name:        ToolListRunningEC2Instances,
			Description: "List EC2 instances that are currently running.",
			Invoke:      s.listRunning,
		},
		{
			Name:        ToolSearchEC2Instances,
			Description: "Find EC2 instances whose id or Name tag contains the search term (case-insensitive).",
			Params:      map[string]*schema.ParameterInfo{ParamSearchTerm: stringParam("Part of the instance id or Name tag")},
			Invoke:      s.searchInstances,
		},
	}
}

func (s *EC2Set) describe(ctx context.Context, in ec2.DescribeInstancesInput) ([]ec2types.Instance, bool, error) {
	return collect(ctx, s.client, "DescribeInstances", func(ctx context.Context, token *string) ([]ec2types.Instance, *string, error) {
		req := in
		req.NextToken = token
		resp, err := s.api.DescribeInstances(ctx, &req)
		if err != nil {
			return nil, nil, err
		}
		var out []ec2types.Instance
		for _, r := range resp.Reservations {
			out = append(out, r.Instances...)
		}
		return out, resp.NextToken, nil
	})
}

func (s *EC2Set) list(ctx context.Context, in ec2.DescribeInstancesInput) (InstanceList, error) {
	raw, truncated, err := s.describe(ctx, in)
	if err != nil {
		return InstanceList{}, err
	}
	out := InstanceList{Instances: make([]Instance, 0, len(raw)), Truncated: truncated}
	for _, inst := range raw {
		out.Instances = append(out.Instances, instanceSummary(inst))
	}
	out.Count = len(out.Instances)
	return out, nil
}

func (s *EC2Set) listInstances(ctx context.Context, _ map[string]any) (any, error) {
	return s.list(ctx, ec2.DescribeInstancesInput{})
}

func (s *EC2Set) listRunning(ctx context.Context, _ map[string]any) (any, error) {
	return s.list(ctx, ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{{Name: aws.String("instance-state-name"), Values: []string{"running"}}},
	})
}

func (s *EC2Set) instanceDetails(ctx context.Context, args map[string]any) (any, error) {
	id, err := instanceIDArg(args)
	if err != nil {
		return nil, err
	}

	raw, _, err := s.describe(ctx, ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, notFound("EC2 instance %s not found", id)
	}

	inst := raw[0]
	out := InstanceDetails{
		Instance:       instanceSummary(inst),
		PublicIP:       aws.ToString(inst.PublicIpAddress),
		VPCID:          aws.ToString(inst.VpcId),
		SubnetID:       aws.ToString(inst.SubnetId),
		SecurityGroups: make([]string, 0, len(inst.SecurityGroups)),
	}
	if inst.Placement != nil {
		out.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	for _, sg := range inst.SecurityGroups {
		out.SecurityGroups = append(out.SecurityGroups, aws.ToString(sg.GroupId)+" ("+aws.ToString(sg.GroupName)+")")
	}
	return out, nil
}

func (s *EC2Set) searchInstances(ctx context.Context, args map[string]any) (any, error) {
	term, err := stringArg(args, ParamSearchTerm)
	if err != nil {
		return nil, err
	}

	all, err := s.list(ctx, ec2.DescribeInstancesInput{})
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)
	out := InstanceSearch{SearchTerm: term, Matches: []Instance{}, Truncated: all.Truncated}
	for _, inst := range all.Instances {
		if strings.Contains(strings.ToLower(inst.ID), needle) || strings.Contains(strings.ToLower(inst.Name), needle) {
			out.Matches = append(out.Matches, inst)
		}
	}
	out.Count = len(out.Matches)
	return out, nil
}

func instanceSummary(inst ec2types.Instance) Instance {
	out := Instance{
		ID:         aws.ToString(inst.InstanceId),
		Name:       nameTag(inst.Tags),
		Type:       string(inst.InstanceType),
		LaunchTime: aws.ToTime(inst.LaunchTime),
		PrivateIP:  aws.ToString(inst.PrivateIpAddress),
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	return out
}

func nameTag(tags []ec2types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
