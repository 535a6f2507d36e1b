package tool

import (
	"context"
	"testing"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

func ec2Registry(t *testing.T, api *fakeEC2) *Registry {
	t.Helper()

	r, err := BuildRegistry([]Set{NewEC2Set(testClient(t, awsclient.ServiceEC2), api)})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	return r
}

func testInstances() []ec2types.Instance {
	return []ec2types.Instance{
		ec2Instance("i-0123456789abcdef0", "web-1", ec2types.InstanceStateNameRunning),
		ec2Instance("i-0badc0de", "batch", ec2types.InstanceStateNameStopped),
	}
}

func TestListEC2Instances(t *testing.T) {
	t.Parallel()

	api := &fakeEC2{instances: testInstances()}
	res := ec2Registry(t, api).Invoke(context.Background(), contractx.ToolRequest{Tool: ToolListEC2Instances})
	if !res.OK {
		t.Fatalf("unexpected failure: %+v", res)
	}
	list := res.Payload.(InstanceList)
	if list.Count != 2 || list.Instances[0].Name != "web-1" || list.Instances[0].Type != "t3.micro" {
		t.Fatalf("unexpected instances: %+v", list)
	}
}

func TestListRunningEC2InstancesFilters(t *testing.T) {
	t.Parallel()

	api := &fakeEC2{instances: testInstances()}
	res := ec2Registry(t, api).Invoke(context.Background(), contractx.ToolRequest{Tool: ToolListRunningEC2Instances})
	list := res.Payload.(InstanceList)
	if list.Count != 1 || list.Instances[0].State != "running" {
		t.Fatalf("unexpected instances: %+v", list)
	}
	filters := api.inputs[0].Filters
	if len(filters) != 1 || *filters[0].Name != "instance-state-name" {
		t.Fatalf("unexpected filters: %+v", filters)
	}
}

func TestGetEC2InstanceDetailsValidatesID(t *testing.T) {
	t.Parallel()

	api := &fakeEC2{instances: testInstances()}
	r := ec2Registry(t, api)
	for _, id := range []string{"", "web-1", "i-123", "i-0123456789abcdefg", "i-0123456789"} {
		res := r.Invoke(context.Background(), contractx.ToolRequest{
			Tool: ToolGetEC2InstanceDetails,
			Args: map[string]any{ParamInstanceID: id},
		})
		if res.ErrorKind != contractx.KindInvalidInput {
			t.Fatalf("id %q: result = %+v, want invalid_input", id, res)
		}
	}
	if len(api.inputs) != 0 {
		t.Fatalf("DescribeInstances called %d times, want 0", len(api.inputs))
	}
}

func TestGetEC2InstanceDetails(t *testing.T) {
	t.Parallel()

	api := &fakeEC2{instances: testInstances()}
	res := ec2Registry(t, api).Invoke(context.Background(), contractx.ToolRequest{
		Tool: ToolGetEC2InstanceDetails,
		Args: map[string]any{ParamInstanceID: "i-0123456789abcdef0"},
	})
	if !res.OK {
		t.Fatalf("unexpected failure: %+v", res)
	}
	details := res.Payload.(InstanceDetails)
	if details.AvailabilityZone != "us-east-1a" || details.VPCID != "vpc-1" || len(details.SecurityGroups) != 1 {
		t.Fatalf("unexpected details: %+v", details)
	}

	res = ec2Registry(t, api).Invoke(context.Background(), contractx.ToolRequest{
		Tool: ToolGetEC2InstanceDetails,
		Args: map[string]any{ParamInstanceID: "i-deadbeef"},
	})
	if res.ErrorKind != contractx.KindNotFound {
		t.Fatalf("result = %+v, want not_found", res)
	}
}

func TestSearchEC2InstancesMatchesIDAndName(t *testing.T) {
	t.Parallel()

	api := &fakeEC2{instances: testInstances()}
	r := ec2Registry(t, api)

	res := r.Invoke(context.Background(), contractx.ToolRequest{Tool: ToolSearchEC2Instances, Args: map[string]any{ParamSearchTerm: "WEB"}})
	if found := res.Payload.(InstanceSearch); found.Count != 1 || found.Matches[0].Name != "web-1" {
		t.Fatalf("unexpected matches: %+v", res.Payload)
	}
	res = r.Invoke(context.Background(), contractx.ToolRequest{Tool: ToolSearchEC2Instances, Args: map[string]any{ParamSearchTerm: "badc0de"}})
	if found := res.Payload.(InstanceSearch); found.Count != 1 || found.Matches[0].Name != "batch" {
		t.Fatalf("unexpected matches: %+v", res.Payload)
	}
}
