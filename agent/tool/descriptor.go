package tool

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

const (
	ParamBucketName = "bucket_name"
	ParamUsername   = "username"
	ParamInstanceID = "instance_id"
	ParamSearchTerm = "search_term"
)

// maxPages bounds how many continuation pages one listing follows.
const maxPages = 20

// Handler runs one tool. Errors are folded into a ToolResult by the registry.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type Descriptor struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
	Invoke      Handler
}

func (d Descriptor) Info() *schema.ToolInfo {
	params := d.Params
	if params == nil {
		params = map[string]*schema.ParameterInfo{}
	}
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// Set is a group of tools over one AWS service.
type Set interface {
	Service() string
	Descriptors() []Descriptor
}

func stringParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: true}
}
