package tool

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/cloudwego/eino/schema"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
)

const (
	ToolListIAMUsers      = "list_iam_users"
	ToolListIAMGroups     = "list_iam_groups"
	ToolListIAMPolicies   = "list_iam_policies"
	ToolListIAMRoles      = "list_iam_roles"
	ToolGetIAMUserDetails = "get_iam_user_details"
	ToolSearchIAMUsers    = "search_iam_users"
)

type NameList struct {
	Names     []string `json:"names"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated,omitempty"`
}

type UserSearch struct {
	SearchTerm string   `json:"search_term"`
	Matches    []string `json:"matches"`
	Count      int      `json:"count"`
	Truncated  bool     `json:"truncated,omitempty"`
}

type UserDetails struct {
	UserName         string    `json:"user_name"`
	ARN              string    `json:"arn"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
	PasswordLastUsed time.Time `json:"password_last_used,omitzero"`
	Groups           []string  `json:"groups"`
	InlinePolicies   []string  `json:"inline_policies"`
	AttachedPolicies []string  `json:"attached_policies"`
	// Incomplete lists the secondary lookups that failed and were left empty.
	Incomplete []string `json:"incomplete,omitempty"`
}

type IAMSet struct {
	client *awsclient.Client
	api    awsclient.IAMAPI
}

func NewIAMSet(client *awsclient.Client, api awsclient.IAMAPI) *IAMSet {
	return &IAMSet{client: client, api: api}
}

func (s *IAMSet) Service() string {
	return awsclient.ServiceIAM
}

func (s *IAMSet) Descriptors() []Descriptor {
	return []Descriptor{
		{Name: ToolListIAMUsers, Description: "List all IAM users.", Invoke: s.listUsers},
		{Name: ToolListIAMGroups, Description: "List all IAM groups.", Invoke: s.listGroups},
		{Name: ToolListIAMPolicies, Description: "List customer-managed IAM policies.", Invoke: s.listPolicies},
		{Name: ToolListIAMRoles, Description: "List all IAM roles.", Invoke: s.listRoles},
		{
			Name:        ToolGetIAMUserDetails,
			Description: "Get details of one IAM user: creation date, password last used, groups and policies.",
			Params:      map[string]*schema.ParameterInfo{ParamUsername: stringParam("IAM user name")},
			Invoke:      s.userDetails,
		},
		{
			Name:        ToolSearchIAMUsers,
			Description: "Find IAM users whose name contains the search term (case-insensitive).",
			Params:      map[string]*schema.ParameterInfo{ParamSearchTerm: stringParam("Part of the user name to look for")},
			Invoke:      s.searchUsers,
		},
	}
}

func nameList(names []string, truncated bool) NameList {
	if names == nil {
		names = []string{}
	}
	return NameList{Names: names, Count: len(names), Truncated: truncated}
}

// iamNext turns IAM's marker pagination into a continuation token.
func iamNext(truncated bool, marker *string) *string {
	if !truncated {
		return nil
	}
	return marker
}

func (s *IAMSet) userNames(ctx context.Context) ([]string, bool, error) {
	return collect(ctx, s.client, "ListUsers", func(ctx context.Context, token *string) ([]string, *string, error) {
		resp, err := s.api.ListUsers(ctx, &iam.ListUsersInput{Marker: token})
		if err != nil {
			return nil, nil, err
		}
		out := make([]string, 0, len(resp.Users))
		for _, u := range resp.Users {
			out = append(out, aws.ToString(u.UserName))
		}
		return out, iamNext(resp.IsTruncated, resp.Marker), nil
	})
}

func (s *IAMSet) listUsers(ctx context.Context, _ map[string]any) (any, error) {
	names, truncated, err := s.userNames(ctx)
	if err != nil {
		return nil, err
	}
	return nameList(names, truncated), nil
}

func (s *IAMSet) listGroups(ctx context.Context, _ map[string]any) (any, error) {
	names, truncated, err := collect(ctx, s.client, "ListGroups", func(ctx context.Context, token *string) ([]string, *string, error) {
		resp, err := s.api.ListGroups(ctx, &iam.ListGroupsInput{Marker: token})
		if err != nil {
			return nil, nil, err
		}
		out := make([]string, 0, len(resp.Groups))
		for _, g := range resp.Groups {
			out = append(out, aws.ToString(g.GroupName))
		}
		return out, iamNext(resp.IsTruncated, resp.Marker), nil
	})
	if err != nil {
		return nil, err
	}
	return nameList(names, truncated), nil
}

func (s *IAMSet) listPolicies(ctx context.Context, _ map[string]any) (any, error) {
	names, truncated, err := collect(ctx, s.client, "ListPolicies", func(ctx context.Context, token *string) ([]string, *string, error) {
		resp, err := s.api.ListPolicies(ctx, &iam.ListPoliciesInput{Marker: token, Scope: iamtypes.PolicyScopeTypeLocal})
		if err != nil {
			return nil, nil, err
		}
		out := make([]string, 0, len(resp.Policies))
		for _, p := range resp.Policies {
			out = append(out, aws.ToString(p.PolicyName))
		}
		return out, iamNext(resp.IsTruncated, resp.Marker), nil
	})
	if err != nil {
		return nil, err
	}
	return nameList(names, truncated), nil
}

func (s *IAMSet) listRoles(ctx context.Context, _ map[string]any) (any, error) {
	names, truncated, err := collect(ctx, s.client, "ListRoles", func(ctx context.Context, token *string) ([]string, *string, error) {
		resp, err := s.api.ListRoles(ctx, &iam.ListRolesInput{Marker: token})
		if err != nil {
			return nil, nil, err
		}
		out := make([]string, 0, len(resp.Roles))
		for _, r := range resp.Roles {
			out = append(out, aws.ToString(r.RoleName))
		}
		return out, iamNext(resp.IsTruncated, resp.Marker), nil
	})
	if err != nil {
		return nil, err
	}
	return nameList(names, truncated), nil
}

func (s *IAMSet) userDetails(ctx context.Context, args map[string]any) (any, error) {
	name, err := userNameArg(args)
	if err != nil {
		return nil, err
	}

	resp, err := awsclient.Do(ctx, s.client, "GetUser", func(ctx context.Context) (*iam.GetUserOutput, error) {
		return s.api.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(name)})
	})
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, notFound("IAM user %q not found", name)
	}

	out := UserDetails{
		UserName:         aws.ToString(resp.User.UserName),
		ARN:              aws.ToString(resp.User.Arn),
		CreatedAt:        aws.ToTime(resp.User.CreateDate),
		PasswordLastUsed: aws.ToTime(resp.User.PasswordLastUsed),
		Groups:           []string{},
		InlinePolicies:   []string{},
		AttachedPolicies: []string{},
	}

	groups, err := awsclient.Do(ctx, s.client, "ListGroupsForUser", func(ctx context.Context) (*iam.ListGroupsForUserOutput, error) {
		return s.api.ListGroupsForUser(ctx, &iam.ListGroupsForUserInput{UserName: aws.String(name)})
	})
	if err != nil {
		out.Incomplete = append(out.Incomplete, "groups")
	} else {
		for _, g := range groups.Groups {
			out.Groups = append(out.Groups, aws.ToString(g.GroupName))
		}
	}

	inline, err := awsclient.Do(ctx, s.client, "ListUserPolicies", func(ctx context.Context) (*iam.ListUserPoliciesOutput, error) {
		return s.api.ListUserPolicies(ctx, &iam.ListUserPoliciesInput{UserName: aws.String(name)})
	})
	if err != nil {
		out.Incomplete = append(out.Incomplete, "inline_policies")
	} else {
		out.InlinePolicies = append(out.InlinePolicies, inline.PolicyNames...)
	}

	attached, err := awsclient.Do(ctx, s.client, "ListAttachedUserPolicies", func(ctx context.Context) (*iam.ListAttachedUserPoliciesOutput, error) {
		return s.api.ListAttachedUserPolicies(ctx, &iam.ListAttachedUserPoliciesInput{UserName: aws.String(name)})
	})
	if err != nil {
		out.Incomplete = append(out.Incomplete, "attached_policies")
	} else {
		for _, p := range attached.AttachedPolicies {
			out.AttachedPolicies = append(out.AttachedPolicies, aws.ToString(p.PolicyName))
		}
	}
	return out, nil
}

func (s *IAMSet) searchUsers(ctx context.Context, args map[string]any) (any, error) {
	term, err := stringArg(args, ParamSearchTerm)
	if err != nil {
		return nil, err
	}

	names, truncated, err := s.userNames(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)
	out := UserSearch{SearchTerm: term, Matches: []string{}, Truncated: truncated}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			out.Matches = append(out.Matches, name)
		}
	}
	out.Count = len(out.Matches)
	return out, nil
}
