package tool

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
)

type page[T any] struct {
	items []T
	next  *string
}

// collect follows continuation tokens through client for at most maxPages
// pages. The bool reports whether it stopped at the cap.
func collect[T any](
	ctx context.Context,
	client *awsclient.Client,
	operation string,
	fetch func(ctx context.Context, token *string) ([]T, *string, error),
) ([]T, bool, error) {
	var (
		out   []T
		token *string
	)
	for range maxPages {
		p, err := awsclient.Do(ctx, client, operation, func(ctx context.Context) (page[T], error) {
			items, next, err := fetch(ctx, token)
			return page[T]{items: items, next: next}, err
		})
		if err != nil {
			return nil, false, err
		}
		out = append(out, p.items...)
		if aws.ToString(p.next) == "" {
			return out, false, nil
		}
		token = p.next
	}
	return out, true, nil
}
