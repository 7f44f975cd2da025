// internal/operations/operations.go
package operations

import (
	"context"
	"fmt"

	"github.com/jmespath/go-jmespath"

	"graphplane/internal/graph"
)

// Ops is the thin facade the CLI and web surface call. The two operations are
// sample payload shapes layered on the dispatcher; they illustrate the call
// pattern rather than a full Graph SDK.
type Ops struct {
	graph *graph.Client
}

func New(client *graph.Client) *Ops {
	return &Ops{graph: client}
}

// ListUsers returns up to top user records from the tenant directory.
func (o *Ops) ListUsers(ctx context.Context, top int) ([]map[string]any, error) {
	if top <= 0 {
		top = 10
	}
	resp, err := o.graph.Get(ctx, fmt.Sprintf("/v1.0/users?$top=%d", top))
	if err != nil {
		return nil, err
	}
	var data any
	if err := resp.JSON(&data); err != nil {
		return nil, fmt.Errorf("decode users response: %w", err)
	}
	value, err := jmespath.Search("value", data)
	if err != nil {
		return nil, fmt.Errorf("extract users from response: %w", err)
	}
	items, _ := value.([]any)
	users := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			users = append(users, m)
		}
	}
	return users, nil
}

// CreateSecurityGroup creates a mail-disabled security group and returns the
// created record.
func (o *Ops) CreateSecurityGroup(ctx context.Context, displayName, description string) (map[string]any, error) {
	payload := map[string]any{
		"displayName":     displayName,
		"description":     description,
		"securityEnabled": true,
		"mailEnabled":     false,
		"groupTypes":      []string{},
	}
	resp, err := o.graph.Post(ctx, "/v1.0/groups", payload)
	if err != nil {
		return nil, err
	}
	var created map[string]any
	if err := resp.JSON(&created); err != nil {
		return nil, fmt.Errorf("decode group response: %w", err)
	}
	return created, nil
}
