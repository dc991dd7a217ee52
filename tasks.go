package nodio

import (
	"context"
	"encoding/json"
)

// Tasks maps task operations onto API requests.
type Tasks struct {
	client *Client
}

// Create adds a task. task is sent as the request body unchanged.
func (t *Tasks) Create(ctx context.Context, task any) (json.RawMessage, error) {
	return t.client.Handle(ctx, PostJSON, "task/", task)
}
