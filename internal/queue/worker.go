package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// HandlePublishPostTask publishes one post when its delay elapses. The
// claim inside PublishPost makes this safe to run alongside the minute
// sweep; whichever gets there first wins and the other is a no-op.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.scheduler.PublishPost(ctx, payload.PostID)
}
