package queue

import (
	"github.com/postloom/postloom/internal/service"
)

type Queue struct {
	scheduler service.SchedulerService
}

func NewQueue(scheduler service.SchedulerService) *Queue {
	return &Queue{scheduler: scheduler}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
