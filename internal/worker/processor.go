package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/VaultForm/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	handlers *Handlers
}

// NewProcessor constructs a worker processor.
func NewProcessor(h *Handlers) *Processor {
	return &Processor{handlers: h}
}

// Handler registers a handler per upload task.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, taskType := range []string{queue.TaskExtract, queue.TaskRemind, queue.TaskExpire} {
		mux.HandleFunc(taskType, p.handle)
	}
	return mux
}

func (p *Processor) handle(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return p.handlers.Handle(ctx, queue.Job{Type: task.Type(), Payload: payload})
}
