package job

import (
	"context"

	"github.com/Corona-HomeLab/FinSight/internal/assistant"
)

// SourceRefreshJob periodically re-ingests every active source so the vector
// store tracks upstream data without manual refreshes.
type SourceRefreshJob struct {
	assistant *assistant.Assistant
}

func NewSourceRefreshJob(a *assistant.Assistant) *SourceRefreshJob {
	return &SourceRefreshJob{assistant: a}
}

func (j *SourceRefreshJob) Name() string {
	return "source_refresh"
}

func (j *SourceRefreshJob) Run(ctx context.Context) error {
	return j.assistant.Refresh(ctx)
}
