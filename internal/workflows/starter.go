package workflows

import (
	"context"
	"fmt"
	"log/slog"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Starter starts refresh workflows on a task queue.
type Starter struct {
	client    client.Client
	taskQueue string
}

// NewStarter creates a Starter for taskQueue.
func NewStarter(c client.Client, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// ScheduleRefresh starts a refresh for the athlete unless one is already
// running, in which case the running one is reused.
func (s *Starter) ScheduleRefresh(ctx context.Context, athleteID int64) error {
	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID(athleteID),
		TaskQueue:             s.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, RefreshStatsWorkflowName, RefreshInput{AthleteID: athleteID})
	if err != nil {
		return fmt.Errorf("start refresh for athlete %d: %w", athleteID, err)
	}
	slog.DebugContext(ctx, "refresh workflow started",
		"athlete_id", athleteID,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return nil
}
