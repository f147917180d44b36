package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RefreshStatsWorkflowName is the registered name of RefreshStatsWorkflow.
const RefreshStatsWorkflowName = "RefreshStatsWorkflow"

// RefreshInput is the input for the stats refresh workflow.
type RefreshInput struct {
	AthleteID int64
}

// RefreshResult is what a completed refresh stored.
type RefreshResult struct {
	AthleteID int64
	Total     float64
	Maps      []string
}

// WorkflowID is the workflow ID for an athlete's refresh. Requests arriving
// while a refresh runs collapse into that run.
func WorkflowID(athleteID int64) string {
	return fmt.Sprintf("refresh-%d", athleteID)
}

// RefreshStatsWorkflow pulls an athlete's year-to-date run distance from
// Strava, stores it and announces the new totals to every map the athlete is on.
func RefreshStatsWorkflow(ctx workflow.Context, input RefreshInput) (*RefreshResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting stats refresh", "athleteID", input.AthleteID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeUnauthorized, ErrTypeNotFound},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Load the athlete and its refresh token
	var state AthleteState
	if err := workflow.ExecuteActivity(ctx, "LoadAthlete", input.AthleteID).Get(ctx, &state); err != nil {
		return nil, err
	}

	// Step 2: Ask Strava for the year-to-date total
	var ytd YearToDate
	if err := workflow.ExecuteActivity(ctx, "FetchYearToDate", state).Get(ctx, &ytd); err != nil {
		logger.Warn("strava fetch failed", "athleteID", input.AthleteID, "error", err)
		return nil, err
	}

	// Step 3: Store it
	state.RefreshToken = ytd.RefreshToken
	if err := workflow.ExecuteActivity(ctx, "SaveStats", state, ytd.Total).Get(ctx, nil); err != nil {
		return nil, err
	}

	// Step 4: Tell the maps. Totals are already stored, so a failed
	// announcement only delays live updates.
	if err := workflow.ExecuteActivity(ctx, "PublishStatsUpdated", state, ytd.Total).Get(ctx, nil); err != nil {
		logger.Warn("stats announcement failed", "athleteID", input.AthleteID, "error", err)
	}

	logger.Info("Stats refreshed", "athleteID", input.AthleteID, "total", ytd.Total)
	return &RefreshResult{AthleteID: state.AthleteID, Total: ytd.Total, Maps: state.Maps}, nil
}
