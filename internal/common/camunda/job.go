package camunda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const reportTimeout = 5 * time.Second

// RunJob decodes the job variables into I, runs exec under timeout and
// completes the job with its output. Failures go through the shared
// ErrorHandler so retryable codes consume job retries and the rest are
// thrown as BPMN errors.
func RunJob[I any, O any](
	client worker.JobClient,
	job entities.Job,
	taskType string,
	timeout time.Duration,
	log logger.Logger,
	exec func(ctx context.Context, input *I) (*O, error),
) {
	log.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	errHandler := apperrors.NewErrorHandler(log)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var input I
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(apperrors.ErrCodeInvalidInput)).Inc()
		errHandler.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err)))
		return
	}

	output, err := exec(ctx, &input)
	if err != nil {
		if _, ok := apperrors.AsStandardError(err); !ok && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = apperrors.NewTimeoutError(taskType, err)
		}
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(apperrors.Normalize(err).Code)).Inc()
		reportCtx, cancelReport := reportContext(ctx)
		defer cancelReport()
		errHandler.HandleJobError(reportCtx, client, job, err)
		return
	}

	reportCtx, cancelReport := reportContext(ctx)
	defer cancelReport()
	CompleteJob(reportCtx, client, job, output, log)
	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
}

// reportContext detaches job completion from the execution deadline so an
// expired job can still be failed back to the broker.
func reportContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
}

func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
