package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/trainer"
	"server/internal/statusstore"
)

const claimInterval = 2 * time.Second

// Runner is the background worker loop for fire-and-forget training jobs.
// It claims queued jobs from the status store, drives the training backend,
// and mirrors live progress into the shared record so the status endpoint
// never has to touch the backend.
type Runner struct {
	store   statusstore.Store
	trainer *trainer.Client
	logger  infra.Logger
}

func NewRunner(store statusstore.Store, client *trainer.Client, logger infra.Logger) *Runner {
	return &Runner{store: store, trainer: client, logger: logger}
}

// Run claims and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Msg("training runner: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := r.store.Claim(ctx)
		if err != nil {
			if !errors.Is(err, statusstore.ErrNoJob) {
				r.logger.Error().Err(err).Msg("training runner: claim failed")
			}
			if err := sleepCtx(ctx, claimInterval); err != nil {
				return err
			}
			continue
		}

		r.handle(ctx, job)
	}
}

func (r *Runner) handle(ctx context.Context, job statusstore.ClaimedJob) {
	r.logger.Info().Str("job_id", job.JobID).Str("kind", job.Kind).Msg("training runner: picked job")

	spec, err := decodeSpec(job)
	if err != nil {
		r.finish(ctx, job.JobID, domain.TrainingFailed, nil, 0, 0, err.Error())
		return
	}

	result, err := r.trainer.Train(ctx, spec, func(p trainer.Progress) {
		if err := r.store.UpdateProgress(ctx, job.JobID, p.CurrentStep, p.TotalSteps, p.Loss, p.EtaMin, p.ElapsedMin); err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("training runner: progress update failed")
		}
	})
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", job.JobID).Msg("training runner: job failed")
		r.finish(ctx, job.JobID, domain.TrainingFailed, nil, 0, 0, err.Error())
		return
	}

	status := domain.TrainingSucceeded
	if !result.Ok {
		status = domain.TrainingFailed
	}
	r.finish(ctx, job.JobID, status, result.Results, result.Cost, result.TrainTime, result.Error)
	r.logger.Info().Str("job_id", job.JobID).Str("status", string(status)).Msg("training runner: job finished")
}

func (r *Runner) finish(ctx context.Context, jobID string, status domain.TrainingStatus, results []domain.SubtaskResult, cost, trainTime float64, errMsg string) {
	if err := r.store.Finish(ctx, jobID, status, results, cost, trainTime, errMsg); err != nil {
		r.logger.Error().Err(err).Str("job_id", jobID).Msg("training runner: finish update failed")
	}
}

func decodeSpec(job statusstore.ClaimedJob) (trainer.Spec, error) {
	var spec trainer.Spec
	if err := json.Unmarshal(job.Spec, &spec); err != nil {
		return trainer.Spec{}, fmt.Errorf("decode training spec: %w", err)
	}
	spec.JobID = job.JobID
	spec.Kind = job.Kind
	return spec, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
