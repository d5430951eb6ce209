package statusstore

import (
	"context"
	"encoding/json"
	"fmt"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// Postgres persists training records in the training_jobs table via
// marker-tagged inline SQL.
type Postgres struct {
	sql infra.SQLExecutor
}

func NewPostgres(sql infra.SQLExecutor) *Postgres {
	return &Postgres{sql: sql}
}

func (p *Postgres) Enqueue(ctx context.Context, jobID, kind string, spec json.RawMessage) error {
	if len(spec) == 0 {
		spec = json.RawMessage(`{}`)
	}
	_, err := p.sql.Exec(ctx, sqlinline.QEnqueueTrainingJob, jobID, kind, spec)
	if err != nil {
		return fmt.Errorf("enqueue training job: %w", err)
	}
	return nil
}

func (p *Postgres) Claim(ctx context.Context) (ClaimedJob, error) {
	row := p.sql.QueryRow(ctx, sqlinline.QClaimTrainingJob)
	var job ClaimedJob
	var spec []byte
	if err := row.Scan(&job.JobID, &job.Kind, &spec); err != nil {
		if infra.IsNoRows(err) {
			return ClaimedJob{}, ErrNoJob
		}
		return ClaimedJob{}, err
	}
	// Ensure spec bytes are not aliased.
	job.Spec = append(json.RawMessage(nil), spec...)
	return job, nil
}

func (p *Postgres) Get(ctx context.Context, jobID string) (domain.TrainingRecord, error) {
	row := p.sql.QueryRow(ctx, sqlinline.QSelectTrainingRecord, jobID)
	var rec domain.TrainingRecord
	var status string
	var results []byte
	if err := row.Scan(
		&rec.JobID, &rec.Kind, &status, &results, &rec.Cost, &rec.TrainTime,
		&rec.CurrentStep, &rec.TotalSteps, &rec.Loss, &rec.EtaMin, &rec.ElapsedMin,
		&rec.Error, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return domain.TrainingRecord{}, domain.ErrNotFound
		}
		return domain.TrainingRecord{}, err
	}
	rec.Status = domain.TrainingStatus(status)
	if len(results) > 0 {
		if err := json.Unmarshal(results, &rec.Results); err != nil {
			return domain.TrainingRecord{}, fmt.Errorf("decode training results: %w", err)
		}
	}
	return rec, nil
}

func (p *Postgres) UpdateProgress(ctx context.Context, jobID string, currentStep, totalSteps int, loss, etaMin, elapsedMin float64) error {
	_, err := p.sql.Exec(ctx, sqlinline.QUpdateTrainingProgress, jobID, currentStep, totalSteps, loss, etaMin, elapsedMin)
	return err
}

func (p *Postgres) Finish(ctx context.Context, jobID string, status domain.TrainingStatus, results []domain.SubtaskResult, cost, trainTime float64, errMsg string) error {
	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode training results: %w", err)
	}
	_, err = p.sql.Exec(ctx, sqlinline.QFinishTrainingJob, jobID, string(status), encoded, cost, trainTime, errMsg)
	return err
}

var _ Store = (*Postgres)(nil)
