package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/kling"
	"server/internal/stream"
)

// Vendor is the slice of the generation client the orchestrator drives.
type Vendor interface {
	CreateTask(ctx context.Context, req kling.TaskRequest) (string, error)
	QueryTask(ctx context.Context, taskID string) (kling.TaskState, error)
	DownloadAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// EmitFunc delivers one progress event to the caller. Returning an error
// signals the downstream consumer is gone and the batch must stop.
type EmitFunc func(stream.Event) error

// Job describes one augmentation batch: a base task request plus one motion
// phrase per sub-job slot.
type Job struct {
	Base    kling.TaskRequest
	Motions []string
}

// Options tune the batch policy. Submission spacing respects the vendor
// rate limit; interval and deadline bound each slot's poll loop.
type Options struct {
	SubmitSpacing time.Duration
	PollInterval  time.Duration
	PollDeadline  time.Duration
}

// Batch runs N independent generation tasks to completion with isolated
// failure handling. Polling is sequential in slot order: one in-flight
// vendor call at a time is the chosen concurrency bound for the batch path.
type Batch struct {
	vendor Vendor
	opts   Options
	logger infra.Logger
}

func NewBatch(vendor Vendor, opts Options, logger infra.Logger) *Batch {
	if opts.SubmitSpacing <= 0 {
		opts.SubmitSpacing = 500 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 4 * time.Second
	}
	if opts.PollDeadline <= 0 {
		opts.PollDeadline = 180 * time.Second
	}
	return &Batch{vendor: vendor, opts: opts, logger: logger}
}

// Run submits every slot with rate-limit spacing, then resolves each slot in
// original order. A failed slot never aborts the batch: it is converted into
// a submit_error or frame_error event and still counted toward the final
// total. Exactly one done event closes the stream, with total_frames equal
// to the slot count.
func (b *Batch) Run(ctx context.Context, job Job, emit EmitFunc) error {
	total := len(job.Motions)
	if total == 0 {
		return fmt.Errorf("%w: at least one motion is required", domain.ErrValidation)
	}

	taskIDs := make([]string, total)
	prompts := make([]string, total)

	for i, motion := range job.Motions {
		if i > 0 {
			if err := sleepCtx(ctx, b.opts.SubmitSpacing); err != nil {
				return err
			}
		}
		req := job.Base
		req.Prompt = variantPrompt(job.Base.Prompt, motion)
		prompts[i] = req.Prompt

		taskID, err := b.vendor.CreateTask(ctx, req)
		if err != nil {
			// Placeholder slot: skipped at poll time, still counted done.
			b.logger.Warn().Err(err).Int("index", i).Msg("batch: submission failed")
			if emitErr := emit(stream.SubmitError(i, total, err.Error())); emitErr != nil {
				return emitErr
			}
			continue
		}
		taskIDs[i] = taskID
		b.logger.Debug().Int("index", i).Str("task_id", taskID).Msg("batch: submitted")
		if err := emit(stream.Submitted(i, total, taskID)); err != nil {
			return err
		}
	}

	done := 0
	for i, taskID := range taskIDs {
		if taskID == "" {
			done++
			if err := emit(stream.Progress(done, total)); err != nil {
				return err
			}
			continue
		}
		if err := emit(stream.Polling(i, total, taskID)); err != nil {
			return err
		}

		state := b.pollTask(ctx, taskID)
		switch state.Status {
		case domain.TaskSucceeded:
			if err := emit(stream.Downloading(i, total, taskID)); err != nil {
				return err
			}
			frameB64 := ""
			data, err := b.vendor.DownloadAsset(ctx, state.AssetURL)
			if err != nil {
				// Degrade: the asset exists upstream, hand out the URL.
				b.logger.Warn().Err(err).Str("task_id", taskID).Msg("batch: asset download failed, returning remote url")
			} else {
				frameB64 = base64.StdEncoding.EncodeToString(data)
			}
			if err := emit(stream.Frame(i, total, prompts[i], frameB64, state.AssetURL)); err != nil {
				return err
			}
		case domain.TaskTimedOut:
			msg := fmt.Sprintf("generation still running after %s, resume with task id %s", b.opts.PollDeadline, taskID)
			if err := emit(stream.FrameError(i, total, msg)); err != nil {
				return err
			}
		default:
			msg := state.Message
			if msg == "" {
				msg = "generation failed"
			}
			if err := emit(stream.FrameError(i, total, msg)); err != nil {
				return err
			}
		}

		done++
		if err := emit(stream.Progress(done, total)); err != nil {
			return err
		}
	}

	return emit(stream.DoneEvent(done, fmt.Sprintf("batch complete: %d/%d slots resolved", done, total)))
}

// pollTask advances one task's state machine on a fixed tick until the
// vendor reports a terminal state or the wall-clock deadline elapses. On
// deadline it reports TimedOut without touching vendor state; the task id
// stays valid for a later out-of-band query. Loop duration never exceeds
// deadline plus one interval.
func (b *Batch) pollTask(ctx context.Context, taskID string) kling.TaskState {
	deadline := time.Now().Add(b.opts.PollDeadline)
	for {
		if err := sleepCtx(ctx, b.opts.PollInterval); err != nil {
			return kling.TaskState{Status: domain.TaskTimedOut, Message: err.Error()}
		}

		state, err := b.vendor.QueryTask(ctx, taskID)
		if err != nil {
			var upstream *domain.UpstreamError
			if errors.As(err, &upstream) {
				return kling.TaskState{Status: domain.TaskFailed, Message: upstream.Message}
			}
			// Transient query failure counts as a missed tick.
			b.logger.Warn().Err(err).Str("task_id", taskID).Msg("batch: status query failed")
		} else if state.Status.IsTerminal() {
			return state
		}

		if time.Now().After(deadline) {
			return kling.TaskState{Status: domain.TaskTimedOut}
		}
	}
}

func variantPrompt(base, motion string) string {
	motion = strings.TrimSpace(motion)
	if motion == "" {
		return base
	}
	return base + ", " + motion
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
