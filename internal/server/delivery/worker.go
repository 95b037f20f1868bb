package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/mail"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// OutcomeRecorder is the slice of the contact log store the worker needs.
type OutcomeRecorder interface {
	Get(ctx context.Context, id string) (*models.ContactLog, error)
	MarkDelivery(ctx context.Context, id string, status models.DeliveryStatus, errMsg *string, at time.Time) (bool, error)
}

type Options struct {
	// Timeout bounds every single send attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts, at least 1.
	MaxAttempts int
	// Backoff is the first retry delay; it doubles on each retry.
	Backoff time.Duration
}

const recordTimeout = 5 * time.Second

type Worker struct {
	sender   mail.Sender
	recorder OutcomeRecorder
	log      logging.Logger
	opts     Options
	group    singleflight.Group
	now      func() time.Time
}

func NewWorker(sender mail.Sender, recorder OutcomeRecorder, log logging.Logger, opts Options) *Worker {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Worker{
		sender:   sender,
		recorder: recorder,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// Dispatch delivers job and never panics or returns an error: every failure
// ends up in the Outcome. Concurrent calls for the same job id share one
// execution, and the terminal write only applies to a pending row, so a
// contact log receives exactly one outcome.
func (w *Worker) Dispatch(ctx context.Context, job Job) Outcome {
	key := job.ID
	if key == "" {
		key = job.ContactLogID
	}
	if key == "" {
		return w.dispatch(ctx, job)
	}

	v, _, _ := w.group.Do(key, func() (any, error) {
		return w.dispatch(ctx, job), nil
	})
	return v.(Outcome)
}

func (w *Worker) dispatch(ctx context.Context, job Job) Outcome {
	log := w.log.With("job_id", job.ID, "kind", string(job.Kind), "contact_log_id", job.ContactLogID)

	if job.ContactLogID != "" {
		cl, err := w.recorder.Get(ctx, job.ContactLogID)
		switch {
		case err == nil && cl.EmailSent.Terminal():
			log.Debug(ctx, "delivery already recorded, skipping", "status", string(cl.EmailSent))
			return Outcome{Status: cl.EmailSent, Skipped: true}
		case err != nil:
			log.Warn(ctx, "could not read delivery state, sending anyway", "error", err)
		}
	}

	attempts, err := w.send(ctx, job)

	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrTimeout) {
		log.Warn(ctx, "delivery interrupted, left pending", "attempts", attempts, "error", err)
		return Outcome{Status: models.DeliveryPending, Err: err, Attempts: attempts}
	}

	out := Outcome{Status: models.DeliverySent, Attempts: attempts}
	if err != nil {
		out.Status = models.DeliveryFailed
		out.Err = err
		log.Warn(ctx, "delivery failed", "attempts", attempts, "error", err)
	} else {
		log.Info(ctx, "delivery sent", "attempts", attempts)
	}

	if job.ContactLogID != "" {
		out.Recorded = w.record(ctx, log, job.ContactLogID, out)
	}
	return out
}

// send runs up to MaxAttempts attempts with exponential backoff.
func (w *Worker) send(ctx context.Context, job Job) (int, error) {
	attempts := 0
	b := retry.WithMaxRetries(uint64(w.opts.MaxAttempts-1), retry.NewExponential(w.opts.Backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		if err := w.attempt(ctx, job); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	return attempts, err
}

func (w *Worker) attempt(ctx context.Context, job Job) (err error) {
	actx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()

	err = w.sender.Send(actx, job.Message)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, w.opts.Timeout, err)
	}
	return err
}

// record writes the terminal outcome. It survives cancellation of ctx so an
// outcome reached during shutdown is still stored.
func (w *Worker) record(ctx context.Context, log logging.Logger, id string, out Outcome) bool {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	var msg *string
	if out.Err != nil {
		s := out.Err.Error()
		msg = &s
	}

	applied, err := w.recorder.MarkDelivery(rctx, id, out.Status, msg, w.now())
	if err != nil {
		log.Error(ctx, "could not record delivery outcome", "status", string(out.Status), "error", err)
		return false
	}
	if !applied {
		log.Warn(ctx, "delivery outcome already recorded by another writer", "status", string(out.Status))
	}
	return applied
}
