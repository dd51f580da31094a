package server_demon

import (
	"context"
	"time"

	"go.uber.org/zap"

	dto "cryptopay/internal/entity"
	"cryptopay/internal/repository"
	"cryptopay/utils/connector"
)

const (
	// PollInterval is the spacing between status checks for one payment.
	PollInterval = 5 * time.Second
	// MaxAttempts bounds polling per payment: 60 checks at 5s is five
	// minutes, after which an abandoned payment is forced to expired.
	MaxAttempts = 60

	idleSleep = time.Second
)

type statusSyncer interface {
	SyncPaymentStatus(ctx context.Context, paymentID string) (*dto.Payment, error)
}

// Daemon drains the poll queue and keeps payment records in sync with the
// provider until each payment reaches a terminal state or runs out of its
// attempt budget. It is the only long-lived background activity in the
// service and stops with its context.
type Daemon struct {
	paymentService statusSyncer
	storage        repository.PaymentRepository
	taskQueue      connector.Queue
	log            *zap.Logger

	pollInterval time.Duration
	maxAttempts  int
}

func NewDaemon(paymentService statusSyncer, storage repository.PaymentRepository, taskQueue connector.Queue, log *zap.Logger) *Daemon {
	return &Daemon{
		paymentService: paymentService,
		storage:        storage,
		taskQueue:      taskQueue,
		log:            log.With(zap.String("component", "payment_daemon")),
		pollInterval:   PollInterval,
		maxAttempts:    MaxAttempts,
	}
}

// Run processes poll tasks until ctx is cancelled. Errors are logged and
// never escape the loop.
func (d *Daemon) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.log.Info("Payment daemon gracefully stopped")
			return
		default:
			d.processNext(ctx)
		}
	}
}

func (d *Daemon) processNext(ctx context.Context) {
	task, ok := d.taskQueue.Dequeue()
	if !ok {
		d.sleep(ctx, idleSleep)
		return
	}

	if wait := time.Until(task.NotBefore); wait > 0 {
		// Single consumer, so the head task is always the oldest; waiting
		// here cannot starve a task that is already due.
		d.sleep(ctx, wait)
		if ctx.Err() != nil {
			return
		}
	}

	payment, err := d.paymentService.SyncPaymentStatus(ctx, task.Payment.PaymentID)
	if err != nil {
		d.log.Error("Unable to sync payment status",
			zap.String("payment_id", task.Payment.PaymentID),
			zap.Int("attempt", task.Attempts),
			zap.Error(err))
		d.requeue(ctx, task)
		return
	}

	if payment.Status.IsTerminal() {
		d.log.Info("Payment reached terminal status",
			zap.String("payment_id", payment.PaymentID),
			zap.String("status", string(payment.Status)),
			zap.Int("attempts", task.Attempts+1))
		return
	}

	task.Payment = *payment
	d.requeue(ctx, task)
}

// requeue schedules the next check, or gives up when the attempt budget is
// spent and forces the local record to expired.
func (d *Daemon) requeue(ctx context.Context, task connector.PollTask) {
	task.Attempts++
	if task.Attempts >= d.maxAttempts {
		d.expire(ctx, task)
		return
	}
	task.NotBefore = time.Now().Add(d.pollInterval)
	d.taskQueue.Enqueue(task)
}

func (d *Daemon) expire(ctx context.Context, task connector.PollTask) {
	task.Payment.Status = dto.StatusExpired
	if err := d.storage.UpsertPayment(ctx, &task.Payment); err != nil {
		d.log.Error("Failed to expire abandoned payment",
			zap.String("payment_id", task.Payment.PaymentID),
			zap.Error(err))
		return
	}
	d.log.Warn("Polling budget exhausted, payment expired",
		zap.String("payment_id", task.Payment.PaymentID),
		zap.Int("attempts", task.Attempts))
}

func (d *Daemon) sleep(ctx context.Context, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
