package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/repository"
	infraprometheus "github.com/trackflow/trackflow/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// Linear backoff step between outbound attempts.
	retryBackoffStep = 5 * time.Minute
	// How long a leased job stays invisible to other sweepers.
	defaultJobLease = 2 * time.Minute

	defaultSweepInterval = 30 * time.Second
	defaultSweepBatch    = 50
	consumerFetchBatch   = 10
)

// PostbackPublisher pushes due job ids onto the JetStream work queue.
type PostbackPublisher struct {
	js nats.JetStreamContext
}

// NewPostbackPublisher creates a publisher for the postback work queue.
func NewPostbackPublisher(js nats.JetStreamContext) *PostbackPublisher {
	return &PostbackPublisher{js: js}
}

// PublishJob implements JobPublisher.
func (p *PostbackPublisher) PublishJob(jobID string) error {
	_, err := p.js.Publish(model.PostbackStreamSubject, []byte(jobID))
	return err
}

// Dispatcher drives the outbound postback state machine: a periodic sweeper
// leases due jobs from Postgres and offers them to a JetStream work queue;
// a durable consumer renders macros, sends, and advances each job to sent,
// a retried pending, or terminally failed.
type Dispatcher struct {
	logger      *zap.Logger
	js          nats.JetStreamContext
	jobs        repository.PostbackJobRepository
	conversions repository.ConversionRepository
	clicks      repository.ClickRepository
	sender      Sender
	publisher   *PostbackPublisher

	interval time.Duration
	batch    int
	lease    time.Duration
	stopChan chan struct{}
}

// DispatcherConfig tunes the sweep loop; zero values fall back to defaults.
type DispatcherConfig struct {
	SweepInterval time.Duration
	SweepBatch    int
	JobLease      time.Duration
}

// NewDispatcher wires the dispatcher with its collaborators.
func NewDispatcher(
	logger *zap.Logger,
	js nats.JetStreamContext,
	jobs repository.PostbackJobRepository,
	conversions repository.ConversionRepository,
	clicks repository.ClickRepository,
	sender Sender,
	cfg DispatcherConfig,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	if cfg.JobLease <= 0 {
		cfg.JobLease = defaultJobLease
	}
	return &Dispatcher{
		logger:      logger,
		js:          js,
		jobs:        jobs,
		conversions: conversions,
		clicks:      clicks,
		sender:      sender,
		publisher:   NewPostbackPublisher(js),
		interval:    cfg.SweepInterval,
		batch:       cfg.SweepBatch,
		lease:       cfg.JobLease,
		stopChan:    make(chan struct{}),
	}
}

// Publisher exposes the work-queue publisher for the conversion recorder.
func (d *Dispatcher) Publisher() JobPublisher {
	return d.publisher
}

// Start creates the stream and durable consumer if needed, then launches the
// sweep and consume loops.
func (d *Dispatcher) Start() error {
	if _, err := d.js.StreamInfo(model.PostbackStreamName); err != nil {
		_, err = d.js.AddStream(&nats.StreamConfig{
			Name:      model.PostbackStreamName,
			Subjects:  []string{model.PostbackStreamSubject},
			MaxBytes:  model.PostbackStreamMaxBytes,
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create postback stream: %w", err)
		}
	}

	if _, err := d.js.ConsumerInfo(model.PostbackStreamName, model.PostbackConsumerName); err != nil {
		_, err = d.js.AddConsumer(model.PostbackStreamName, &nats.ConsumerConfig{
			Durable:   model.PostbackConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create postback consumer: %w", err)
		}
	}

	sub, err := d.js.PullSubscribe(model.PostbackStreamSubject, model.PostbackConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe to postback queue: %w", err)
	}

	go d.sweepLoop()
	go d.consume(sub)
	return nil
}

// Stop halts the sweep loop.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
}

func (d *Dispatcher) sweepLoop() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweep()
		case <-d.stopChan:
			d.logger.Info("postback sweeper stopped")
			return
		}
	}
}

// sweep leases due jobs and offers them to the work queue. A failed publish
// is left alone; the lease expires and a later sweep re-offers the job.
func (d *Dispatcher) sweep() {
	ctx := context.Background()
	ids, err := d.jobs.LeaseDue(ctx, d.batch, d.lease)
	if err != nil {
		d.logger.Error("failed to lease due postback jobs", zap.Error(err))
		return
	}

	for _, id := range ids {
		if err := d.publisher.PublishJob(id); err != nil {
			d.logger.Error("failed to offer postback job to queue",
				zap.String("job_id", id), zap.Error(err))
		}
	}

	if len(ids) > 0 {
		d.logger.Debug("offered due postback jobs", zap.Int("count", len(ids)))
	}
}

func (d *Dispatcher) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		select {
		case <-d.stopChan:
			d.logger.Info("postback consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(consumerFetchBatch, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			d.logger.Error("failed to fetch postback jobs", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			jobID := string(msg.Data)
			if err := d.Deliver(ctx, jobID); err != nil {
				d.logger.Error("postback delivery attempt errored",
					zap.String("job_id", jobID), zap.Error(err))
			}
			// Job state lives in Postgres; the queue message is always acked.
			msg.Ack()
		}
	}
}

// Deliver performs one send attempt for the job and advances its state
// machine: success → sent, failure below the attempt cap → pending with
// linear backoff, failure at the cap → failed.
func (d *Dispatcher) Deliver(ctx context.Context, jobID string) error {
	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status != model.PostbackStatusPending || job.Attempts >= job.MaxAttempts {
		return nil
	}

	attempt := job.Attempts + 1

	values, err := d.macroValues(ctx, job)
	if err != nil {
		// An unreadable conversion row would otherwise leave the job pending
		// and re-offered on every sweep; it consumes an attempt like any
		// other failure so the attempt cap bounds this path too.
		d.appendLog(ctx, &model.DeliveryLog{
			JobID:   job.ID,
			Attempt: attempt,
			Error:   fmt.Sprintf("resolve macro values: %v", err),
		})
		return d.retryOrFail(ctx, job, attempt)
	}

	rendered, unknown := RenderMacros(job.URL, values)
	if len(unknown) > 0 {
		d.logger.Warn("unknown macros left as literal text",
			zap.String("job_id", job.ID), zap.Strings("macros", unknown))
	}

	code, body, sendErr := d.sender.Send(ctx, job.Method, rendered)

	logEntry := &model.DeliveryLog{
		JobID:        job.ID,
		Attempt:      attempt,
		ResponseBody: body,
	}
	if sendErr != nil {
		logEntry.Error = sendErr.Error()
	} else {
		logEntry.ResponseCode = &code
	}
	d.appendLog(ctx, logEntry)

	if sendErr == nil && code >= 200 && code < 300 {
		infraprometheus.PostbackAttemptsTotal.WithLabelValues("sent").Inc()
		return d.jobs.MarkSent(ctx, job.ID, attempt)
	}

	return d.retryOrFail(ctx, job, attempt)
}

func (d *Dispatcher) appendLog(ctx context.Context, entry *model.DeliveryLog) {
	if err := d.jobs.AppendDeliveryLog(ctx, entry); err != nil {
		d.logger.Error("failed to append delivery log",
			zap.String("job_id", entry.JobID), zap.Error(err))
	}
}

// retryOrFail advances a failed attempt: pending with linear backoff below
// the cap, terminally failed at the cap.
func (d *Dispatcher) retryOrFail(ctx context.Context, job *model.PostbackJob, attempt int) error {
	if attempt >= job.MaxAttempts {
		infraprometheus.PostbackAttemptsTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("postback job exhausted its attempts",
			zap.String("job_id", job.ID), zap.Int("attempts", attempt))
		return d.jobs.MarkFailed(ctx, job.ID, attempt)
	}

	infraprometheus.PostbackAttemptsTotal.WithLabelValues("retry").Inc()
	next := time.Now().Add(retryBackoffStep * time.Duration(attempt))
	return d.jobs.ScheduleRetry(ctx, job.ID, attempt, next)
}

func (d *Dispatcher) macroValues(ctx context.Context, job *model.PostbackJob) (MacroValues, error) {
	conversion, err := d.conversions.GetByID(ctx, job.ConversionID)
	if err != nil {
		return MacroValues{}, err
	}

	values := MacroValues{
		ClickID:       conversion.ClickID,
		Payout:        conversion.Payout,
		Status:        conversion.Status,
		OfferID:       conversion.OfferID,
		ConversionID:  conversion.ID,
		TransactionID: conversion.TransactionID,
		AffiliateID:   conversion.AffiliateID,
		Currency:      conversion.Currency,
	}

	if click, err := d.clicks.GetByID(ctx, conversion.ClickID); err == nil {
		values.Sub1 = click.Sub1
		values.Sub2 = click.Sub2
		values.Sub3 = click.Sub3
		values.Sub4 = click.Sub4
		values.Sub5 = click.Sub5
	}

	return values, nil
}
