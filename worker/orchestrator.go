// Package worker drives queued vendor commands through credential
// resolution, ERP execution, mapping persistence and outcome emission.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vendor-bridge/domain"
	"vendor-bridge/erp"
	"vendor-bridge/identity"
	"vendor-bridge/storage"
)

// Queue is the command queue surface the orchestrator needs.
type Queue interface {
	Dequeue(ctx context.Context, visibility time.Duration) (*storage.Message, error)
	Renew(ctx context.Context, msg *storage.Message, visibility time.Duration) error
	Release(ctx context.Context, msg *storage.Message, delay time.Duration) error
	Ack(ctx context.Context, msg *storage.Message) error
	MoveToPoison(ctx context.Context, msg *storage.Message) error
}

// Mappings persists the user-to-ERP-record association.
type Mappings interface {
	Upsert(ctx context.Context, userID, externalRecordID string) error
}

// OutcomeCache remembers terminal outcomes long enough to cover the
// queue's duplicate-detection window.
type OutcomeCache interface {
	Get(ctx context.Context, correlationID string) (*domain.StatusEvent, error)
	Put(ctx context.Context, ev domain.StatusEvent) error
}

// EventSink publishes terminal status events.
type EventSink interface {
	Publish(ctx context.Context, ev domain.StatusEvent) error
}

// Resolver selects the credential a command executes under.
type Resolver interface {
	Resolve(ctx context.Context, uc domain.UserContext) (identity.Credential, error)
	System() identity.Credential
}

// Config carries the orchestrator's tuning. Passed in explicitly at
// construction; the orchestrator holds no process-wide state.
type Config struct {
	MaxDeliveryAttempts int64
	LockTimeout         time.Duration
	LockRenewInterval   time.Duration
	CallTimeout         time.Duration
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	Fallback            identity.FallbackPolicy
}

// Orchestrator consumes command deliveries and owns every logical state
// transition of a command. The queue only owns physical redelivery
// bookkeeping.
type Orchestrator struct {
	queue    Queue
	resolver Resolver
	erp      erp.Client
	mappings Mappings
	outcomes OutcomeCache
	sink     EventSink
	cfg      Config
	now      func() int64
}

func New(queue Queue, resolver Resolver, client erp.Client, mappings Mappings, outcomes OutcomeCache, sink EventSink, cfg Config) *Orchestrator {
	return &Orchestrator{
		queue:    queue,
		resolver: resolver,
		erp:      client,
		mappings: mappings,
		outcomes: outcomes,
		sink:     sink,
		cfg:      cfg,
		now:      func() int64 { return time.Now().UnixNano() },
	}
}

// Run pulls deliveries until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := o.queue.Dequeue(ctx, o.cfg.LockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("dequeue command")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		o.Process(ctx, msg)
	}
}

// Process runs one delivery of one command to a decision: acknowledged,
// released for redelivery, or moved to the poison queue.
func (o *Orchestrator) Process(ctx context.Context, msg *storage.Message) {
	var cmd domain.Command
	if err := json.Unmarshal([]byte(msg.Text), &cmd); err != nil {
		log.WithError(err).WithField("messageId", msg.ID).Error("malformed command body, moving to poison queue")
		if perr := o.queue.MoveToPoison(ctx, msg); perr != nil {
			log.WithError(perr).WithField("messageId", msg.ID).Error("poison move failed")
		}
		return
	}
	cmd.DeliveryAttempt = msg.DequeueCount

	m, ctx := newCommandMetrics(ctx, cmd)
	defer m.Log()

	// Redelivery after Done: re-emit the recorded outcome instead of
	// re-invoking the ERP backend. Checked before exhaustion so a late
	// duplicate of a finished command never turns into a contradictory
	// dead-letter failure.
	if cached, err := o.outcomes.Get(ctx, cmd.CorrelationID); err != nil {
		log.WithError(err).WithField("correlationId", cmd.CorrelationID).Warn("outcome cache lookup failed")
	} else if cached != nil {
		m.SetStage(stageReplay)
		o.finish(ctx, msg, *cached, m, false)
		return
	}

	// Redelivery exhaustion observed before any execution; short-circuit
	// so a clearly dead command never reaches the ERP backend again.
	if o.cfg.MaxDeliveryAttempts > 0 && msg.DequeueCount > o.cfg.MaxDeliveryAttempts {
		m.SetStage(stageDeadLetter)
		o.deadLetter(ctx, msg, cmd, m)
		return
	}

	m.SetStage(stageAuthenticating)
	cred, warnings, err := o.authenticate(ctx, cmd)
	if err != nil {
		// explicit policy: fail without ever calling the ERP backend
		ev := o.failureEvent(cmd, []string{err.Error()}, nil)
		o.finish(ctx, msg, ev, m, true)
		return
	}

	m.SetStage(stageExecuting)
	res, err := o.execute(ctx, msg, cred, cmd)
	if err != nil {
		if !erp.IsTransient(err) {
			log.WithError(err).WithField("correlationId", cmd.CorrelationID).Error("unclassified execution failure, treating as transient")
		}
		o.release(ctx, msg, cmd, err)
		return
	}

	if !res.Success {
		ev := o.failureEvent(cmd, res.Errors, warnings)
		o.finish(ctx, msg, ev, m, true)
		return
	}

	if cmd.UserContext.Role == domain.RoleVendor && cmd.Operation == domain.OperationCreate {
		if err := o.mappings.Upsert(ctx, cmd.UserContext.UserID, res.ExternalRecordID); err != nil {
			// outcome not recorded yet; redelivery re-runs the call and
			// the upsert stays idempotent on the user key
			o.release(ctx, msg, cmd, err)
			return
		}
	}

	ev := domain.StatusEvent{
		CorrelationID:    cmd.CorrelationID,
		UserID:           cmd.UserContext.UserID,
		Status:           domain.StatusSuccess,
		ExternalRecordID: res.ExternalRecordID,
		Warnings:         warnings,
		EmittedAt:        o.now(),
	}
	o.finish(ctx, msg, ev, m, true)
}

func (o *Orchestrator) authenticate(ctx context.Context, cmd domain.Command) (identity.Credential, []string, error) {
	cred, err := o.resolver.Resolve(ctx, cmd.UserContext)
	if err == nil {
		return cred, nil, nil
	}
	var resErr *identity.CredentialResolutionError
	if errors.As(err, &resErr) && cmd.UserContext.Role == domain.RoleApprover && o.cfg.Fallback == identity.FallbackSystem {
		log.WithFields(log.Fields{"correlationId": cmd.CorrelationID, "user": cmd.UserContext.UserID}).
			Warn("approver credential unavailable, degrading to system credential")
		return o.resolver.System(), []string{"individual credential unavailable; executed under system identity"}, nil
	}
	return identity.Credential{}, nil, err
}

func (o *Orchestrator) execute(ctx context.Context, msg *storage.Message, cred identity.Credential, cmd domain.Command) (domain.BapiResult, error) {
	// the renewal goroutine rotates msg.Receipt; it must be joined before
	// the receipt is read again for ack, release or poison
	renewCtx, stopRenew := context.WithCancel(ctx)
	var renewDone sync.WaitGroup
	if o.cfg.LockRenewInterval > 0 {
		renewDone.Add(1)
		go func() {
			defer renewDone.Done()
			o.renewLock(renewCtx, msg)
		}()
	}

	callCtx := ctx
	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}
	res, err := o.erp.Execute(callCtx, cred, cmd.Operation, cmd.Payload)
	stopRenew()
	renewDone.Wait()
	return res, err
}

func (o *Orchestrator) renewLock(ctx context.Context, msg *storage.Message) {
	t := time.NewTicker(o.cfg.LockRenewInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := o.queue.Renew(ctx, msg, o.cfg.LockTimeout); err != nil && ctx.Err() == nil {
				log.WithError(err).WithField("messageId", msg.ID).Warn("lock renewal failed")
			}
		}
	}
}

// release signals failure back to the queue with an exponential backoff so
// redelivery counting advances. Transient failures stay invisible to the
// user until retries are exhausted.
func (o *Orchestrator) release(ctx context.Context, msg *storage.Message, cmd domain.Command, cause error) {
	delay := o.backoff(msg.DequeueCount)
	log.WithError(cause).WithFields(log.Fields{
		"correlationId": cmd.CorrelationID,
		"attempt":       msg.DequeueCount,
		"delay":         delay.String(),
	}).Warn("transient failure, releasing for redelivery")
	if err := o.queue.Release(ctx, msg, delay); err != nil {
		// lock expiry will make the message visible again anyway
		log.WithError(err).WithField("messageId", msg.ID).Error("release failed")
	}
}

func (o *Orchestrator) backoff(attempt int64) time.Duration {
	d := o.cfg.RetryBaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := int64(1); i < attempt; i++ {
		d *= 2
		if o.cfg.RetryMaxDelay > 0 && d >= o.cfg.RetryMaxDelay {
			return o.cfg.RetryMaxDelay
		}
	}
	return d
}

func (o *Orchestrator) deadLetter(ctx context.Context, msg *storage.Message, cmd domain.Command, m *commandMetrics) {
	// terminal outcomes are recorded once; a command that already finished
	// replays its result even when the earlier cache lookup failed
	if cached, err := o.outcomes.Get(ctx, cmd.CorrelationID); err == nil && cached != nil {
		m.SetStage(stageReplay)
		o.finish(ctx, msg, *cached, m, false)
		return
	}
	ev := o.failureEvent(cmd, []string{domain.DeadLetterError}, nil)
	if err := o.outcomes.Put(ctx, ev); err != nil {
		log.WithError(err).WithField("correlationId", cmd.CorrelationID).Warn("outcome cache write failed")
	}
	if err := o.sink.Publish(ctx, ev); err != nil {
		m.SetError(err)
		log.WithError(err).WithField("correlationId", cmd.CorrelationID).Error("dead-letter event publish failed, leaving delivery locked")
		return
	}
	if err := o.queue.MoveToPoison(ctx, msg); err != nil {
		m.SetError(err)
		log.WithError(err).WithField("correlationId", cmd.CorrelationID).Error("poison move failed")
		return
	}
	m.SetOutcome(domain.StatusFailure)
}

// finish records the outcome, publishes the status event and acknowledges
// the delivery, in that order. The cache write comes first so that any
// crash between publish and ack replays as a cheap re-emission instead of
// a second ERP execution.
func (o *Orchestrator) finish(ctx context.Context, msg *storage.Message, ev domain.StatusEvent, m *commandMetrics, cache bool) {
	m.SetStage(stageEmitting)
	if cache {
		if err := o.outcomes.Put(ctx, ev); err != nil {
			log.WithError(err).WithField("correlationId", ev.CorrelationID).Warn("outcome cache write failed")
		}
	}
	if err := o.sink.Publish(ctx, ev); err != nil {
		m.SetError(err)
		log.WithError(err).WithField("correlationId", ev.CorrelationID).Error("status event publish failed, leaving delivery for redelivery")
		return
	}
	if err := o.queue.Ack(ctx, msg); err != nil {
		m.SetError(err)
		log.WithError(err).WithField("correlationId", ev.CorrelationID).Error("ack failed, outcome cache will absorb the redelivery")
		return
	}
	m.SetOutcome(ev.Status)
}

func (o *Orchestrator) failureEvent(cmd domain.Command, errs, warnings []string) domain.StatusEvent {
	return domain.StatusEvent{
		CorrelationID: cmd.CorrelationID,
		UserID:        cmd.UserContext.UserID,
		Status:        domain.StatusFailure,
		Errors:        errs,
		Warnings:      warnings,
		EmittedAt:     o.now(),
	}
}
