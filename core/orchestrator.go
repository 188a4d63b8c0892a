package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// HandleWebhook runs the synchronous ingestion path: verify the delivery,
// claim the event id, invoke the processor, and record the outcome.
//
// Verification failure is fatal and never touches the ledger. A lost claim
// means another worker owns the event; the duplicate is dropped silently.
// Processing failures are recorded, classified, scheduled for redelivery
// when transient, and always returned to the caller.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"origin": "inbound"}
	defer func() {
		s.observeOperation(ctx, startedAt, "handle_webhook", err, fields)
	}()

	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if len(payload) == 0 {
		err = s.mapError(ErrEventPayloadRequired)
		return err
	}
	if s.verifier == nil {
		err = s.dependencyError("verifier")
		return err
	}
	if s.processor == nil {
		err = s.dependencyError("processor")
		return err
	}
	if s.ledger == nil {
		err = s.dependencyError("ledger")
		return err
	}

	event, verifyErr := s.verifier.Verify(ctx, payload, signature)
	if verifyErr != nil {
		err = s.verificationError(verifyErr)
		return err
	}
	if len(event.Payload) == 0 {
		event.Payload = payload
	}
	if validateErr := event.Validate(); validateErr != nil {
		err = s.mapError(validateErr)
		return err
	}
	fields["event_id"] = event.ID
	fields["event_type"] = event.Type

	claimed, claimErr := s.ledger.TryClaim(ctx, event.ID, event.Type)
	if claimErr != nil {
		err = s.storeError(claimErr)
		return err
	}
	if !claimed {
		fields["duplicate"] = true
		s.logDebug(ctx, "duplicate webhook delivery dropped", map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
			"text_code":  EngineErrorDuplicateEvent,
		})
		return nil
	}

	procErr := s.processor.Process(ctx, event)
	if procErr == nil {
		if markErr := s.ledger.MarkSuccessful(ctx, event.ID); markErr != nil {
			err = s.storeError(markErr)
			return err
		}
		return nil
	}

	if markErr := s.ledger.MarkFailed(ctx, event.ID, procErr.Error()); markErr != nil {
		s.logError(ctx, "failed to record processing failure", map[string]any{
			"event_id": event.ID,
			"error":    markErr.Error(),
		})
	}

	if s.classifier != nil && s.scheduler != nil && s.classifier.IsRetryable(procErr) {
		record, scheduleErr := s.scheduler.ScheduleRetry(ctx, ScheduleRetryInput{
			EventID:       event.ID,
			EventType:     event.Type,
			Payload:       event.Payload,
			Signature:     signature,
			ErrorMessage:  procErr.Error(),
			AttemptNumber: 1,
		})
		if scheduleErr != nil {
			err = s.mapError(joinErrors(procErr, scheduleErr))
			return err
		}
		fields["retry_scheduled"] = true
		fields["next_retry_at"] = record.NextRetryAt
	}

	err = s.processingError(procErr)
	return err
}

// SweepDueRetries drains one batch of due retry records through the
// redelivery path. A failing record never stops the batch; its error is
// logged and counted while the sweep carries on. Only the batch fetch itself
// can fail the call.
func (s *Service) SweepDueRetries(ctx context.Context) (stats SweepStats, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"origin": "sweeper"}
	defer func() {
		fields["fetched"] = stats.Fetched
		fields["succeeded"] = stats.Succeeded
		fields["rescheduled"] = stats.Rescheduled
		fields["abandoned"] = stats.Abandoned
		fields["failed"] = stats.Failed
		s.observeOperation(ctx, startedAt, "sweep_due_retries", err, fields)
	}()

	if s == nil || s.scheduler == nil {
		return SweepStats{}, fmt.Errorf("core: retry scheduler is not configured")
	}
	if s.processor == nil {
		err = s.dependencyError("processor")
		return SweepStats{}, err
	}
	if s.ledger == nil {
		err = s.dependencyError("ledger")
		return SweepStats{}, err
	}

	records, fetchErr := s.scheduler.GetPendingRetries(ctx)
	if fetchErr != nil {
		err = s.storeError(fetchErr)
		return SweepStats{}, err
	}

	stats.Fetched = len(records)
	for _, record := range records {
		outcome, retryErr := s.sweepOne(ctx, record)
		switch outcome {
		case RetryOutcomeSucceeded:
			stats.Succeeded++
		case RetryOutcomeRescheduled:
			stats.Rescheduled++
		case RetryOutcomeAbandoned:
			stats.Abandoned++
		default:
			stats.Failed++
			if retryErr != nil {
				s.logError(ctx, "retry delivery aborted", map[string]any{
					"event_id": record.EventID,
					"attempt":  record.AttemptNumber,
					"error":    retryErr.Error(),
				})
			}
		}
	}
	return stats, nil
}

// sweepOne shields the sweep loop from panicking processors.
func (s *Service) sweepOne(ctx context.Context, record RetryRecord) (outcome RetryOutcome, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = ""
			err = fmt.Errorf("core: retry delivery panicked for event %q: %v", record.EventID, recovered)
		}
	}()
	return s.retryDelivery(ctx, record)
}

// retryDelivery re-runs processing for a claimed event using the stored
// payload. The ledger row already exists, so the claim step is skipped; the
// outcome updates both the ledger and the retry row.
func (s *Service) retryDelivery(ctx context.Context, record RetryRecord) (outcome RetryOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"origin":     "sweeper",
		"event_id":   record.EventID,
		"event_type": record.EventType,
		"attempt":    record.AttemptNumber,
	}
	defer func() {
		if outcome != "" {
			fields["outcome"] = string(outcome)
		}
		s.observeOperation(ctx, startedAt, "retry_delivery", err, fields)
	}()

	event := record.Event()
	if validateErr := event.Validate(); validateErr != nil {
		err = s.mapError(validateErr)
		return "", err
	}

	procErr := s.processor.Process(ctx, event)
	if procErr == nil {
		if markErr := s.ledger.MarkSuccessful(ctx, event.ID); markErr != nil {
			err = s.storeError(markErr)
			return "", err
		}
		if resolveErr := s.scheduler.MarkSucceeded(ctx, event.ID); resolveErr != nil {
			err = s.storeError(resolveErr)
			return "", err
		}
		return RetryOutcomeSucceeded, nil
	}

	if markErr := s.ledger.MarkFailed(ctx, event.ID, procErr.Error()); markErr != nil {
		s.logError(ctx, "failed to record processing failure", map[string]any{
			"event_id": event.ID,
			"error":    markErr.Error(),
		})
	}

	maxRetries := record.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.scheduler.MaxRetries()
	}
	retryable := s.classifier != nil && s.classifier.IsRetryable(procErr)

	if retryable && record.AttemptNumber < maxRetries {
		next, scheduleErr := s.scheduler.ScheduleRetry(ctx, ScheduleRetryInput{
			EventID:       record.EventID,
			EventType:     record.EventType,
			Payload:       record.Payload,
			Signature:     record.Signature,
			ErrorMessage:  procErr.Error(),
			AttemptNumber: record.AttemptNumber + 1,
		})
		if scheduleErr != nil {
			err = s.mapError(joinErrors(procErr, scheduleErr))
			return "", err
		}
		fields["next_retry_at"] = next.NextRetryAt
		err = s.processingError(procErr)
		return RetryOutcomeRescheduled, err
	}

	reason := procErr.Error()
	if retryable {
		reason = fmt.Sprintf("retry budget exhausted after attempt %d: %s", record.AttemptNumber, reason)
		fields["text_code"] = EngineErrorRetryExhausted
	}
	if abandonErr := s.scheduler.Abandon(ctx, record.EventID, reason); abandonErr != nil {
		err = s.mapError(joinErrors(procErr, abandonErr))
		return "", err
	}
	err = s.processingError(procErr)
	return RetryOutcomeAbandoned, err
}

// AbandonRetry terminally fails the retry row for an event id. Missing rows
// are a no-op, matching the store contract.
func (s *Service) AbandonRetry(ctx context.Context, eventID string, reason string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"event_id": eventID}
	defer func() {
		s.observeOperation(ctx, startedAt, "abandon_retry", err, fields)
	}()

	if s == nil || s.scheduler == nil {
		return fmt.Errorf("core: retry scheduler is not configured")
	}
	if strings.TrimSpace(eventID) == "" {
		err = s.mapError(ErrEventIDRequired)
		return err
	}
	if abandonErr := s.scheduler.Abandon(ctx, eventID, reason); abandonErr != nil {
		err = s.storeError(abandonErr)
		return err
	}
	return nil
}

func (s *Service) dependencyError(name string) error {
	wrapped := s.errorFactory(
		fmt.Sprintf("webhook %s is not configured", name),
		goerrors.CategoryOperation,
	).WithTextCode(EngineErrorDependencyMissing)
	return ensureEngineErrorEnvelope(wrapped)
}

func (s *Service) verificationError(source error) error {
	wrapped := goerrors.Wrap(source, goerrors.CategoryAuth, "webhook signature verification failed").
		WithTextCode(EngineErrorVerificationFailed)
	return ensureEngineErrorEnvelope(wrapped)
}

func (s *Service) storeError(source error) error {
	wrapped := goerrors.Wrap(source, goerrors.CategoryOperation, "webhook state store operation failed").
		WithTextCode(EngineErrorStoreFailure)
	return ensureEngineErrorEnvelope(wrapped)
}

// processingError keeps an existing envelope intact so callers can classify
// the failure themselves; bare errors get the generic processing envelope.
func (s *Service) processingError(source error) error {
	if source == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(source, &richErr) {
		return ensureEngineErrorEnvelope(richErr)
	}
	wrapped := goerrors.Wrap(source, goerrors.CategoryOperation, "webhook processing failed").
		WithTextCode(EngineErrorProcessingFailed)
	return ensureEngineErrorEnvelope(wrapped)
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
