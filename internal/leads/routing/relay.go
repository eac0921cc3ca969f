package routing

import (
	"context"
	"errors"
	"time"

	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/ports"
)

// dispatchRelay starts the detached webhook relay. It returns false when no relayer is configured.
// The relay runs on a context detached from the request and bounded by RelayTimeout.
func (r *Router) dispatchRelay(lead domain.Lead) bool {
	if r.relayer == nil {
		return false
	}

	payload := ports.NewRelayPayload(lead)
	r.relays.Add(1)
	go func() {
		defer r.relays.Done()
		status, err := r.RelayOnce(context.Background(), payload)
		r.log.RelayOutcome(lead.ID.String(), string(status), err)
	}()
	return true
}

// RelayOnce performs one bounded relay attempt and records its outcome on the lead.
// Failed and timed-out attempts are handed to the retry queue when one is configured.
func (r *Router) RelayOnce(ctx context.Context, payload ports.RelayPayload) (domain.RelayStatus, error) {
	if r.relayer == nil {
		return domain.RelaySkipped, nil
	}

	relayCtx, cancel := context.WithTimeout(ctx, r.cfg.RelayTimeout)
	err := r.relayer.Relay(relayCtx, payload)
	cancel()

	status := relayStatus(err)
	r.metrics.ObserveRelay(string(status))

	recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelRecord()
	if recErr := r.store.UpdateRelayStatus(recordCtx, payload.LeadID, status); recErr != nil {
		r.log.Error("failed to record relay outcome", "error", recErr, "leadId", payload.LeadID)
	}

	if status != domain.RelaySent && r.retries != nil {
		if qErr := r.retries.EnqueueRelayRetry(recordCtx, payload.LeadID); qErr != nil {
			r.log.Error("failed to enqueue relay retry", "error", qErr, "leadId", payload.LeadID)
		}
	}
	return status, err
}

func relayStatus(err error) domain.RelayStatus {
	switch {
	case err == nil:
		return domain.RelaySent
	case errors.Is(err, context.DeadlineExceeded):
		return domain.RelayTimedOut
	default:
		return domain.RelayFailed
	}
}

// Wait blocks until all dispatched relays have finished.
func (r *Router) Wait() {
	r.relays.Wait()
}
