package service

import (
	"context"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/avvvet/pickup-services/internal/apisvc/payment"
	log "github.com/sirupsen/logrus"
)

// Archiver keeps raw webhook payloads outside the hot path, typically in a
// TTL-indexed collection. Best effort only.
type Archiver interface {
	Archive(ctx context.Context, provider, eventID string, payload []byte) error
}

// SetArchiver attaches an optional raw-payload archive.
func (s *GameService) SetArchiver(a Archiver) {
	s.archive = a
}

// HandleWebhook is the boundary step between a verified, parsed provider
// callback and the engine. It records the event id first; a duplicate
// delivery answers success without reprocessing, so provider retries never
// double-seat a player.
func (s *GameService) HandleWebhook(ctx context.Context, provider string, rawBody []byte, evt *payment.WebhookEvent) (bool, error) {
	created, err := s.store.RecordPaymentEvent(ctx, &models.PaymentEvent{
		EventID:   evt.EventID,
		Provider:  provider,
		EventType: evt.EventType,
		Payload:   rawBody,
	})
	if err != nil {
		return false, err
	}
	if !created {
		return true, nil
	}

	if s.archive != nil {
		if err := s.archive.Archive(ctx, provider, evt.EventID, rawBody); err != nil {
			log.Warnf("archive webhook %s: %v", evt.EventID, err)
		}
	}

	return false, s.ConfirmPayment(ctx, evt)
}
