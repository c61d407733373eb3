package service

import (
	"sparkclean/internal/domain"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

// broadcaster publishes row changes to realtime subscribers and domain events
// to the bus. Failures are logged; the write that caused them already happened.
type broadcaster struct {
	changes domain.ChangePublisher
	events  domain.EventPublisher
	logger  *zerolog.Logger
}

func (b broadcaster) change(table string, typ models.ChangeType, rec models.Record) {
	if b.changes == nil {
		return
	}
	ch, err := models.NewChange(table, typ, rec)
	if err != nil {
		b.logger.Error().Err(err).Str("table", table).Msg("build change")
		return
	}
	b.changes.Publish(ch)
}

func (b broadcaster) event(eventType string, payload interface{}) {
	if b.events == nil {
		return
	}
	if err := b.events.PublishJSON(eventType, payload); err != nil {
		b.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
