package queue

import (
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/model"
)

// StartClickSubscriber decodes click_recorded payloads and hands them to handle.
// Undecodable payloads are dropped; handler errors trigger the queue's retry.
func StartClickSubscriber(q Queue, handle func(ev model.ClickEvent) error, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	return q.Subscribe(model.TopicClickRecorded, func(payload any) error {
		ev, err := model.DecodeClickEvent(payload)
		if err != nil {
			log.Warn("dropping invalid click event", zap.Error(err))
			return nil
		}
		return handle(ev)
	})
}
