package service

import (
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/model"
)

// ClickHandler reacts to a recorded click
type ClickHandler interface {
	HandleClick(ev model.ClickEvent) error
}

// Worker processes click events from a channel
type Worker struct {
	Handler ClickHandler
	JobChan <-chan model.ClickEvent
	Log     *zap.Logger
}

// Constructor
func NewWorker(handler ClickHandler, jobChan <-chan model.ClickEvent, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Handler: handler,
		JobChan: jobChan,
		Log:     log,
	}
}

// Start processes jobs until JobChan is closed
func (w *Worker) Start() {
	for ev := range w.JobChan {
		if err := w.Handler.HandleClick(ev); err != nil {
			w.Log.Error("failed to handle click event",
				zap.Int64("click_id", ev.ClickID),
				zap.Int64("campaign_id", ev.CampaignID),
				zap.Error(err),
			)
		}
	}
}

var _ ClickHandler = (*BudgetService)(nil)
