package main

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/model"
)

var errDispatcherClosed = errors.New("dispatcher closed")

// dispatcher hands decoded click events from the broker to the worker pool.
type dispatcher struct {
	mu     sync.Mutex
	jobs   chan model.ClickEvent
	closed bool
	log    *zap.Logger
}

func newDispatcher(buffer int, log *zap.Logger) *dispatcher {
	return &dispatcher{
		jobs: make(chan model.ClickEvent, buffer),
		log:  log,
	}
}

// handle is the queue subscription callback. It blocks while the pool is busy,
// which holds the delivery unacked.
func (d *dispatcher) handle(payload any) error {
	ev, err := model.DecodeClickEvent(payload)
	if err != nil {
		d.log.Warn("dropping invalid click event", zap.Error(err))
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDispatcherClosed
	}
	d.jobs <- ev
	return nil
}

// close stops accepting events and lets the workers drain what is buffered.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.jobs)
}
