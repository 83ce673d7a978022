package app

import (
	"sync/atomic"
	"time"

	"github.com/zeusync/battlefield/internal/core/events/bus"
	"github.com/zeusync/battlefield/internal/core/observability/log"
)

const defaultSlowDelivery = 2 * time.Millisecond

var _ bus.EventBusObserver = (*DeliveryLog)(nil)

// DeliveryLog watches the event bus and warns about deliveries that failed
// or took longer than Slow.
type DeliveryLog struct {
	Slow time.Duration

	slow   atomic.Uint64
	failed atomic.Uint64
	logger log.Log
}

func NewDeliveryLog(logger log.Log) *DeliveryLog {
	return &DeliveryLog{
		Slow:   defaultSlowDelivery,
		logger: logger.With(log.String("component", "bus")),
	}
}

func (d *DeliveryLog) OnPublish(string, bus.Event) {}

func (d *DeliveryLog) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("Event handler failed",
			log.String("type", eventType),
			log.Int("handlers", handlers),
			log.Error(err),
		)
	}
	took := time.Duration(durationMicros) * time.Microsecond
	if took > d.Slow {
		d.slow.Add(1)
		d.logger.Warn("Slow event delivery",
			log.String("type", eventType),
			log.Int("handlers", handlers),
			log.Duration("took", took),
		)
	}
}

func (d *DeliveryLog) SlowDeliveries() uint64 { return d.slow.Load() }

func (d *DeliveryLog) FailedDeliveries() uint64 { return d.failed.Load() }
