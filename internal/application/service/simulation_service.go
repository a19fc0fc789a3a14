package service

import (
	"context"
	"sync/atomic"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/domain/event"
)

// Availability reports whether the issuing backend is simulated as down
type Availability interface {
	Outage() bool
}

// SimulationService toggles the simulated issuing outage used to exercise
// offline queue failure paths
type SimulationService interface {
	Availability
	SetOutage(ctx context.Context, enabled bool, actor string)
}

type simulationServiceImpl struct {
	outage     atomic.Bool
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewSimulationService creates a SimulationService starting in the given state
func NewSimulationService(initialOutage bool, d dispatcher.Dispatcher, logger Logger) SimulationService {
	s := &simulationServiceImpl{dispatcher: d, logger: logger}
	s.outage.Store(initialOutage)
	return s
}

func (s *simulationServiceImpl) Outage() bool {
	return s.outage.Load()
}

func (s *simulationServiceImpl) SetOutage(ctx context.Context, enabled bool, actor string) {
	if s.outage.Swap(enabled) == enabled {
		return
	}
	s.logger.Info("Simulated outage toggled", "enabled", enabled, "actor", actor)
	if s.dispatcher != nil {
		_ = s.dispatcher.Dispatch(ctx, event.NewEvent(event.TypeOutageToggled, "outage", actor, map[string]interface{}{
			"enabled": enabled,
		}))
	}
}
