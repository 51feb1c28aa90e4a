package daemon

import (
	"context"
	"time"
)

const maintenanceInterval = 30 * time.Second

// EventLoop runs periodic maintenance while the daemon serves
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: maintenanceInterval,
	}
}

// Run runs the event loop until ctx is done
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Debug().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Debug().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks(ctx)
		}
	}
}

// processTasks disconnects idle WebSocket clients, refreshes the client
// gauge and logs load figures
func (e *EventLoop) processTasks(_ context.Context) {
	if maxIdle := e.daemon.config.Server.WebSocket.IdleTimeout; maxIdle > 0 {
		if closed := e.daemon.gateway.CloseIdleClients(maxIdle); closed > 0 {
			e.daemon.logger.Info().
				Int("closed", closed).
				Dur("idle_timeout", maxIdle).
				Msg("Closed idle WebSocket clients")
		}
	}

	clients := e.daemon.gateway.GetConnectedClients()
	if e.daemon.metrics != nil {
		e.daemon.metrics.SetWebSocketClients(len(clients))
	}

	idle := 0
	for _, c := range clients {
		if c.Idle {
			idle++
		}
	}

	e.daemon.logger.Debug().
		Int("in_flight", e.daemon.executor.InFlight()).
		Int("clients", len(clients)).
		Int("idle_clients", idle).
		Msg("Server stats")
}
