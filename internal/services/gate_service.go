package services

import (
	"context"
	"fmt"
	"time"

	"goride/internal/config"
	"goride/internal/repositories/interfaces"

	"github.com/sirupsen/logrus"
)

// GateCheck is the result of one check() call (§4.2).
type GateCheck struct {
	Allowed     bool
	ClientCount int64
	GlobalCount int64
	ClientMax   int
	GlobalMax   int
}

// WaitResult is what waitForSlot returns.
type WaitResult struct {
	Success  bool
	WaitTime time.Duration
}

// GateService is the Concurrency Gate (§4.2). It holds no shared mutable
// state of its own; every decision is a fresh read of the Active-Call
// Ledger, so a gate instance is safe to share across goroutines or
// reconstruct per process without coordination.
type GateService struct {
	activeCalls interfaces.ActiveCallRepository
	clients     interfaces.ClientRepository
	cfg         *config.GateConfig
	logger      *logrus.Logger
	alerts      *OpsAlertService
}

func NewGateService(activeCalls interfaces.ActiveCallRepository, clients interfaces.ClientRepository, cfg *config.GateConfig, logger *logrus.Logger) *GateService {
	return &GateService{
		activeCalls: activeCalls,
		clients:     clients,
		cfg:         cfg,
		logger:      logger,
	}
}

// WithOpsAlerts wires an on-call alerter in; nil (the zero value) keeps
// gate exhaustion silent, which is what every existing construction
// site and test expects.
func (g *GateService) WithOpsAlerts(alerts *OpsAlertService) *GateService {
	g.alerts = alerts
	return g
}

// Check implements §4.2 check(clientId).
func (g *GateService) Check(ctx context.Context, clientID string) (*GateCheck, error) {
	clientMax := g.cfg.DefaultClientMaxConcurrent
	client, err := g.clients.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("gate: failed to resolve client %s: %w", clientID, err)
	}
	if client != nil && client.MaxConcurrentCalls != nil {
		clientMax = *client.MaxConcurrentCalls
	}

	clientCount, err := g.activeCalls.CountActive(ctx, interfaces.CountFilter{ClientID: clientID})
	if err != nil {
		return nil, fmt.Errorf("gate: failed to count active calls for client %s: %w", clientID, err)
	}

	globalCount, err := g.activeCalls.CountActive(ctx, interfaces.CountFilter{})
	if err != nil {
		return nil, fmt.Errorf("gate: failed to count global active calls: %w", err)
	}

	globalMax := g.cfg.GlobalMaxConcurrentCalls

	return &GateCheck{
		Allowed:     clientCount < int64(clientMax) && globalCount < int64(globalMax),
		ClientCount: clientCount,
		GlobalCount: globalCount,
		ClientMax:   clientMax,
		GlobalMax:   globalMax,
	}, nil
}

// WaitForSlot implements §4.2 waitForSlot: poll every PollInterval up to
// MaxPollAttempts, returning as soon as a slot opens. Polling rather than
// a cross-process coordination primitive keeps contention handling
// simple at the cost of a bounded wait (~33 min at the defaults).
func (g *GateService) WaitForSlot(ctx context.Context, clientID string) (*WaitResult, error) {
	start := time.Now()

	var lastCheck *GateCheck
	for attempt := 0; attempt < g.cfg.MaxPollAttempts; attempt++ {
		check, err := g.Check(ctx, clientID)
		if err != nil {
			return nil, err
		}
		lastCheck = check
		if check.Allowed {
			return &WaitResult{Success: true, WaitTime: time.Since(start)}, nil
		}

		select {
		case <-ctx.Done():
			return &WaitResult{Success: false, WaitTime: time.Since(start)}, ctx.Err()
		case <-time.After(g.cfg.PollInterval):
		}
	}

	g.logger.WithFields(logrus.Fields{
		"clientId": clientID,
		"attempts": g.cfg.MaxPollAttempts,
	}).Warn("gate: exhausted poll attempts waiting for a free slot")

	if g.alerts != nil && lastCheck != nil && lastCheck.GlobalCount >= int64(lastCheck.GlobalMax) {
		g.alerts.NotifyGateExhausted(ctx, lastCheck.GlobalCount, int64(lastCheck.GlobalMax))
	}

	return &WaitResult{Success: false, WaitTime: time.Since(start)}, nil
}
