// Package cost reports run spend by polling the provider's account-usage
// side channel. Readings are advisory and racy across concurrent workers; a
// failed poll degrades to "unknown cost" and never affects control flow.
package cost

import (
	"context"

	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

// Tracker snapshots cumulative spend at run start and reports deltas.
type Tracker struct {
	client     openrouter.KeyInfoClient
	startUsage float64
	known      bool
}

// NewTracker captures the starting spend. A nil client, or a failed initial
// poll, yields a tracker that reports unknown cost for the whole run.
func NewTracker(ctx context.Context, client openrouter.KeyInfoClient) *Tracker {
	t := &Tracker{client: client}
	if client == nil {
		return t
	}

	info, err := client.KeyInfo(ctx)
	if err != nil {
		zap.L().Warn("could not fetch starting key usage", zap.Error(err))
		return t
	}
	t.startUsage = info.Data.Usage
	t.known = true
	return t
}

// SpentSince returns the spend delta since run start in USD. ok is false when
// the cost is unknown (no credentials, or a poll failed).
func (t *Tracker) SpentSince(ctx context.Context) (spent float64, ok bool) {
	total, ok := t.Total(ctx)
	if !ok || !t.known {
		return 0, false
	}
	return total - t.startUsage, true
}

// Total returns the cumulative account spend in USD.
func (t *Tracker) Total(ctx context.Context) (float64, bool) {
	if t.client == nil {
		return 0, false
	}
	info, err := t.client.KeyInfo(ctx)
	if err != nil {
		zap.L().Warn("could not fetch key usage", zap.Error(err))
		return 0, false
	}
	return info.Data.Usage, true
}
