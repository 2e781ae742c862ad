package cost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

type fakeKeyInfo struct {
	usage float64
	err   error
}

func (f *fakeKeyInfo) ChatCompletion(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeKeyInfo) KeyInfo(ctx context.Context) (*openrouter.KeyInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := &openrouter.KeyInfo{}
	info.Data.Usage = f.usage
	return info, nil
}

func TestTrackerDelta(t *testing.T) {
	client := &fakeKeyInfo{usage: 10.0}
	tracker := NewTracker(context.Background(), client)

	client.usage = 10.75
	spent, ok := tracker.SpentSince(context.Background())
	assert.True(t, ok)
	assert.InDelta(t, 0.75, spent, 0.0001)

	total, ok := tracker.Total(context.Background())
	assert.True(t, ok)
	assert.InDelta(t, 10.75, total, 0.0001)
}

func TestTrackerNilClient(t *testing.T) {
	tracker := NewTracker(context.Background(), nil)
	_, ok := tracker.SpentSince(context.Background())
	assert.False(t, ok)
	_, ok = tracker.Total(context.Background())
	assert.False(t, ok)
}

func TestTrackerPollFailureDegrades(t *testing.T) {
	client := &fakeKeyInfo{usage: 5.0}
	tracker := NewTracker(context.Background(), client)

	client.err = errors.New("network down")
	_, ok := tracker.SpentSince(context.Background())
	assert.False(t, ok)
}

func TestTrackerFailedStartStaysUnknown(t *testing.T) {
	client := &fakeKeyInfo{err: errors.New("boom")}
	tracker := NewTracker(context.Background(), client)

	client.err = nil
	client.usage = 3.0
	// The delta is meaningless without a start snapshot.
	_, ok := tracker.SpentSince(context.Background())
	assert.False(t, ok)
	// But the raw total still works.
	total, ok := tracker.Total(context.Background())
	assert.True(t, ok)
	assert.InDelta(t, 3.0, total, 0.0001)
}
