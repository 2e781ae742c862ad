package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Item    int    `json:"item"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func readLines(t *testing.T, path string) []testRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []testRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r testRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunWritesEveryItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewLogWriter(path)
	require.NoError(t, err)
	defer w.Close()

	items := []int{0, 1, 2, 3, 4, 5, 6, 7}
	summary, err := Run(context.Background(), items, func(_ context.Context, item int) (any, error) {
		return testRecord{Item: item, Success: true}, nil
	}, Options[int]{Workers: 4, Writer: w})
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 8, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)

	records := readLines(t, path)
	require.Len(t, records, 8)
	got := make([]int, 0, len(records))
	for _, r := range records {
		assert.True(t, r.Success)
		got = append(got, r.Item)
	}
	sort.Ints(got)
	assert.Equal(t, items, got)
}

func TestRunFailureRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewLogWriter(path)
	require.NoError(t, err)
	defer w.Close()

	summary, err := Run(context.Background(), []int{1, 2, 3}, func(_ context.Context, item int) (any, error) {
		if item == 2 {
			return nil, assert.AnError
		}
		return testRecord{Item: item, Success: true}, nil
	}, Options[int]{
		Workers: 2,
		Writer:  w,
		OnFailure: func(item int, errMsg string) any {
			return testRecord{Item: item, Success: false, Error: errMsg}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Succeeded)

	records := readLines(t, path)
	require.Len(t, records, 3)
	var failures int
	for _, r := range records {
		if !r.Success {
			failures++
			assert.Equal(t, 2, r.Item)
			assert.Contains(t, r.Error, assert.AnError.Error())
		}
	}
	assert.Equal(t, 1, failures)
}

func TestRunPanicBecomesFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewLogWriter(path)
	require.NoError(t, err)
	defer w.Close()

	summary, err := Run(context.Background(), []int{1, 2}, func(_ context.Context, item int) (any, error) {
		if item == 1 {
			panic("boom")
		}
		return testRecord{Item: item, Success: true}, nil
	}, Options[int]{
		Workers: 2,
		Writer:  w,
		OnFailure: func(item int, errMsg string) any {
			return testRecord{Item: item, Success: false, Error: errMsg}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	records := readLines(t, path)
	require.Len(t, records, 2)
	for _, r := range records {
		if !r.Success {
			assert.Contains(t, r.Error, "panic: boom")
			// stack trace is captured alongside the message
			assert.Contains(t, r.Error, "goroutine")
		}
	}
}

func TestRunConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int64

	items := make([]int, 12)
	_, err := Run(context.Background(), items, func(_ context.Context, _ int) (any, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		inFlight.Add(-1)
		return nil, nil
	}, Options[int]{Workers: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestRunProgressPanicSwallowed(t *testing.T) {
	summary, err := Run(context.Background(), []int{1, 2, 3}, func(_ context.Context, item int) (any, error) {
		return nil, nil
	}, Options[int]{
		Workers:    1,
		OnProgress: func(done, total int) { panic("reporting broke") },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
}

func TestLogWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.jsonl")

	w, err := NewLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{Item: 1, Success: true}))
	require.NoError(t, w.Close())

	w, err = NewLogWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{Item: 2, Success: true}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}
