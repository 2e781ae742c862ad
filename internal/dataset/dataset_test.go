package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T, spec Spec, items []map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	f, err := os.Create(spec.SnapshotFile(dir))
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, item := range items {
		require.NoError(t, enc.Encode(item))
	}
	return dir
}

func gpqaItems(n int) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"Question":           fmt.Sprintf("question %d", i),
			"Correct Answer":     fmt.Sprintf("right %d", i),
			"Incorrect Answer 1": fmt.Sprintf("wrong %d-1", i),
			"Incorrect Answer 2": fmt.Sprintf("wrong %d-2", i),
			"Incorrect Answer 3": fmt.Sprintf("wrong %d-3", i),
		}
	}
	return items
}

var gpqaSpec = Spec{Name: "Idavidrein/gpqa", Subset: "gpqa_diamond", Split: "train"}

func TestSnapshotFile(t *testing.T) {
	assert.Equal(t,
		filepath.Join("d", "Idavidrein_gpqa__gpqa_diamond__train.jsonl"),
		gpqaSpec.SnapshotFile("d"))

	noSubset := Spec{Name: "TIGER-Lab/MMLU-Pro", Split: "test"}
	assert.Equal(t,
		filepath.Join("d", "TIGER-Lab_MMLU-Pro__test.jsonl"),
		noSubset.SnapshotFile("d"))
}

func TestSelectDeterminism(t *testing.T) {
	dir := writeSnapshot(t, gpqaSpec, gpqaItems(50))
	ds, err := Load(dir, gpqaSpec)
	require.NoError(t, err)
	require.Equal(t, 50, ds.Len())

	first, err := ds.Select(10, 4, 42, nil)
	require.NoError(t, err)
	second, err := ds.Select(10, 4, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := ds.Select(10, 4, 7, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestSelectShape(t *testing.T) {
	dir := writeSnapshot(t, gpqaSpec, gpqaItems(20))
	ds, err := Load(dir, gpqaSpec)
	require.NoError(t, err)

	questions, err := ds.Select(5, 4, 1, nil)
	require.NoError(t, err)
	require.Len(t, questions, 5)

	for _, q := range questions {
		assert.Len(t, q.Options, 4)
		require.GreaterOrEqual(t, q.CorrectIdx, 0)
		require.Less(t, q.CorrectIdx, 4)
		assert.Equal(t, fmt.Sprintf("right %d", q.OriginalIdx), q.Options[q.CorrectIdx])
		assert.Equal(t, fmt.Sprintf("question %d", q.OriginalIdx), q.Question)
	}
}

func TestSelectExplicitIndices(t *testing.T) {
	dir := writeSnapshot(t, gpqaSpec, gpqaItems(20))
	ds, err := Load(dir, gpqaSpec)
	require.NoError(t, err)

	questions, err := ds.Select(0, 2, 0, []int{7, 3, 11})
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, 7, questions[0].OriginalIdx)
	assert.Equal(t, 3, questions[1].OriginalIdx)
	assert.Equal(t, 11, questions[2].OriginalIdx)

	_, err = ds.Select(0, 2, 0, []int{99})
	assert.Error(t, err)
}

func TestOptionSamplingIndependentOfRunSeed(t *testing.T) {
	dir := writeSnapshot(t, gpqaSpec, gpqaItems(20))
	ds, err := Load(dir, gpqaSpec)
	require.NoError(t, err)

	// The same question must present identical options whether it arrives
	// via seeded sampling or an explicit index list.
	seeded, err := ds.Select(20, 4, 42, nil)
	require.NoError(t, err)

	var target int
	for _, q := range seeded {
		if q.OriginalIdx == 5 {
			target = 5
			explicit, err := ds.Select(0, 4, 0, []int{5})
			require.NoError(t, err)
			assert.Equal(t, q.Options, explicit[0].Options)
			assert.Equal(t, q.CorrectIdx, explicit[0].CorrectIdx)
		}
	}
	require.Equal(t, 5, target, "question 5 should be in a 20-of-20 draw")
}

func TestCountClamped(t *testing.T) {
	dir := writeSnapshot(t, gpqaSpec, gpqaItems(3))
	ds, err := Load(dir, gpqaSpec)
	require.NoError(t, err)

	questions, err := ds.Select(10, 4, 42, nil)
	require.NoError(t, err)
	assert.Len(t, questions, 3)
}

func TestMMLUPro(t *testing.T) {
	spec := Spec{Name: "TIGER-Lab/MMLU-Pro", Split: "test"}
	dir := writeSnapshot(t, spec, []map[string]any{
		{
			"question":     "pick the prime",
			"options":      []any{"4", "6", "7", "8", "9", "10"},
			"answer_index": float64(2),
		},
	})
	ds, err := Load(dir, spec)
	require.NoError(t, err)

	questions, err := ds.Select(0, 4, 0, []int{0})
	require.NoError(t, err)
	require.Len(t, questions, 1)
	q := questions[0]
	assert.Len(t, q.Options, 4)
	assert.Equal(t, "7", q.Options[q.CorrectIdx])
}

func TestUnsupportedDataset(t *testing.T) {
	spec := Spec{Name: "unknown/set", Split: "test"}
	dir := writeSnapshot(t, spec, []map[string]any{{"x": "y"}})
	ds, err := Load(dir, spec)
	require.NoError(t, err)

	_, err = ds.Select(0, 2, 0, []int{0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dataset")
}

func TestFewerChoicesThanRequested(t *testing.T) {
	spec := gpqaSpec
	dir := writeSnapshot(t, spec, []map[string]any{
		{
			"Question":           "small item",
			"Correct Answer":     "yes",
			"Incorrect Answer 1": "no",
		},
	})
	ds, err := Load(dir, spec)
	require.NoError(t, err)

	questions, err := ds.Select(0, 4, 0, []int{0})
	require.NoError(t, err)
	q := questions[0]
	assert.Len(t, q.Options, 2)
	assert.Equal(t, "yes", q.Options[q.CorrectIdx])
}

func TestFormatOptions(t *testing.T) {
	out := FormatOptions([]string{"alpha", "beta", "gamma"})
	assert.Equal(t, "0. alpha\n1. beta\n2. gamma", out)
}
