package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func TestModelManager_SaveAndLoadActive(t *testing.T) {
	dir := t.TempDir()
	mm, err := NewModelManager(dir)
	require.NoError(t, err)
	mm.now = fixedClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	c, err := New(seededConfig(1), nil)
	require.NoError(t, err)
	_, _ = c.Update(constantFeatures(0.5), 1)

	v, err := mm.Save(c, ModelMetrics{Samples: 1})
	require.NoError(t, err)
	assert.True(t, v.IsActive)
	assert.Equal(t, 1, v.Metrics.TrainingSteps)

	// A fresh manager reads the index from disk
	reopened, err := NewModelManager(dir)
	require.NoError(t, err)
	require.NotNil(t, reopened.GetCurrentVersion())
	assert.Equal(t, v.Version, reopened.GetCurrentVersion().Version)

	other, err := New(seededConfig(2), nil)
	require.NoError(t, err)
	ok, err := reopened.LoadActive(other)
	require.NoError(t, err)
	assert.True(t, ok)

	x := constantFeatures(0.5)
	p1, _ := c.Predict(x)
	p2, _ := other.Predict(x)
	assert.Equal(t, p1, p2)
}

func TestModelManager_LoadActiveWithoutVersions(t *testing.T) {
	mm, err := NewModelManager(t.TempDir())
	require.NoError(t, err)

	c, err := New(seededConfig(1), nil)
	require.NoError(t, err)

	ok, err := mm.LoadActive(c)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModelManager_Rollback(t *testing.T) {
	mm, err := NewModelManager(t.TempDir())
	require.NoError(t, err)
	mm.now = fixedClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.Error(t, mm.Rollback())

	c, err := New(seededConfig(1), nil)
	require.NoError(t, err)

	first, err := mm.Save(c, ModelMetrics{})
	require.NoError(t, err)
	second, err := mm.Save(c, ModelMetrics{})
	require.NoError(t, err)

	versions := mm.ListVersions()
	require.Len(t, versions, 2)
	assert.Equal(t, second.Version, versions[0].Version, "newest first")

	require.NoError(t, mm.Rollback())
	assert.Equal(t, first.Version, mm.GetCurrentVersion().Version)

	assert.Error(t, mm.Rollback(), "no version older than the first")
	assert.Error(t, mm.ActivateVersion("missing"))
}
