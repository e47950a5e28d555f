package scope

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupsRunInReverseOrder(t *testing.T) {
	c, _ := newTestContext(t)

	var order []string
	c.Push("scenario")
	c.AddNamedCleanup("first", func() error {
		order = append(order, "first")
		return nil
	})
	c.AddNamedCleanup("second", func() error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, c.Pop())
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestCleanupDedupesSameFunction(t *testing.T) {
	c, _ := newTestContext(t)

	calls := 0
	fn := func() error {
		calls++
		return nil
	}
	c.Push("scenario")
	c.AddCleanup(fn)
	c.AddCleanup(fn)

	require.NoError(t, c.Pop())
	assert.Equal(t, 1, calls, "registering the same function twice runs it once")
}

func TestCleanupBestEffortAndFirstFailure(t *testing.T) {
	c, _ := newTestContext(t)

	var order []string
	c.Push("scenario")
	c.AddNamedCleanup("a", func() error {
		order = append(order, "a")
		return errors.New("a failed")
	})
	c.AddNamedCleanup("b", func() error {
		order = append(order, "b")
		return errors.New("b failed")
	})
	c.AddNamedCleanup("c", func() error {
		order = append(order, "c")
		return nil
	})

	err := c.Pop()
	require.Error(t, err)

	// All cleanups ran despite the failures.
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Equal(t, 2, c.CleanupErrors())

	// The drain reports the first failure in execution order.
	var cleanupErr *CleanupError
	require.ErrorAs(t, err, &cleanupErr)
	assert.Equal(t, "b", cleanupErr.Name)
	assert.Contains(t, err.Error(), "b failed")

	// The layer was removed even though cleanups failed.
	assert.Equal(t, 1, c.Depth())
}

func TestCleanupFailuresIgnoredWhenPolicyOff(t *testing.T) {
	c, _ := newTestContext(t, func(cfg *Config) {
		cfg.FailOnCleanupErrors = false
	})

	c.Push("scenario")
	c.AddNamedCleanup("broken", func() error {
		return errors.New("broken")
	})

	require.NoError(t, c.Pop())
	assert.Equal(t, 1, c.CleanupErrors(), "failures are counted even when not propagated")
}

func TestCleanupPanicIsCaptured(t *testing.T) {
	var reported []string
	c, _ := newTestContext(t, func(cfg *Config) {
		cfg.OnCleanupError = func(_ *Context, name string, err error) {
			reported = append(reported, fmt.Sprintf("%s: %v", name, err))
		}
	})

	c.Push("scenario")
	c.AddNamedCleanup("panicky", func() error {
		panic("cleanup blew up")
	})

	err := c.Pop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup blew up")
	assert.Equal(t, 1, c.CleanupErrors())
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0], "panicky")
	assert.Equal(t, 1, c.Depth(), "layer removed after cleanup panic")
}

func TestCleanupErrorHandlerSeesEveryFailure(t *testing.T) {
	var names []string
	c, _ := newTestContext(t, func(cfg *Config) {
		cfg.OnCleanupError = func(_ *Context, name string, err error) {
			names = append(names, name)
		}
	})

	c.Push("scenario")
	c.AddNamedCleanup("one", func() error { return errors.New("x") })
	c.AddNamedCleanup("two", func() error { return errors.New("y") })

	require.Error(t, c.Pop())
	assert.Equal(t, []string{"two", "one"}, names)
}

func TestDrainCleanupsKeepsLayer(t *testing.T) {
	c, _ := newTestContext(t)

	ran := false
	c.AddCleanup(func() error {
		ran = true
		return nil
	})

	require.NoError(t, c.DrainCleanups())
	assert.True(t, ran)
	assert.Equal(t, 1, c.Depth(), "root layer is never removed by a drain")

	// A second drain finds nothing left to do.
	ran = false
	require.NoError(t, c.DrainCleanups())
	assert.False(t, ran)
}

func TestCleanupScopedToLayer(t *testing.T) {
	c, _ := newTestContext(t)

	var order []string
	c.AddNamedCleanup("root", func() error {
		order = append(order, "root")
		return nil
	})
	c.Push("feature")
	c.AddNamedCleanup("feature", func() error {
		order = append(order, "feature")
		return nil
	})

	require.NoError(t, c.Pop())
	assert.Equal(t, []string{"feature"}, order, "popping a layer must not touch outer cleanups")

	require.NoError(t, c.DrainCleanups())
	assert.Equal(t, []string{"feature", "root"}, order)
}

func TestAddNilCleanupPanics(t *testing.T) {
	c, _ := newTestContext(t)
	assert.Panics(t, func() { c.AddCleanup(nil) })
}
