package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogWritesCategoryAndMessage(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Log("transport", "seek to %.2f", 1.5)

	out := buf.String()
	assert.Contains(t, out, "category=transport")
	assert.Contains(t, out, "seek to 1.50")
}

func TestDisableDiscards(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	Disable()

	Log("transport", "dropped")

	assert.Empty(t, buf.String())
}

func TestLogEveryThrottles(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	for i := 0; i < 10; i++ {
		LogEvery(5, "loop-test", "iteration")
	}

	assert.Equal(t, 2, strings.Count(buf.String(), "iteration (every 5"))
}

func TestCategoryEntryCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Category("sink").WithField("pitch", 60).Warn("rejected")

	out := buf.String()
	assert.Contains(t, out, "category=sink")
	assert.Contains(t, out, "pitch=60")
	assert.Contains(t, out, "level=warning")
}
