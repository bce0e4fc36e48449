package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResolutionOrder(t *testing.T) {
	dir := t.TempDir()
	promptFile := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(promptFile, []byte("file catalog"), 0o644))

	t.Run("explicit text wins", func(t *testing.T) {
		t.Setenv(EnvSystemPrompt, "env catalog")
		c, err := Load("inline catalog", promptFile)
		require.NoError(t, err)
		assert.Equal(t, "inline catalog", c.Text())
	})

	t.Run("file beats env", func(t *testing.T) {
		t.Setenv(EnvSystemPrompt, "env catalog")
		c, err := Load("", promptFile)
		require.NoError(t, err)
		assert.Equal(t, "file catalog", c.Text())
	})

	t.Run("env beats default", func(t *testing.T) {
		t.Setenv(EnvSystemPrompt, "env catalog")
		c, err := Load("", "")
		require.NoError(t, err)
		assert.Equal(t, "env catalog", c.Text())
	})

	t.Run("built-in default", func(t *testing.T) {
		t.Setenv(EnvSystemPrompt, "")
		c, err := Load("", "")
		require.NoError(t, err)
		assert.Equal(t, DefaultLayerInfo, c.Text())
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load("", filepath.Join(dir, "absent.md"))
		assert.Error(t, err)
	})
}

func TestPromptTextAppendsInstructions(t *testing.T) {
	c, err := Load("custom catalog\n\n", "")
	require.NoError(t, err)

	text := c.PromptText()
	assert.Contains(t, text, "custom catalog")
	assert.Contains(t, text, CoreInstructions)
	assert.NotContains(t, text, "\n\n\n", "trailing newlines are collapsed")
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	promptFile := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(promptFile, []byte("first"), 0o644))

	c, err := Load("", promptFile)
	require.NoError(t, err)
	require.Equal(t, "first", c.Text())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(promptFile, []byte("second"), 0o644))

	require.Eventually(t, func() bool {
		return c.Text() == "second"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancellation")
	}
}

func TestWatchWithoutFileReturnsImmediately(t *testing.T) {
	c, err := Load("inline", "")
	require.NoError(t, err)
	assert.NoError(t, c.Watch(context.Background()))
}
