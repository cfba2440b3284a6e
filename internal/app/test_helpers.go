package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/vk/featuregrid/internal/handlers"
	"github.com/vk/featuregrid/internal/hcl"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance with debug logging for tests. It
// returns the app, its result output and its log output.
func SetupAppTest(t *testing.T, appConfig *Config, modules ...handlers.Module) (*App, *SafeBuffer, *SafeBuffer) {
	t.Helper()

	out, logs := &SafeBuffer{}, &SafeBuffer{}
	appConfig.LogLevel = "debug"
	testApp := NewApp(out, logs, appConfig, hcl.NewLoader(), modules...)

	t.Cleanup(func() {
		if os.Getenv("FEATUREGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return testApp, out, logs
}
