// Package testing switches the console binaries into test mode and fills the
// secrets LoadConfig insists on. Test packages import it for side effects.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var testEnv = map[string]string{
	"CONSOLE_TEST_MODE": "1",
	"SESSION_SECRET":    "test-session-secret",
	"CSRF_SECRET":       "test-csrf-secret",
	"TOKEN_SECRET":      "test-token-secret",
}

var once sync.Once

func ensureTestEnv() {
	once.Do(func() {
		for key, value := range testEnv {
			if _, set := os.LookupEnv(key); !set {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestEnv()
}

// TestMain can be called from a package TestMain to run with the test
// environment.
func TestMain(m *stdtesting.M) {
	ensureTestEnv()
	os.Exit(m.Run())
}
