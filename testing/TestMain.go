// Package testing primes the environment for tests that load the real config.
// Import it for side effects.
package testing

import (
	"os"
	stdtesting "testing"
)

var testEnv = map[string]string{
	"CAMPUSSYNC_TEST_MODE":    "1",
	"JWT_SECRET":              "test-secret-test-secret-test-secret!",
	"CREDENTIAL_SIGNING_SEED": "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=",
}

func init() {
	for key, value := range testEnv {
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs m with the test environment applied.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
