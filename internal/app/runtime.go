package app

import (
	"os"
	"strconv"
)

// TestModeEnv, when true, makes the binaries return before dialing any dependency.
const TestModeEnv = "CAMPUSSYNC_TEST_MODE"

// InTestMode reports whether CAMPUSSYNC_TEST_MODE is set to a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
