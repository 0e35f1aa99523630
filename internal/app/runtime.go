package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "WORKDESK_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the binaries should skip startup side effects,
// used by build smoke tests that exec the compiled binary.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}
