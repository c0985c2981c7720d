package app

import (
	"os"
	"sync"
)

// TestModeEnv set to "1" makes the binaries exit before touching Postgres
// or Redis. Test packages set it through internal/testing/guard.
const TestModeEnv = "AGRODISTRI_TEST_MODE"

var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})
