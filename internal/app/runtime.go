package app

import (
	"os"
	"sync"
)

const testModeEnv = "SITEPROC_TEST_MODE"

// InTestMode reports whether the binaries should skip runtime startup, read
// once per process. CI smoke runs set SITEPROC_TEST_MODE=1 so the compiled
// entrypoints exit cleanly without Postgres or Redis available.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
