// Package guard flips the process into test mode on import so runtime side
// effects (Redis pings, schedulers) stay off in unit tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ACTIVOS_TEST_MODE") == "" {
			_ = os.Setenv("ACTIVOS_TEST_MODE", "1")
		}
	})
}
