// Package guard forces test mode before any package init that might start
// runtime side effects. Import it for side effects from test files.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FOODFLOW_TEST_MODE") == "" {
			_ = os.Setenv("FOODFLOW_TEST_MODE", "1")
		}
	})
}
