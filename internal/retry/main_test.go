package retry

import (
	"testing"

	"go.uber.org/goleak"
)

// Backoff waits must not leave goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
