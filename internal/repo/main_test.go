package repo

import (
	"testing"

	"go.uber.org/goleak"
)

// Output copying goroutines started by os/exec must be gone once Run returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
