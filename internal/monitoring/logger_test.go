package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("status=%d", 200)
	if got != "status=200" {
		t.Errorf("captured %q, want %q", got, "status=200")
	}

	// nil installs a no-op, not a panic.
	SetLogger(nil)
	Logf("dropped")
}
