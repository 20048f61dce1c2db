package logger

import "testing"

func TestNew(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		log, err := New(lvl)
		if err != nil {
			t.Fatalf("%q: %v", lvl, err)
		}
		_ = log.Sync()
	}
	if _, err := New("loud"); err == nil {
		t.Fatalf("want error for unknown level")
	}
}
