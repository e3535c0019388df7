package notify

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
)

func TestLogNotifierWritesKindAndMessage(t *testing.T) {
	var buffer bytes.Buffer
	notifier := NewLogNotifier(log.New(&buffer, "", 0))

	if err := notifier.Notify(context.Background(), KindError, "ingestion failed: boom"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	logged := buffer.String()
	if !strings.Contains(logged, "kind=error") {
		t.Fatalf("expected kind in output, got %q", logged)
	}
	if !strings.Contains(logged, "ingestion failed: boom") {
		t.Fatalf("expected message in output, got %q", logged)
	}
}

func TestLogNotifierToleratesNilLogger(t *testing.T) {
	notifier := NewLogNotifier(nil)
	if err := notifier.Notify(context.Background(), KindSuccess, "done"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
}
