package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithActionAddsField(t *testing.T) {
	capture := &logCapture{}
	log := WithAction(newCaptureLogger(capture), "close-tab")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["action"] != "close-tab" {
		t.Fatalf("expected action field, got %+v", entry)
	}
}

func TestWithTabViewAddsFields(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithTabView(ctx, "app-1", 2)
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["tab"] != "app-1" {
		t.Fatalf("expected tab field, got %+v", entry)
	}
	if entry["view_index"] != float64(2) {
		t.Fatalf("expected view_index field, got %+v", entry)
	}
}

func TestWithTabSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture).With("tab", "app-1")
	ctx := ContextWithTabLogger(context.Background(), logger, "app-1")
	WithTab(ctx, "app-1").Info("hello")

	line := capture.buf.String()
	if bytes.Count([]byte(line), []byte(`"tab"`)) != 1 {
		t.Fatalf("expected a single tab field, got %s", line)
	}
}

func TestCopyContextFields(t *testing.T) {
	src := ContextWithTabView(context.Background(), "app-1", 1)
	dst := CopyContextFields(context.Background(), src)
	if dst.Value(tabKey) != src.Value(tabKey) || dst.Value(viewKey) != src.Value(viewKey) {
		t.Fatalf("expected markers copied")
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
