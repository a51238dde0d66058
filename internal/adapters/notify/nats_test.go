package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	messages []message
	err      error
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{subject: subject, data: data})
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix string
		typ    domain.LayerEventType
		want   string
	}{
		{"", domain.LayerAdded, "zsqlgis.layers.added"},
		{"gis.events.", domain.LayerRemoved, "gis.events.removed"},
		{"gis", domain.LayersCleared, "gis.cleared"},
	}
	for _, tt := range tests {
		p := newPublisher(&fakeConn{}, tt.prefix, testLogger())
		if got := p.Subject(tt.typ); got != tt.want {
			t.Errorf("Subject(%q, %s) = %q, want %q", tt.prefix, tt.typ, got, tt.want)
		}
	}
}

func TestPublish(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "", testLogger())

	event := domain.LayerEvent{
		Type:      domain.LayerVisibility,
		Layer:     "cities",
		Kind:      domain.KindPointSet,
		Visible:   true,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(fc.messages) != 1 {
		t.Fatalf("messages = %d", len(fc.messages))
	}
	if fc.messages[0].subject != "zsqlgis.layers.visibility" {
		t.Errorf("subject = %q", fc.messages[0].subject)
	}

	var got domain.LayerEvent
	if err := json.Unmarshal(fc.messages[0].data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Layer != "cities" || !got.Visible || !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("decoded event = %+v", got)
	}

	if err := p.Close(); err != nil || !fc.drained {
		t.Error("Close() should drain the connection")
	}
}

func TestPublishErrors(t *testing.T) {
	fc := &fakeConn{err: errors.New("connection closed")}
	p := newPublisher(fc, "", testLogger())
	if err := p.Publish(context.Background(), domain.LayerEvent{Type: domain.LayerAdded}); err == nil {
		t.Error("Publish() should return the connection error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, domain.LayerEvent{Type: domain.LayerAdded}); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() with cancelled context error = %v", err)
	}
}
