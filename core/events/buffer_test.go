package events

import (
	"testing"

	"rentchain/core/types"
)

type recorder struct{ seen []string }

func (r *recorder) Emit(evt Event) { r.seen = append(r.seen, evt.EventType()) }

func TestBufferFlushPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(&types.Event{Type: "a"})
	buf.Emit(&types.Event{Type: "b"})

	rec := &recorder{}
	buf.Flush(Multi{rec, NoopEmitter{}})
	if len(rec.seen) != 2 || rec.seen[0] != "a" || rec.seen[1] != "b" {
		t.Fatalf("unexpected flush order: %v", rec.seen)
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("buffer not emptied after flush")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(&types.Event{Type: "a"})
	buf.Reset()

	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.seen) != 0 {
		t.Fatalf("expected no events after reset, got %v", rec.seen)
	}
}

func TestPayloadUnwrapsTypedEvent(t *testing.T) {
	evt := &types.Event{Type: "x", Attributes: map[string]string{"k": "v"}}
	if got := Payload(evt); got != evt {
		t.Fatalf("expected payload to be the event itself")
	}
	if Payload(nil) != nil {
		t.Fatalf("expected nil payload for nil event")
	}
}
