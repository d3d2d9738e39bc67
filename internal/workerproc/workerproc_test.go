package workerproc

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"sealdeal-backend/internal/queue"
)

type recordingHandler struct {
	keys []string
	fail map[string]bool
}

func (r *recordingHandler) HandleEvent(_ context.Context, key string) error {
	r.keys = append(r.keys, key)
	if r.fail[key] {
		return errors.New("db unavailable")
	}
	return nil
}

func TestParseMessageErrors(t *testing.T) {
	if _, _, err := ParseMessage("  "); !errors.As(err, new(ErrEmptyBody)) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	_, meta, err := ParseMessage("{")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if meta.BodyLen != 1 || meta.BodySHA == "" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestHandleMessageStripsPrefix(t *testing.T) {
	h := &recordingHandler{}
	p := &Processor{Events: h, Prefix: "sealdeal"}
	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"object":{"key":"sealdeal/uploads/u1/d1/deck.pdf"}}}]}`

	if err := p.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if want := []string{"uploads/u1/d1/deck.pdf"}; !reflect.DeepEqual(h.keys, want) {
		t.Fatalf("keys = %v, want %v", h.keys, want)
	}
}

func TestHandleContinuesPastFailure(t *testing.T) {
	h := &recordingHandler{fail: map[string]bool{"uploads/u1/d1/a.pdf": true}}
	p := &Processor{Events: h}
	err := p.Handle(context.Background(), queue.Envelope{Keys: []string{"uploads/u1/d1/a.pdf", "uploads/u1/d1/b.pdf"}})

	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.Key != "uploads/u1/d1/a.pdf" {
		t.Fatalf("expected ErrProcess for a.pdf, got %v", err)
	}
	if len(h.keys) != 2 {
		t.Fatalf("expected both keys processed, got %v", h.keys)
	}
}
