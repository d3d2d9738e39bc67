package queue

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// MessageVersion is the current version of Message.
const MessageVersion = 1

// Message asks the worker to process an uploaded object. The API sends it after
// a direct upload when the upload trigger is "queue".
type Message struct {
	Key        string `json:"key"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// Envelope is a decoded queue body: the object keys it names and, for
// API-sent messages, the originating request ID.
type Envelope struct {
	Keys      []string
	RequestID string
	// Test is set for the s3:TestEvent sent when a notification is configured.
	Test bool
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

var errUnknownBody = errors.New("body is neither an S3 event nor an upload message")

type probe struct {
	Records json.RawMessage `json:"Records"`
	Event   string          `json:"Event"`
	Key     string          `json:"key"`
}

// DecodeMessage parses either an S3 event notification or a Message.
func DecodeMessage(payload []byte) (Envelope, error) {
	var p probe
	if err := json.Unmarshal(payload, &p); err != nil {
		return Envelope{}, err
	}
	switch {
	case len(p.Records) > 0:
		var ev events.S3Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Envelope{}, err
		}
		return Envelope{Keys: ObjectKeys(ev)}, nil
	case p.Event == "s3:TestEvent":
		return Envelope{Test: true}, nil
	case strings.TrimSpace(p.Key) != "":
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return Envelope{}, err
		}
		return Envelope{Keys: []string{msg.Key}, RequestID: msg.RequestID}, nil
	}
	return Envelope{}, errUnknownBody
}

// ObjectKeys returns the decoded object keys of created objects in the event.
func ObjectKeys(ev events.S3Event) []string {
	keys := make([]string, 0, len(ev.Records))
	for _, rec := range ev.Records {
		if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			continue
		}
		key := rec.S3.Object.URLDecodedKey
		if key == "" {
			// Keys in notifications are form-encoded.
			decoded, err := url.QueryUnescape(rec.S3.Object.Key)
			if err != nil {
				decoded = rec.S3.Object.Key
			}
			key = decoded
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
