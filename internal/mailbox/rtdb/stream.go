package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"papercrumpler/internal/mailbox"

	"github.com/cenkalti/backoff/v4"
	"github.com/r3labs/sse/v2"
	"github.com/sirupsen/logrus"
)

// Streaming event types sent by the database.
const (
	eventPut         = "put"
	eventPatch       = "patch"
	eventKeepAlive   = "keep-alive"
	eventCancel      = "cancel"
	eventAuthRevoked = "auth_revoked"
)

var (
	// ErrStreamCancelled is returned when the server cancels the stream,
	// usually because security rules no longer allow the read.
	ErrStreamCancelled = errors.New("stream cancelled by server")

	errAuthRevoked = errors.New("stream credential revoked")
)

type streamPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Subscribe streams changes under collection to handler until ctx ends. The
// first event after connecting is a snapshot of the whole collection; later
// events describe single children. Dropped connections are re-established
// with exponential backoff and replay a fresh snapshot.
func (s *Store) Subscribe(ctx context.Context, collection string, handler mailbox.Handler) error {
	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = s.reconnectInterval
	reconnect.MaxElapsedTime = 0

	for {
		delivered := false
		err := s.stream(ctx, collection, func(ctx context.Context, n mailbox.Notification) {
			delivered = true
			handler(ctx, n)
		})
		if ctx.Err() != nil {
			return nil
		}
		if delivered {
			reconnect.Reset()
		}

		switch {
		case errors.Is(err, errAuthRevoked):
			s.logger.Warn("Stream credential revoked, reconnecting")
		case err == nil:
			// The server or a proxy ended the response. A fresh connection
			// starts with a new snapshot.
			delay := reconnect.NextBackOff()
			s.logger.WithFields(logrus.Fields{
				"collection": collection,
				"retry_in":   delay,
			}).Warn("Stream closed by server, reconnecting")
			if !sleepCtx(ctx, delay) {
				return nil
			}
		default:
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Store) stream(ctx context.Context, collection string, handler mailbox.Handler) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var terminal error
	stop := func(err error) {
		terminal = err
		cancel()
	}

	client := sse.NewClient(s.streamURL(collection), sse.ClientMaxBufferSize(s.maxEventBytes))
	client.Connection = s.httpClient
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		permanent, err := checkStreamResponse(resp)
		if permanent {
			stop(err)
		}
		return err
	}

	reconnect := backoff.NewExponentialBackOff()
	reconnect.MaxElapsedTime = 0
	client.ReconnectStrategy = backoff.WithContext(reconnect, streamCtx)
	client.ReconnectNotify = func(err error, next time.Duration) {
		s.logger.WithFields(logrus.Fields{
			"collection": collection,
			"error":      err,
			"retry_in":   next,
		}).Warn("Stream disconnected, reconnecting")
	}
	client.OnConnect(func(*sse.Client) {
		s.logger.WithField("collection", collection).Info("Stream connected")
	})

	err := client.SubscribeRawWithContext(streamCtx, func(msg *sse.Event) {
		n, err := parseEvent(string(msg.Event), msg.Data)
		switch {
		case errors.Is(err, ErrStreamCancelled), errors.Is(err, errAuthRevoked):
			stop(err)
			return
		case err != nil:
			s.logger.WithError(err).WithField("event", string(msg.Event)).Warn("Ignoring unreadable stream event")
			return
		case n == nil:
			return
		}
		handler(streamCtx, *n)
	})

	if terminal != nil {
		return terminal
	}
	return err
}

func (s *Store) streamURL(collection string) string {
	u := s.baseURL + "/" + strings.Trim(collection, "/") + ".json"
	if s.authUID == "" {
		return u
	}
	override, _ := json.Marshal(map[string]string{"uid": s.authUID})
	return u + "?auth_variable_override=" + url.QueryEscape(string(override))
}

// checkStreamResponse rejects non-200 responses and reports whether a retry
// could ever succeed.
func checkStreamResponse(resp *http.Response) (bool, error) {
	if resp.StatusCode == http.StatusOK {
		return false, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()

	err := fmt.Errorf("stream rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest:
		return true, err
	default:
		return false, err
	}
}

// parseEvent turns one streamed event into a notification. It returns a nil
// notification for events that carry no change.
func parseEvent(eventType string, data []byte) (*mailbox.Notification, error) {
	switch eventType {
	case eventKeepAlive:
		return nil, nil
	case eventCancel:
		return nil, fmt.Errorf("%w: %s", ErrStreamCancelled, strings.TrimSpace(string(data)))
	case eventAuthRevoked:
		return nil, errAuthRevoked
	case eventPut, eventPatch:
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	var payload streamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}

	value, err := decodeValue(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", eventType, err)
	}

	id := strings.Trim(payload.Path, "/")
	if id != "" {
		n := mailbox.Delta(id, value)
		return &n, nil
	}

	if value == nil {
		n := mailbox.Snapshot(nil)
		return &n, nil
	}
	items, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("collection root holds %T, want object", value)
	}
	n := mailbox.Snapshot(items)
	return &n, nil
}

// decodeValue keeps numbers as json.Number so server timestamps round-trip
// without float formatting.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
