package discord

import (
	"context"
	"errors"

	"papercrumpler/internal/mailbox"
)

// captureStore records enqueued records and supports nothing else.
type captureStore struct {
	records []any
}

func (c *captureStore) Enqueue(ctx context.Context, collection string, record any) (string, error) {
	c.records = append(c.records, record)
	return "-N1", nil
}

func (c *captureStore) Write(ctx context.Context, path string, value any) error {
	return errors.New("not supported")
}

func (c *captureStore) Delete(ctx context.Context, path string) error {
	return errors.New("not supported")
}

func (c *captureStore) Subscribe(ctx context.Context, collection string, handler mailbox.Handler) error {
	return errors.New("not supported")
}
