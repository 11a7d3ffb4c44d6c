// Package mailbox describes the realtime store used as the print queue and
// the change notifications its subscriptions deliver.
package mailbox

import (
	"context"
	"sort"
	"strings"
)

// Store is an ordered, keyed store with push notification.
type Store interface {
	// Enqueue appends record under collection and returns the store-assigned key.
	Enqueue(ctx context.Context, collection string, record any) (string, error)
	// Write replaces the value at path.
	Write(ctx context.Context, path string, value any) error
	// Delete removes the value at path.
	Delete(ctx context.Context, path string) error
	// Subscribe delivers notifications for collection to handler, one at a
	// time, until ctx ends or the subscription fails for good.
	Subscribe(ctx context.Context, collection string, handler Handler) error
}

// Handler receives one notification. It runs to completion before the next
// notification is delivered.
type Handler func(ctx context.Context, n Notification)

// Kind tells snapshot and delta notifications apart.
type Kind int

const (
	// KindSnapshot carries every child of the collection, typically on connect.
	KindSnapshot Kind = iota
	// KindDelta carries a single changed child.
	KindDelta
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// Notification is a change delivered by a subscription.
type Notification struct {
	Kind Kind
	// Items holds id -> raw value for snapshots.
	Items map[string]any
	// ID and Raw describe the child of a delta. Raw is nil for a deletion.
	ID  string
	Raw any
}

// Entry is one (id, raw value) pair taken from a notification.
type Entry struct {
	ID  string
	Raw any
}

// Snapshot builds a snapshot notification.
func Snapshot(items map[string]any) Notification {
	return Notification{Kind: KindSnapshot, Items: items}
}

// Delta builds a single-child notification.
func Delta(id string, raw any) Notification {
	return Notification{Kind: KindDelta, ID: id, Raw: raw}
}

// Entries flattens the notification into per-item entries. Children without
// data are dropped. Snapshot entries are ordered by key, which for store push
// keys is chronological.
func (n Notification) Entries() []Entry {
	switch n.Kind {
	case KindSnapshot:
		ids := make([]string, 0, len(n.Items))
		for id, raw := range n.Items {
			if raw == nil || id == "" {
				continue
			}
			ids = append(ids, id)
		}
		sort.Strings(ids)

		entries := make([]Entry, 0, len(ids))
		for _, id := range ids {
			entries = append(entries, Entry{ID: id, Raw: n.Items[id]})
		}
		return entries
	case KindDelta:
		if n.Raw == nil || n.ID == "" {
			return nil
		}
		return []Entry{{ID: n.ID, Raw: n.Raw}}
	default:
		return nil
	}
}

// Empty reports whether the notification carries no item data.
func (n Notification) Empty() bool {
	return len(n.Entries()) == 0
}

// Child joins a collection and a key into a store path.
func Child(collection, id string) string {
	return strings.TrimSuffix(collection, "/") + "/" + strings.TrimPrefix(id, "/")
}
