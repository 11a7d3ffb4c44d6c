package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotification_SnapshotEntriesAreOrdered(t *testing.T) {
	n := Snapshot(map[string]any{
		"-N3": map[string]any{"message": "c"},
		"-N1": map[string]any{"message": "a"},
		"-N2": map[string]any{"message": "b"},
	})

	entries := n.Entries()

	assert.Equal(t, KindSnapshot, n.Kind)
	assert.Len(t, entries, 3)
	assert.Equal(t, []string{"-N1", "-N2", "-N3"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, map[string]any{"message": "a"}, entries[0].Raw)
}

func TestNotification_SnapshotSkipsNullChildren(t *testing.T) {
	n := Snapshot(map[string]any{
		"-N1": nil,
		"-N2": "not an object",
	})

	entries := n.Entries()

	assert.Len(t, entries, 1)
	assert.Equal(t, "-N2", entries[0].ID)
}

func TestNotification_Delta(t *testing.T) {
	raw := map[string]any{"message": "hello"}
	entries := Delta("-N1", raw).Entries()

	assert.Equal(t, []Entry{{ID: "-N1", Raw: raw}}, entries)
}

func TestNotification_EmptyPayloads(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
	}{
		{"delta tombstone", Delta("-N1", nil)},
		{"delta without id", Delta("", map[string]any{"message": "x"})},
		{"empty snapshot", Snapshot(nil)},
		{"zero value", Notification{Kind: Kind(99)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.n.Empty())
			assert.Empty(t, tt.n.Entries())
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "snapshot", KindSnapshot.String())
	assert.Equal(t, "delta", KindDelta.String())
	assert.Equal(t, "unknown", Kind(7).String())
}

func TestChild(t *testing.T) {
	assert.Equal(t, "pendingMessages/-N1", Child("pendingMessages", "-N1"))
	assert.Equal(t, "printedMessages/-N1", Child("printedMessages/", "/-N1"))
}
