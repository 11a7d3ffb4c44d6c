package models

import "fmt"

// Wire field names shared by pendingMessages and printedMessages records.
const (
	FieldMessage   = "message"
	FieldCreatedAt = "createdAt"
	FieldSender    = "sender"
	FieldSource    = "source"
	FieldPrintedAt = "printedAt"
)

// ServerTimestamp is the store's "set to server time" placeholder. It is
// written verbatim and resolved by the store, never by a client clock.
var ServerTimestamp = map[string]string{".sv": "timestamp"}

// PendingRecord is the wire shape of pendingMessages/{id}.
type PendingRecord struct {
	Message   string `json:"message"`
	CreatedAt any    `json:"createdAt"`
	Source    string `json:"source"`
	Sender    string `json:"sender"`
}

// PendingItem is a decoded submission awaiting printing.
type PendingItem struct {
	ID     string
	Text   string
	Sender string
	Source string
	// CreatedAt is the store-resolved value, copied unchanged into the archive.
	CreatedAt any
}

// Line renders the item the way it is printed.
func (p *PendingItem) Line() string {
	return FormatLine(p.Sender, p.Source, p.Text)
}

// PrintedRecord is the wire shape of printedMessages/{id}.
type PrintedRecord struct {
	Message   string `json:"message"`
	CreatedAt any    `json:"createdAt"`
	Sender    string `json:"sender"`
	Source    string `json:"source"`
	PrintedAt any    `json:"printedAt"`
}

// NewPrintedRecord builds the archive copy of a printed item.
func NewPrintedRecord(item *PendingItem) PrintedRecord {
	return PrintedRecord{
		Message:   item.Text,
		CreatedAt: item.CreatedAt,
		Sender:    item.Sender,
		Source:    item.Source,
		PrintedAt: ServerTimestamp,
	}
}

// FormatLine returns "[sender@source] text".
func FormatLine(sender, source, text string) string {
	return fmt.Sprintf("[%s@%s] %s", sender, source, text)
}
