package models

// ItemState is the position of a pending item in the print pipeline.
type ItemState int

const (
	StateReceived ItemState = iota
	StateDecoded
	StatePrinted
	StateArchived
	StateFailed
)

func (s ItemState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateDecoded:
		return "decoded"
	case StatePrinted:
		return "printed"
	case StateArchived:
		return "archived"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureReason explains why an item ended in StateFailed.
type FailureReason string

const (
	ReasonDecode      FailureReason = "decode_error"
	ReasonPrint       FailureReason = "print_error"
	ReasonBookkeeping FailureReason = "bookkeeping_error"
)
