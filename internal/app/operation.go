package app

import (
	"time"

	"usdt-ledger/internal/ledger"
)

// Operation tracks one CLI invocation for the log. Every log line carries
// its LogID; Close reports its outcome and duration.
type Operation struct {
	Name    string
	RunID   string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation starts an operation named after the CLI command being run.
func NewOperation(name string, clock ledger.Clock, idgen ledger.IDGenerator) *Operation {
	return &Operation{
		Name:    name,
		RunID:   idgen.New(),
		Started: clock.Now(),
		Status:  "success",
	}
}

// LogID is the short identifier written in every log line.
func (op *Operation) LogID() string {
	id := op.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return op.Name + ":" + id
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
