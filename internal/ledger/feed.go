package ledger

// EntityKind names the collection a change notification is about.
type EntityKind string

const (
	KindUsers        EntityKind = "users"
	KindLedgers      EntityKind = "ledgers"
	KindTransactions EntityKind = "transactions"
	KindAttachments  EntityKind = "attachments"
)

// Change says that something of Kind changed within LedgerID.
// An empty LedgerID means the change is not scoped to a ledger.
type Change struct {
	Kind     EntityKind
	LedgerID string
}

// ChangeFeed delivers payload-less change notifications. Subscribers are
// expected to re-fetch whatever they display.
type ChangeFeed interface {
	// Subscribe registers onChange for changes of kind. A non-empty scope
	// restricts delivery to changes in that ledger; unscoped changes are
	// always delivered. The returned function unsubscribes.
	Subscribe(kind EntityKind, scope string, onChange func()) (unsubscribe func())

	// Publish announces a change to matching subscribers.
	Publish(change Change)
}
