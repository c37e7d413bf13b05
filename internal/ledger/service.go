package ledger

import (
	"time"

	"usdt-ledger/internal/model"
)

// Service is the orchestration layer that applies the access and mutation
// rules before anything reaches the store, the vault or the change feed.
type Service struct {
	database         Database
	vault            Vault
	feed             ChangeFeed
	encryptor        Encryptor // nil stores evidence in plaintext
	logger           Logger
	clock            Clock
	idgen            IDGenerator
	zone             *time.Location
	registrationCode string
}

// Settings holds the policy knobs of a Service.
type Settings struct {
	// Zone is the ledger's local time zone used to derive date keys.
	// Nil means UTC.
	Zone *time.Location
	// RegistrationCode, when non-empty, must accompany every registration.
	RegistrationCode string
}

// NewService creates a new Service with the provided dependencies.
// vault, feed and encryptor may be nil: without a vault attachments are
// rejected, without a feed no notifications are published.
func NewService(database Database, vault Vault, feed ChangeFeed, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, settings Settings) *Service {
	if feed == nil {
		feed = nopFeed{}
	}
	zone := settings.Zone
	if zone == nil {
		zone = time.UTC
	}
	return &Service{
		database:         database,
		vault:            vault,
		feed:             feed,
		encryptor:        encryptor,
		logger:           logger,
		clock:            clock,
		idgen:            idgen,
		zone:             zone,
		registrationCode: settings.RegistrationCode,
	}
}

// Zone returns the time zone date keys are derived in.
func (s *Service) Zone() *time.Location { return s.zone }

// Session is a user working against one selected ledger.
type Session struct {
	Actor  ActingUser
	Ledger *model.Ledger
}

// LedgerID returns the ID of the selected ledger.
func (s *Session) LedgerID() string { return s.Ledger.ID }

func (s *Service) publish(kind EntityKind, ledgerID string) {
	s.feed.Publish(Change{Kind: kind, LedgerID: ledgerID})
}

func checkSession(op string, sess *Session) error {
	if sess == nil || sess.Ledger == nil {
		return permissionError(op, "no ledger selected")
	}
	if !sess.Actor.authenticated() {
		return permissionError(op, "not authenticated")
	}
	return nil
}

type nopFeed struct{}

func (nopFeed) Subscribe(EntityKind, string, func()) func() { return func() {} }
func (nopFeed) Publish(Change)                              {}
