package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the system-wide role of a user.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOperator
}

// TxType is the direction of a transaction.
type TxType string

const (
	Buy  TxType = "BUY"
	Sell TxType = "SELL"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	return t == Buy || t == Sell
}

// MediaKind classifies an attachment by its file name extension.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaOther MediaKind = "other"
)

var mediaExtensions = map[string]MediaKind{
	".jpg": MediaImage, ".jpeg": MediaImage, ".png": MediaImage, ".gif": MediaImage,
	".webp": MediaImage, ".bmp": MediaImage, ".heic": MediaImage, ".heif": MediaImage,
	".mp4": MediaVideo, ".mov": MediaVideo, ".avi": MediaVideo, ".mkv": MediaVideo,
	".webm": MediaVideo, ".m4v": MediaVideo, ".3gp": MediaVideo,
	".mp3": MediaAudio, ".wav": MediaAudio, ".m4a": MediaAudio, ".aac": MediaAudio,
	".ogg": MediaAudio, ".flac": MediaAudio, ".amr": MediaAudio, ".opus": MediaAudio,
}

// MediaKindOf derives the media kind from a file name extension.
func MediaKindOf(fileName string) MediaKind {
	if kind, ok := mediaExtensions[strings.ToLower(filepath.Ext(fileName))]; ok {
		return kind
	}
	return MediaOther
}

// User is a registered account.
type User struct {
	ID         string // UUID
	Username   string // globally unique
	Credential string // compared as a plain shared secret
	Role       Role
	CreatedAt  time.Time
}

// Ledger is an isolated, password-gated transaction namespace.
type Ledger struct {
	ID        string // UUID
	Name      string
	Secret    string
	CreatedBy string // username of the creating admin
	CreatedAt time.Time
}

// Transaction is a single buy or sell of the asset.
type Transaction struct {
	ID             string // UUID, pre-generated by the client
	LedgerID       string // Foreign key to Ledger
	Type           TxType
	Price          decimal.Decimal // quote currency per unit, > 0
	Quantity       decimal.Decimal // units, > 0
	Total          decimal.Decimal // Price × Quantity at last write
	Timestamp      time.Time
	DateKey        string // YYYY-MM-DD in the ledger zone, derived from Timestamp
	EditCount      int    // operator edits performed
	AuthorUsername string
}

// TransactionFields holds the mutable part of a transaction as written by an edit.
type TransactionFields struct {
	Type      TxType
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Total     decimal.Decimal
	Timestamp time.Time
	DateKey   string
	EditCount int
}

// Attachment is an evidence file owned by exactly one transaction.
type Attachment struct {
	ID            string // UUID
	TransactionID string // Foreign key to Transaction
	LedgerID      string // Foreign key to Ledger
	StorageKey    string // key in the vault
	PublicLocator string // where the blob can be reached
	FileName      string
	FileSize      int64 // plaintext size in bytes
	MediaKind     MediaKind
	Encrypted     bool // blob is stored as ciphertext
	CreatedAt     time.Time
}
