// Package store defines the handle the submission core writes through and the
// record and asset backends that implement it.
package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// RecordID is a store-assigned record identifier. Zero means no identifier.
type RecordID int

// Payload is the set of field values written to a record.
type Payload map[string]any

type UploadOptions struct {
	Overwrite bool
}

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrAssetExists    = errors.New("asset already exists")
)

// RecordStore holds list records and the choice sets configured for their fields.
type RecordStore interface {
	CreateRecord(ctx context.Context, list string, payload Payload) (RecordID, error)
	UpdateRecord(ctx context.Context, list string, id RecordID, payload Payload) error
	GetFieldChoices(ctx context.Context, list, field string) ([]string, error)
}

// AssetStore holds binary assets addressed by their server-relative path.
type AssetStore interface {
	UploadAsset(ctx context.Context, path string, data []byte, opts UploadOptions) error
}

// Handle is everything the submission core needs from the remote store.
type Handle interface {
	RecordStore
	AssetStore
}

type composite struct {
	RecordStore
	AssetStore
}

// Compose joins a record backend and an asset backend into one Handle.
func Compose(records RecordStore, assets AssetStore) Handle {
	return composite{RecordStore: records, AssetStore: assets}
}

var storeLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storeLogger = l
}
