package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/debemdeboas/kable/internal/util"
)

// FSAssetStore keeps assets on local disk, mirroring their server-relative
// paths below a root directory.
type FSAssetStore struct { // implements AssetStore
	root string
}

func NewFSAssetStore(root string) *FSAssetStore {
	return &FSAssetStore{root: root}
}

// Path returns where an asset path lands on disk.
func (s *FSAssetStore) Path(assetPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(util.CleanAssetPath(assetPath)))
}

func (s *FSAssetStore) UploadAsset(ctx context.Context, assetPath string, data []byte, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.Path(assetPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("error creating asset folder: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(target, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrAssetExists, assetPath)
	} else if err != nil {
		return fmt.Errorf("error opening asset %s: %w", assetPath, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("error writing asset %s: %w", assetPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing asset %s: %w", assetPath, err)
	}

	storeLogger.Debug().
		Str("path", assetPath).
		Int("bytes", len(data)).
		Str("sha256", util.ContentHash(data)).
		Msg("Asset written")
	return nil
}
