package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BackupDatabase copies the store to a file and uploads it to the vault
// under backups/. Only admins can. Returns the vault key.
func (s *Service) BackupDatabase(ctx context.Context, actor ActingUser) (string, error) {
	const op = "BackupDatabase"

	if !actor.IsAdmin() {
		return "", permissionError(op, "only an admin can back up the database")
	}
	snap, ok := s.database.(Snapshotter)
	if !ok {
		return "", validationError(op, "database does not support file backups")
	}
	if s.vault == nil {
		return "", validationError(op, "no vault configured")
	}

	dir, err := os.MkdirTemp("", "usdt-backup-*")
	if err != nil {
		return "", collaboratorError(op, "creating temp dir", err)
	}
	defer os.RemoveAll(dir)

	tmpPath := filepath.Join(dir, "usdt.db")
	if err := snap.BackupTo(tmpPath); err != nil {
		return "", collaboratorError(op, "copying database", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", collaboratorError(op, "opening backup", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", collaboratorError(op, "sizing backup", err)
	}

	key := fmt.Sprintf("backups/%s.db", s.clock.Now().UTC().Format("20060102T150405Z"))
	if err := s.vault.Put(ctx, key, f, info.Size()); err != nil {
		return "", collaboratorError(op, "uploading backup", err)
	}

	s.logger.Info("database backed up", "key", key, "size", info.Size(), "by", actor.Username)
	return key, nil
}
