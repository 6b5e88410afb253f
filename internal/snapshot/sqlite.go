package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const sqliteBackupSubdir = "spring"

// Companion files SQLite keeps next to the database in WAL mode.
var sqliteCompanions = []string{"-wal", "-shm"}

// SQLiteBackup copies a SQLite database file into a timestamped backup
// directory and prunes old copies.
type SQLiteBackup struct {
	fs        afero.Fs
	source    string
	backupDir string
	policy    Policy
	now       func() time.Time
	logger    zerolog.Logger
}

func NewSQLiteBackup(fs afero.Fs, source, backupDir string, policy Policy, logger zerolog.Logger) *SQLiteBackup {
	return &SQLiteBackup{
		fs:        fs,
		source:    source,
		backupDir: filepath.Join(backupDir, sqliteBackupSubdir),
		policy:    policy,
		now:       time.Now,
		logger:    logger.With().Str("snapshotter", "sqlite").Logger(),
	}
}

func (b *SQLiteBackup) Name() string { return "sqlite" }

// Snapshot copies the database and any companion files. It returns the path
// of the copied database, or ErrSkipped when the source does not exist.
func (b *SQLiteBackup) Snapshot(_ context.Context, trigger string) (string, error) {
	exists, err := afero.Exists(b.fs, b.source)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", b.source, err)
	}
	if !exists {
		b.logger.Warn().Str("path", b.source).Msg("SQLite file not found, skipping")
		return "", ErrSkipped
	}
	if err := b.fs.MkdirAll(b.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	filename := fmt.Sprintf("sqlite_%s.db", b.now().UTC().Format("20060102_150405"))
	dest := filepath.Join(b.backupDir, filename)
	b.logger.Info().Str("trigger", trigger).Msgf("Copying SQLite database: %s -> %s", b.source, dest)
	if err := copyFile(b.fs, b.source, dest); err != nil {
		return "", err
	}
	for _, suffix := range sqliteCompanions {
		companion := b.source + suffix
		if ok, _ := afero.Exists(b.fs, companion); !ok {
			continue
		}
		if err := copyFile(b.fs, companion, dest+suffix); err != nil {
			return "", err
		}
	}

	if fi, err := b.fs.Stat(dest); err == nil {
		b.logger.Info().Msgf("SQLite snapshot saved: %s (%.1f MB)", dest, float64(fi.Size())/(1024*1024))
	}
	return dest, nil
}

// Cleanup deletes backups the retention policy drops, along with their
// companion files, and returns the deleted backup names.
func (b *SQLiteBackup) Cleanup(_ context.Context) ([]string, error) {
	matches, err := afero.Glob(b.fs, filepath.Join(b.backupDir, "sqlite_*.db"))
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	items := make([]Item, 0, len(matches))
	for _, path := range matches {
		fi, err := b.fs.Stat(path)
		if err != nil {
			b.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable backup")
			continue
		}
		items = append(items, Item{ID: filepath.Base(path), Created: fi.ModTime()})
	}

	_, drop := b.policy.Apply(items, b.now())
	var deleted []string
	for _, it := range drop {
		path := filepath.Join(b.backupDir, it.ID)
		b.logger.Info().Msgf("Deleting old SQLite backup: %s", it.ID)
		if err := b.fs.Remove(path); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", it.ID, err)
		}
		for _, suffix := range sqliteCompanions {
			if ok, _ := afero.Exists(b.fs, path+suffix); ok {
				if err := b.fs.Remove(path + suffix); err != nil {
					return deleted, fmt.Errorf("delete %s%s: %w", it.ID, suffix, err)
				}
			}
		}
		deleted = append(deleted, it.ID)
	}
	return deleted, nil
}

// copyFile copies src to dst and carries over the modification time.
func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return fs.Chtimes(dst, fi.ModTime(), fi.ModTime())
}
