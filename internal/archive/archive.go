package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/swms-manager/internal/config"
	"go.uber.org/zap"
)

var ErrDisabled = errors.New("export archive is disabled")

// Store keeps rendered exports. Put returns where the copy can be fetched.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Key namespaces an export by company and day so tenants never share a prefix.
func Key(companyID, fileName string, at time.Time) string {
	return path.Join(companyID, at.UTC().Format("2006/01/02"), path.Base(fileName))
}

// New builds the configured store. A nil store with ErrDisabled means archiving is off.
func New(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return nil, ErrDisabled
	case "local":
		return NewLocal(cfg.Dir, logger)
	case "s3":
		return NewS3(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s", cfg.Driver)
	}
}

// Local writes exports below a directory on disk.
type Local struct {
	root   string
	logger *zap.Logger
}

func NewLocal(dir string, logger *zap.Logger) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	return &Local{root: abs, logger: logger.With(zap.String("archive", "local"))}, nil
}

func (l *Local) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash("/" + key))
	target := filepath.Join(l.root, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive path: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".export-*")
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store archive file: %w", err)
	}

	l.logger.Debug("Export archived", zap.String("path", target), zap.Int("bytes", len(data)))
	return target, nil
}
