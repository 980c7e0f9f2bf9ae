package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swms-manager/internal/config"
	"go.uber.org/zap"
)

func TestKeyScopesByCompanyAndDay(t *testing.T) {
	at := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "acme/2024/03/01/SWMS_Fitout_2024-03-01.pdf", Key("acme", "SWMS_Fitout_2024-03-01.pdf", at))
	assert.Equal(t, "acme/2024/03/01/evil.pdf", Key("acme", "../../evil.pdf", at))
}

func TestLocalPutWritesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, zap.NewNop())
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), "acme/2024/03/01/a.pdf", "application/pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "acme", "2024", "03", "01", "a.pdf"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))
}

func TestLocalPutStaysInsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(filepath.Join(dir, "root"), zap.NewNop())
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), "../../escape.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "root", "escape.pdf"), loc)
}

func TestLocalPutHonoursCancelledContext(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a.pdf", "application/pdf", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSelectsDriver(t *testing.T) {
	store, err := New(context.Background(), config.ArchiveConfig{Driver: "none"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, store)

	store, err = New(context.Background(), config.ArchiveConfig{Driver: "local", Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = New(context.Background(), config.ArchiveConfig{Driver: "s3"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(context.Background(), config.ArchiveConfig{Driver: "ftp"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewS3WithStaticCredentials(t *testing.T) {
	store, err := NewS3(context.Background(), config.ArchiveConfig{
		Bucket:          "exports",
		Region:          "ap-southeast-2",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, store.expiry)
}
