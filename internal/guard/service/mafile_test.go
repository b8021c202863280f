package service_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/service"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

func TestImportFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	record := domain.MaFile{
		AccountName:    "alice",
		SteamID:        "76561198000000001",
		SharedSecret:   b64Secret(1),
		IdentitySecret: b64Secret(2),
		DeviceID:       "android:dev",
	}
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	path := filepath.Join(dir, "alice.maFile")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	vault := memory.NewStore()
	svc := &service.MaFileService{Store: vault}

	acct, err := svc.ImportFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "alice", acct.AccountName)

	stored, err := vault.Accounts().Get(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, stored.HasSecrets())
}

func TestImportFileRejectsBadRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.maFile")
	require.NoError(t, os.WriteFile(path, []byte(`{"account_name":"","shared_secret":"x"}`), 0o600))

	svc := &service.MaFileService{Store: memory.NewStore()}
	_, err := svc.ImportFile(context.Background(), path)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFolderRoundTripPlaintext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := memory.NewStore()
	svc := &service.MaFileService{Store: src}

	for _, name := range []string{"alice", "bob"} {
		acct, err := domain.NewAccount(name, "7656119800000000"+name[:1], b64Secret(1), b64Secret(2), "")
		require.NoError(t, err)
		require.NoError(t, src.Accounts().Put(ctx, acct))
	}

	dir := t.TempDir()
	require.NoError(t, svc.ExportFolder(ctx, dir, ""))

	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var manifest service.Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	require.False(t, manifest.Encrypted)
	require.Len(t, manifest.Entries, 2)

	dst := memory.NewStore()
	imported, err := (&service.MaFileService{Store: dst}).ImportFolder(ctx, dir, "")
	require.NoError(t, err)
	require.Len(t, imported, 2)

	got, err := dst.Accounts().Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, got.HasSecrets())
}

func TestFolderRoundTripEncrypted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := memory.NewStore()
	svc := &service.MaFileService{Store: src}

	acct, err := domain.NewAccount("alice", "76561198000000001", b64Secret(1), b64Secret(2), "")
	require.NoError(t, err)
	require.NoError(t, src.Accounts().Put(ctx, acct))

	dir := t.TempDir()
	require.NoError(t, svc.ExportFolder(ctx, dir, "hunter2"))

	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var manifest service.Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	require.True(t, manifest.Encrypted)
	require.NotEmpty(t, manifest.Entries[0].EncryptionSalt)
	require.NotEmpty(t, manifest.Entries[0].EncryptionIV)

	// The file on disk must not leak the secret.
	fileRaw, err := os.ReadFile(filepath.Join(dir, manifest.Entries[0].Filename))
	require.NoError(t, err)
	require.NotContains(t, string(fileRaw), b64Secret(1))

	t.Run("correct passkey", func(t *testing.T) {
		dst := memory.NewStore()
		imported, err := (&service.MaFileService{Store: dst}).ImportFolder(ctx, dir, "hunter2")
		require.NoError(t, err)
		require.Len(t, imported, 1)
		require.Equal(t, "alice", imported[0].AccountName)
	})

	t.Run("wrong passkey", func(t *testing.T) {
		dst := memory.NewStore()
		imported, err := (&service.MaFileService{Store: dst}).ImportFolder(ctx, dir, "wrong")
		require.Error(t, err)
		require.Empty(t, imported)
	})
}

func TestImportFolderWithoutManifest(t *testing.T) {
	t.Parallel()

	svc := &service.MaFileService{Store: memory.NewStore()}
	_, err := svc.ImportFolder(context.Background(), t.TempDir(), "")
	require.ErrorIs(t, err, service.ErrNoManifest)
}

func TestExportFileRedactsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	vault := memory.NewStore()
	acct, err := domain.NewAccount("alice", "76561198000000001", b64Secret(1), b64Secret(2), "")
	require.NoError(t, err)
	require.NoError(t, vault.Accounts().Put(ctx, acct))

	path := filepath.Join(t.TempDir(), "alice.maFile")
	svc := &service.MaFileService{Store: vault}
	require.NoError(t, svc.ExportFile(ctx, "alice", path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec domain.MaFile
	require.NoError(t, json.Unmarshal(raw, &rec))
	require.Equal(t, b64Secret(1), rec.SharedSecret)
	require.Equal(t, "alice", rec.AccountName)
}
