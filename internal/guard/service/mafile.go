package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
	"github.com/cs2central/steam-authenticator-linux/pkg/cryptox"
	"github.com/cs2central/steam-authenticator-linux/pkg/slogx"
)

// ErrNoManifest means the folder does not look like an SDA maFiles
// directory.
var ErrNoManifest = errors.New("service: no manifest.json found")

// Manifest mirrors Steam Desktop Authenticator's manifest.json. Only the
// fields this tool reads and writes are modeled; unknown SDA settings are
// dropped on rewrite.
type Manifest struct {
	Encrypted bool            `json:"encrypted"`
	Entries   []ManifestEntry `json:"entries"`
}

// ManifestEntry points at one .maFile, carrying its per-file encryption
// parameters when the folder is encrypted.
type ManifestEntry struct {
	Filename string `json:"filename"`
	// SDA writes steamid as a bare number; json.Number keeps it lossless.
	SteamID        json.Number `json:"steamid"`
	EncryptionIV   string      `json:"encryption_iv,omitempty"`
	EncryptionSalt string      `json:"encryption_salt,omitempty"`
}

// MaFileService imports and exports accounts in the .maFile format, both as
// loose files and as whole SDA folders with an optional passkey.
type MaFileService struct {
	Store store.Store
}

// ImportFile reads one plaintext .maFile and stores the account.
func (s *MaFileService) ImportFile(ctx context.Context, path string) (*domain.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mafile: %w", err)
	}
	return s.importRecord(ctx, raw)
}

func (s *MaFileService) importRecord(ctx context.Context, raw []byte) (*domain.Account, error) {
	var rec domain.MaFile
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("parsing mafile: %w", err)
	}
	acct, err := rec.ToAccount()
	if err != nil {
		return nil, err
	}
	if err := s.Store.Accounts().Put(ctx, acct); err != nil {
		return nil, fmt.Errorf("storing imported account: %w", err)
	}
	return acct, nil
}

// ImportFolder imports every entry of an SDA folder. The passkey is only
// consulted when the manifest says the folder is encrypted. Entries that
// fail keep their error; everything importable is imported.
func (s *MaFileService) ImportFolder(ctx context.Context, dir, passkey string) ([]*domain.Account, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	log := slogx.FromContext(ctx)

	var (
		imported []*domain.Account
		failures []error
	)
	for _, entry := range manifest.Entries {
		raw, err := os.ReadFile(filepath.Join(dir, entry.Filename))
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", entry.Filename, err))
			continue
		}

		if manifest.Encrypted {
			raw, err = cryptox.Decrypt(passkey, entry.EncryptionSalt, entry.EncryptionIV,
				strings.TrimSpace(string(raw)))
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", entry.Filename, err))
				continue
			}
		}

		acct, err := s.importRecord(ctx, raw)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", entry.Filename, err))
			continue
		}
		imported = append(imported, acct)
		log.Info("imported account",
			slog.String("account", acct.AccountName),
			slog.String("file", entry.Filename))
	}
	return imported, errors.Join(failures...)
}

// ExportFile writes one account as a plaintext .maFile.
func (s *MaFileService) ExportFile(ctx context.Context, accountName, path string) error {
	acct, err := s.Store.Accounts().Get(ctx, accountName)
	if err != nil {
		return fmt.Errorf("loading account %q: %w", accountName, err)
	}

	raw, err := json.MarshalIndent(domain.MaFileFrom(acct), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// ExportFolder writes every stored account into an SDA folder. With a
// non-empty passkey each file gets its own salt and IV and the manifest is
// marked encrypted.
func (s *MaFileService) ExportFolder(ctx context.Context, dir, passkey string) error {
	accounts, err := s.Store.Accounts().List(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	manifest := Manifest{Encrypted: passkey != ""}
	for _, acct := range accounts {
		raw, err := json.MarshalIndent(domain.MaFileFrom(acct), "", "  ")
		if err != nil {
			return err
		}

		entry := ManifestEntry{
			Filename: exportFilename(acct),
			SteamID:  json.Number(acct.SteamID),
		}

		out := raw
		if passkey != "" {
			salt, err := cryptox.NewSalt()
			if err != nil {
				return err
			}
			iv, err := cryptox.NewIV()
			if err != nil {
				return err
			}
			encrypted, err := cryptox.Encrypt(passkey, salt, iv, raw)
			if err != nil {
				return err
			}
			entry.EncryptionSalt = salt
			entry.EncryptionIV = iv
			out = []byte(encrypted)
		}

		if err := os.WriteFile(filepath.Join(dir, entry.Filename), out, 0o600); err != nil {
			return err
		}
		manifest.Entries = append(manifest.Entries, entry)
	}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o600)
}

func exportFilename(acct *domain.Account) string {
	if acct.SteamID != "" {
		return acct.SteamID + ".maFile"
	}
	return acct.AccountName + ".maFile"
}

func readManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, ErrNoManifest
		}
		return Manifest{}, err
	}

	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest.json: %w", err)
	}
	return manifest, nil
}
