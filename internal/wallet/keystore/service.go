package keystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github/chapool/ledger-provider/internal/util"
)

const filePerm = 0o600

type service struct {
	path   string
	params *ScryptParams
}

// NewService creates a keystore service for the file at path
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(path string, params *ScryptParams) Service {
	if params == nil {
		params = DefaultScryptParams()
	}
	return &service{
		path:   path,
		params: params,
	}
}

func (s *service) Path() string {
	return s.path
}

// CreateKeystore creates and encrypts a mnemonic to keystore
func (s *service) CreateKeystore(ctx context.Context, mnemonic string, password string, address string) (*KeystoreJSON, error) {
	log := util.LogFromContext(ctx)

	// Check if keystore already exists
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check keystore existence")
	}
	if exists {
		return nil, errors.Errorf("keystore %s already exists", s.path)
	}

	// Encrypt mnemonic
	keystoreJSON, err := encryptMnemonic(mnemonic, password, s.params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encrypt mnemonic")
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}
	keystoreJSON.Address = address

	data, err := json.MarshalIndent(keystoreJSON, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal keystore JSON")
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "failed to create keystore directory")
		}
	}
	if err := os.WriteFile(s.path, data, filePerm); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to write keystore")
		return nil, errors.Wrap(err, "failed to write keystore")
	}

	log.Info().Str("path", s.path).Str("id", keystoreJSON.ID).Msg("Keystore created")

	return keystoreJSON, nil
}

// DecryptMnemonic decrypts mnemonic from keystore
func (s *service) DecryptMnemonic(ctx context.Context, password string) (string, *KeystoreJSON, error) {
	log := util.LogFromContext(ctx)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to read keystore")
	}

	// Parse keystore JSON
	var keystoreJSON KeystoreJSON
	if err := json.Unmarshal(data, &keystoreJSON); err != nil {
		return "", nil, errors.Wrap(err, "failed to unmarshal keystore JSON")
	}

	// Decrypt mnemonic
	mnemonic, err := decryptMnemonic(&keystoreJSON, password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decrypt mnemonic")
		return "", nil, errors.Wrap(err, "failed to decrypt mnemonic")
	}

	return mnemonic, &keystoreJSON, nil
}

// Exists checks if keystore exists
func (s *service) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrap(err, "failed to stat keystore")
}
