package keystore

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"github/chapool/ledger-provider/internal/util"
	"github/chapool/ledger-provider/internal/wallet/device"
	"golang.org/x/term"
)

const (
	minPasswordLength = 8
	entropyBits       = 256
)

// PasswordPrompt asks the operator for a secret.
type PasswordPrompt func(prompt string) (string, error)

// UnlockEmulator returns an emulator for the mnemonic in the keystore.
// This function handles:
// 1. Checking if the keystore exists
// 2. If not, generating a new 24 word mnemonic and prompting for a password
// 3. If it exists, prompting for the password to decrypt it
// 4. Verifying the password by comparing the derived account with the recorded one
func UnlockEmulator(ctx context.Context, ks Service, prompt PasswordPrompt, passphrase string, path string) (*device.Emulator, error) {
	log := util.LogFromContext(ctx).With().Str("component", "keystore").Logger()

	derivationPath, err := device.ParsePath(path)
	if err != nil {
		return nil, err
	}

	exists, err := ks.Exists(ctx)
	if err != nil {
		return nil, err
	}

	if !exists {
		log.Info().Str("path", ks.Path()).Msg("Keystore not found. Generating new mnemonic...")

		entropy, err := bip39.NewEntropy(entropyBits)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate entropy")
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate mnemonic")
		}

		password, err := promptNewPassword(prompt)
		if err != nil {
			return nil, err
		}

		emulator, err := device.NewEmulator(mnemonic, passphrase)
		if err != nil {
			return nil, err
		}
		address, err := emulator.GetAddress(derivationPath)
		if err != nil {
			return nil, err
		}

		if _, err := ks.CreateKeystore(ctx, mnemonic, password, address.Hex()); err != nil {
			return nil, errors.Wrap(err, "failed to create keystore")
		}

		log.Info().Str("address", address.Hex()).Msg("Emulator account created")
		return emulator, nil
	}

	log.Info().Str("path", ks.Path()).Msg("Keystore found. Please enter password to unlock...")

	password, err := prompt("Enter keystore password: ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read password")
	}

	mnemonic, keystoreJSON, err := ks.DecryptMnemonic(ctx, password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt keystore (invalid password?)")
	}

	emulator, err := device.NewEmulator(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	if err := verifyAccount(emulator, derivationPath, keystoreJSON); err != nil {
		return nil, err
	}

	log.Info().Msg("Keystore unlocked")
	return emulator, nil
}

// verifyAccount compares the account derived from the decrypted mnemonic with the one
// recorded at creation. A different passphrase or derivation path yields another account.
func verifyAccount(emulator *device.Emulator, path accounts.DerivationPath, keystoreJSON *KeystoreJSON) error {
	if keystoreJSON.Address == "" {
		return nil
	}

	address, err := emulator.GetAddress(path)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(keystoreJSON.Address) || common.HexToAddress(keystoreJSON.Address) != address {
		return errors.Errorf("account verification failed: derived %s, keystore records %s", address.Hex(), keystoreJSON.Address)
	}
	return nil
}

func promptNewPassword(prompt PasswordPrompt) (string, error) {
	password, err := prompt(fmt.Sprintf("Enter password for keystore (min %d characters): ", minPasswordLength))
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}
	if len(password) < minPasswordLength {
		return "", errors.Errorf("password must be at least %d characters", minPasswordLength)
	}

	passwordConfirm, err := prompt("Confirm password: ")
	if err != nil {
		return "", errors.Wrap(err, "failed to read password confirmation")
	}
	if password != passwordConfirm {
		return "", errors.New("passwords do not match")
	}

	return password, nil
}

// PromptPassword prompts for password input on the terminal (hides input)
//
//nolint:forbidigo // Password input requires direct terminal I/O
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password from terminal (hides input)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // syscall.Stdin is not an int on every platform
	if err != nil {
		return "", errors.Wrap(err, "failed to read password from terminal")
	}

	fmt.Fprintln(os.Stderr) // New line after password input

	return string(passwordBytes), nil
}

// StaticPassword returns a prompt that always answers password, for non-interactive use.
func StaticPassword(password string) PasswordPrompt {
	return func(string) (string, error) {
		return password, nil
	}
}
