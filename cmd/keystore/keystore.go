package keystore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/config"
	"github/chapool/ledger-provider/internal/util"
	"github/chapool/ledger-provider/internal/util/command"
	"github/chapool/ledger-provider/internal/wallet/device"
	"github/chapool/ledger-provider/internal/wallet/keystore"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("keystore",
		newCreate(),
		newAddress(),
	)
}

func newCreate() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Generates a mnemonic for the emulator backend and stores it encrypted",
		Long: `Generates a 24 word mnemonic, asks for a password and writes the encrypted
keystore to BRIDGE_DEVICE_KEYSTORE. The emulator backend signs with it when no
mnemonic is configured. Refuses to overwrite an existing keystore.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, ks, err := load(cmd)
			if err != nil {
				return err
			}

			exists, err := ks.Exists(cmd.Context())
			if err != nil {
				return err
			}
			if exists {
				return errors.Errorf("keystore %s already exists", ks.Path())
			}

			return printAddress(cmd, cfg, ks)
		},
	}
}

func newAddress() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Unlocks the keystore and prints its account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, ks, err := load(cmd)
			if err != nil {
				return err
			}

			exists, err := ks.Exists(cmd.Context())
			if err != nil {
				return err
			}
			if !exists {
				return errors.Errorf("keystore %s not found, run keystore create first", ks.Path())
			}

			return printAddress(cmd, cfg, ks)
		},
	}
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func load(cmd *cobra.Command) (config.Server, keystore.Service, error) {
	configFile, _ := cmd.Flags().GetString(command.ConfigFlag)

	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Server{}, nil, err
	}
	util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	if cfg.Device.Keystore == "" {
		return config.Server{}, nil, errors.New("no keystore path configured, set BRIDGE_DEVICE_KEYSTORE")
	}

	return cfg, keystore.NewService(cfg.Device.Keystore, keystore.DefaultScryptParams()), nil
}

func printAddress(cmd *cobra.Command, cfg config.Server, ks keystore.Service) error {
	prompt := keystore.PromptPassword
	if cfg.Device.KeystorePassword != "" {
		prompt = keystore.StaticPassword(cfg.Device.KeystorePassword)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	emulator, err := keystore.UnlockEmulator(ctx, ks, prompt, cfg.Device.Passphrase, cfg.Device.DerivationPath)
	if err != nil {
		return err
	}

	path, err := device.ParsePath(cfg.Device.DerivationPath)
	if err != nil {
		return err
	}
	address, err := emulator.GetAddress(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", path.String(), address.Hex())
	return nil
}
