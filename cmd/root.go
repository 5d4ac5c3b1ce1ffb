package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/cmd/account"
	"github/chapool/ledger-provider/cmd/env"
	"github/chapool/ledger-provider/cmd/keystore"
	"github/chapool/ledger-provider/cmd/probe"
	"github/chapool/ledger-provider/cmd/server"
	"github/chapool/ledger-provider/cmd/sign"
	"github/chapool/ledger-provider/cmd/tx"
	"github/chapool/ledger-provider/internal/config"
	"github/chapool/ledger-provider/internal/util/command"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "ledger-provider",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

An Ethereum wallet provider backed by a Ledger hardware signer.
Configured through a config file, .env or BRIDGE_* environment variables.`, config.ModuleName),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().String(command.ConfigFlag, "", "path to a config file (yaml, json or toml)")

	// attach the subcommands
	rootCmd.AddCommand(
		account.New(),
		env.New(),
		keystore.New(),
		probe.New(),
		server.New(),
		sign.New(),
		tx.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
