package tx

import (
	"github.com/spf13/cobra"
	"github/chapool/ledger-provider/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("tx",
		newSend(),
		newStatus(),
	)
}
