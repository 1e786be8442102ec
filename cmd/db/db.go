package db

import (
	"github.com/spf13/cobra"

	"github.com/escion333/autoUSD-sub000/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("db",
		newMigrate(),
		newPing(),
	)
}
