//go:build !(js || wasm)

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aivi-lang/aivi/cmd"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "aivi [subcommand]",
	Short:             "aivi checks AIVI modules and prints their typed kernel",
	Args:              cobra.MinimumNArgs(1),
	PersistentPreRunE: cmd.Configure,
	SilenceUsage:      true,
}

func init() {
	cmd.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(cmd.NewCheckCmd())
	rootCmd.AddCommand(cmd.NewKernelCmd())
}
