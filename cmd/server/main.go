package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rwaledger/internal/platform/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type configLoader func() (config.Config, error)

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "rwaledger",
		Short:         "Verification, approval and evolution ledger for tokenized real-world assets",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")

	load := func() (config.Config, error) {
		return config.Load(configFile)
	}
	root.AddCommand(
		newServeCmd(load),
		newSeedCmd(load),
		newTokenCmd(load),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
