package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "plner",
		Short: "Polish entity extraction",
		Long: `plner finds persons, PESEL numbers, phone numbers, dates and
times in Polish text.

The rule based extractors always run. A NER model is used when
NER_MODEL_TYPE is set, with the same environment variables as the
API server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("env", "", "path to load env from")

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(scanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
