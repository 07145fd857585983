package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldsim",
		Short: "OMRON FINS and Mitsubishi MC PLC simulators",
		Long: `FIELDSIM emulates the memory of industrial PLCs over their native
protocols: OMRON FINS over UDP and Mitsubishi MC (3E binary frames) over
TCP. A background process model keeps the memory moving so polling
clients see live values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newFINSCmd())
	rootCmd.AddCommand(newMelsecCmd())
	rootCmd.AddCommand(newValidateConfigCmd())
	rootCmd.AddCommand(newPrintDefaultConfigCmd())

	return rootCmd
}
