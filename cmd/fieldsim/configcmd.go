package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tturner/fieldsim/internal/config"
	"github.com/tturner/fieldsim/internal/errors"
)

func newValidateConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Check a config file for structural errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if _, err := config.Load(configPath); err != nil {
				return errors.WrapConfigError(err, configPath)
			}
			fmt.Fprintf(os.Stdout, "%s: OK\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file to validate")
	return cmd
}

func newPrintDefaultConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-default-config",
		Short: "Print the built-in default configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(config.CreateDefault())
			if err != nil {
				return fmt.Errorf("marshal default config: %w", err)
			}
			os.Stdout.Write(out)
			return nil
		},
	}
}
