package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the configuration after merging defaults, the config file, TRIAD_* variables and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			asYAML, _ := cmd.Flags().GetBool("yaml")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				printJSON(out, cfg)
				return nil
			}
			if asYAML {
				data, err := cfg.YAML()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			fmt.Fprintln(out, "Effective Configuration")
			fmt.Fprintln(out, "=======================")
			fmt.Fprintf(out, "  Database:        %s\n", cfg.Database.Path)
			fmt.Fprintf(out, "  Sink:            %s\n", cfg.Sink.Kind)
			if cfg.Sink.BadgerDir != "" {
				fmt.Fprintf(out, "  Badger Dir:      %s\n", cfg.Sink.BadgerDir)
			}
			fmt.Fprintf(out, "  Eager Stream:    %v\n", cfg.Stream.Eager)
			fmt.Fprintf(out, "  Stop After:      %d\n", cfg.Run.StopAfter)
			fmt.Fprintf(out, "  Progress Every:  %d\n", cfg.Run.ProgressEvery)
			fmt.Fprintf(out, "  Log:             %s (%s)\n", cfg.Log.Level, cfg.Log.Format)
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "\ninvalid: %v\n", err)
			}
			return nil
		},
	}
	showCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	showCmd.Flags().BoolP("yaml", "y", false, "Output as YAML")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}

	configCmd.AddCommand(showCmd, validateCmd)
	return configCmd
}
