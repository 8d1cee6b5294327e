package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"medgate/internal/assets"
	"medgate/internal/config"
)

func newConfigCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
		Args:  cobra.NoArgs,
	}
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			b, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = stdout.Write(b)
			return err
		},
	}
	addOverrideFlags(printCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(stderr, "invalid config:\n%v\n", err)
				return errExit
			}
			if ok, _ := cmd.Flags().GetBool("assets"); ok {
				if err := checkAssets(cmd.Context(), cfg); err != nil {
					fmt.Fprintf(stderr, "assets: %v\n", err)
					return errExit
				}
			}
			fmt.Fprintln(stdout, "config ok")
			return nil
		},
	}
	addOverrideFlags(checkCmd)
	checkCmd.Flags().Bool("assets", false, "Also verify that the tokenizer and chat template exist")

	cmd.AddCommand(printCmd, checkCmd)
	return cmd
}

func checkAssets(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	names := []string{cfg.Tokenizer}
	if cfg.ChatTemplate != "" {
		names = append(names, cfg.ChatTemplate)
	}
	for _, name := range names {
		loc, err := assets.Resolve(cfg.AssetsDir, name)
		if err != nil {
			return err
		}
		ok, err := assets.Exists(ctx, loc)
		if err != nil {
			return fmt.Errorf("%s: %w", loc, err)
		}
		if !ok {
			return fmt.Errorf("%s: not found", loc)
		}
	}
	return nil
}
