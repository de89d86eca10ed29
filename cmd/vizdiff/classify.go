package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vizdiff/vizdiff/internal/discovery"
	"github.com/vizdiff/vizdiff/pkg/classify"
)

func newClassifyCmd() *cobra.Command {
	var (
		configPath  string
		changedPath string
		baseURL     string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show the test scope a change set would produce",
		Long: `Fetches the component catalog from a deployed site and runs the
classification rules against a changed-file list, printing the resulting
scope and component selection without capturing anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.Context(), configPath, changedPath, baseURL)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: nearest .vizdiff/config.yaml)")
	cmd.Flags().StringVar(&changedPath, "changed-files", "-", "File with newline-delimited changed paths, or - for stdin")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Deployed site to fetch the component catalog from (required)")
	_ = cmd.MarkFlagRequired("base-url")

	return cmd
}

func runClassify(ctx context.Context, configPath, changedPath, baseURL string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	changed, err := readChangedFiles(changedPath)
	if err != nil {
		return err
	}

	catalog, err := discovery.NewClient().Discover(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("discover components: %w", err)
	}

	cls := classify.New(cfg.Rules).Classify(catalog, changed, classify.Options{})
	fmt.Printf("Scope: %s\n", cls.Scope)
	if len(cls.Components) > 0 {
		fmt.Printf("Components (%d):\n", len(cls.Components))
		for _, comp := range cls.Components {
			fmt.Printf("  %s (%s)\n", comp.ID, comp.Name)
		}
	}
	return nil
}
