package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vizdiff/vizdiff/pkg/imagediff"
)

func newCompareCmd() *cobra.Command {
	var (
		threshold float64
		alpha     float64
		diffOut   string
	)

	cmd := &cobra.Command{
		Use:   "compare BEFORE AFTER",
		Short: "Diff two local PNG screenshots",
		Long:  `Compares two PNG files pixel by pixel and prints the change metrics.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(args[0], args[1], threshold, alpha, diffOut)
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", imagediff.DefaultThreshold, "Per-pixel perceptual difference threshold in [0,1]")
	cmd.Flags().Float64Var(&alpha, "alpha", imagediff.DefaultHighlightAlpha, "Highlight blend factor for the diff raster")
	cmd.Flags().StringVar(&diffOut, "out", "", "Write the highlighted diff raster to this path")

	return cmd
}

func runCompare(beforePath, afterPath string, threshold, alpha float64, diffOut string) error {
	res, err := imagediff.CompareFiles(beforePath, afterPath, imagediff.Options{
		Threshold:      threshold,
		HighlightAlpha: alpha,
	})
	if err != nil {
		return err
	}

	if !res.Changed {
		fmt.Println("No difference detected")
		return nil
	}

	fmt.Printf("Changed: %d px (%.2f%%)\n", res.DiffPixels, res.DiffPercent)
	if diffOut != "" && res.Diff != nil {
		if err := imagediff.WritePNG(diffOut, res.Diff); err != nil {
			return err
		}
		fmt.Printf("Diff raster written to %s\n", diffOut)
	}
	return nil
}
