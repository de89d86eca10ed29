// Package main provides the vizdiff CLI entry point.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vizdiff/vizdiff/pkg/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vizdiff",
		Short: "Visual regression testing for documentation sites",
		Long: `Vizdiff classifies pull request changes, captures before/after screenshots
of affected components through a rendering worker, diffs them pixel by pixel,
and publishes an annotated report back to the pull request.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newClassifyCmd(),
		newCompareCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the rules file: an explicit path wins, otherwise the
// nearest .vizdiff/config.yaml walking up from the working directory.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = config.FindConfigFile(wd)
	}
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// readChangedFiles loads a newline-delimited path list; "-" reads stdin.
func readChangedFiles(path string) ([]string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading changed files: %w", err)
	}

	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}
