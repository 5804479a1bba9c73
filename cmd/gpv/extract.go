package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gpv/internal/engine"
)

var (
	extractKey int64
	extractYes bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write a master prompt's sub-prompts back to .j2 files",
	Long: `Materialize the sub-prompts of a master prompt as <prefix>_<type>.j2 files
in the working directory. Prefixes restart from 1 in member order; existing
files are only overwritten after confirmation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		var key *int64
		if cmd.Flags().Changed("key") {
			key = &extractKey
		}
		detail, err := engine.Info(cmd.Context(), database, key)
		if err != nil {
			return err
		}
		files := engine.ExtractFiles(detail)

		var existing []string
		for _, f := range files {
			if _, err := os.Stat(filepath.Join(workDir, f.Name)); err == nil {
				existing = append(existing, f.Name)
			}
		}
		if len(existing) > 0 && !extractYes {
			fmt.Printf("The following files would be overwritten: %s\n", strings.Join(existing, ", "))
			ok, err := confirm("Proceed?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		for _, f := range files {
			if err := os.WriteFile(filepath.Join(workDir, f.Name), []byte(f.Contents), 0o644); err != nil {
				return err
			}
		}
		fmt.Printf("extracted %d sub-prompt files from master %d\n", len(files), detail.Master.ID)
		return nil
	},
}

func init() {
	extractCmd.Flags().Int64Var(&extractKey, "key", 0, "master prompt id (default: current)")
	extractCmd.Flags().BoolVar(&extractYes, "yes", false, "overwrite existing files without asking")
}
