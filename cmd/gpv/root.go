package main

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"gpv/internal/config"
	"gpv/internal/db"
)

var (
	workDir    string
	formatFlag string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gpv",
	Short: "Version control for prompts assembled from .j2 sub-prompt files",
	Long: `gpv versions a master prompt assembled from jinja2 sub-prompt template
files. Sub-prompts live as <prefix>_<type>.j2 files in the working directory,
ordered by their numeric prefix; the database location is read from the .gpv
pointer file in the same directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workDir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			workDir = cwd
		}
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", "", "working directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "", "output format: json, table, plain or quiet")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(initCmd, commitCmd, uncommitCmd, infoCmd, promptCmd, extractCmd)
}

func openDB() (*sql.DB, error) {
	path, err := config.DBPath(workDir)
	if err != nil {
		return nil, err
	}
	return db.Open(path)
}

// confirm asks a y/N question on the terminal. Non-interactive invocations
// must pass the command's --yes flag instead.
func confirm(question string) (bool, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false, errors.New("confirmation required; re-run with --yes")
	}
	fmt.Printf("%s [y/N]: ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}
