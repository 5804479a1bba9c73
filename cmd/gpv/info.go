package main

import (
	"github.com/spf13/cobra"

	"gpv/internal/cli/output"
	"gpv/internal/engine"
)

var infoKey int64

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show a master prompt and its sub-prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		var key *int64
		if cmd.Flags().Changed("key") {
			key = &infoKey
		}
		detail, err := engine.Info(cmd.Context(), database, key)
		if err != nil {
			return err
		}
		return output.Print(masterPayload(detail), formatFlag, false)
	},
}

func init() {
	infoCmd.Flags().Int64Var(&infoKey, "key", 0, "master prompt id (default: current)")
}

func masterPayload(detail *engine.MasterDetail) map[string]any {
	subs := make([]any, 0, len(detail.Subs))
	for _, sub := range detail.Subs {
		subs = append(subs, map[string]any{
			"id": sub.ID, "type": sub.Type, "version": sub.Version,
		})
	}
	return map[string]any{
		"id":             detail.Master.ID,
		"version":        detail.Master.Version,
		"commit_message": detail.Master.CommitMessage,
		"created_at":     detail.Master.CreatedAt,
		"is_current":     detail.Master.IsCurrent,
		"sub_prompts":    subs,
	}
}
