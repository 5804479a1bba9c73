package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gpv/internal/cli/output"
	"gpv/internal/db"
	"gpv/internal/engine"
)

var uncommitYes bool

var uncommitCmd = &cobra.Command{
	Use:   "uncommit",
	Short: "Revert the current master prompt to its predecessor",
	Long: `Delete the current master prompt, restore its parent as current and prune
the sub-prompts that only the reverted master referenced. Irreversible.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		// The engine owns the precondition errors; the current master is only
		// loaded here to render the confirmation message.
		if !uncommitYes {
			current, err := db.GetCurrentMaster(cmd.Context(), database)
			if err != nil {
				return err
			}
			if current != nil && current.ParentID != nil {
				fmt.Printf("Uncommit will revert from master %d to %d. This is irreversible.\n",
					current.ID, *current.ParentID)
				ok, err := confirm("Proceed?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}
		}

		res, err := engine.Uncommit(cmd.Context(), database)
		if err != nil {
			return err
		}
		return output.Print(map[string]any{
			"reverted_id":           res.RevertedID,
			"id":                    res.RestoredID,
			"version":               res.RestoredVersion,
			"pruned_sub_prompt_ids": res.PrunedSubIDs,
		}, formatFlag, false)
	},
}

func init() {
	uncommitCmd.Flags().BoolVar(&uncommitYes, "yes", false, "skip the confirmation prompt")
}
