package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gpv/internal/engine"
)

var promptKey int64

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the assembled master prompt",
	Long: `Concatenate the sub-prompts of a master prompt in member order and print
the result, each section headed by its type.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		var key *int64
		if cmd.Flags().Changed("key") {
			key = &promptKey
		}
		detail, err := engine.Info(cmd.Context(), database, key)
		if err != nil {
			return err
		}
		for _, sub := range detail.Subs {
			fmt.Printf("[%s]\n", sub.Type)
			fmt.Println(sub.Contents)
			fmt.Println()
		}
		return nil
	},
}

func init() {
	promptCmd.Flags().Int64Var(&promptKey, "key", 0, "master prompt id (default: current)")
}
