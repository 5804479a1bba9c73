package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gpv/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the gpv tables in the target database",
	Long: `Resolve the database path from the .gpv pointer file and create the
sub_prompts and master_prompts tables. Fails if either table already exists.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.InitSchema(cmd.Context(), database); err != nil {
			return err
		}
		fmt.Println("initialized gpv schema")
		return nil
	},
}
