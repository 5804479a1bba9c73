package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gpv/internal/cli/output"
	"gpv/internal/engine"
	"gpv/internal/scan"
	"gpv/internal/template"
)

var (
	commitMessage    string
	commitNoValidate bool
	commitBranches   []string
)

var commitCmd = &cobra.Command{
	Use:   "commit [path]...",
	Short: "Commit sub-prompts and create a new master prompt",
	Long: `Commit sub-prompt files and create a new current master prompt. With no
paths the whole working directory is scanned (full commit); with explicit
paths only those files are committed (partial commit). Branch overrides force
branch versioning from a chosen parent revision.`,
	RunE: runCommit,
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message (required)")
	commitCmd.Flags().BoolVar(&commitNoValidate, "no-validate", false, "skip jinja2 syntax validation")
	commitCmd.Flags().StringArrayVar(&commitBranches, "branch", nil,
		"branch override PARENT_ID:PATH; repeatable, implies a partial commit of the named paths")
	_ = commitCmd.MarkFlagRequired("message")
}

func runCommit(cmd *cobra.Command, args []string) error {
	workingSet, err := scan.Dir(workDir)
	if err != nil {
		return err
	}
	if err := scan.ValidatePrefixes(workingSet); err != nil {
		return err
	}

	branchParents := make(map[string]int64)
	var paths []string
	for _, pair := range commitBranches {
		idPart, pathPart, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("invalid --branch value %q: expected PARENT_ID:PATH", pair)
		}
		parentID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid --branch parent id %q", idPart)
		}
		resolved := pathPart
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(workDir, resolved)
		}
		branchParents[filepath.Clean(resolved)] = parentID
		paths = append(paths, pathPart)
	}
	paths = append(paths, args...)

	full := len(paths) == 0
	var candidates []scan.File
	if full {
		candidates = workingSet
	} else {
		for _, p := range paths {
			f, err := scan.Load(workDir, p)
			if err != nil {
				return err
			}
			candidates = append(candidates, f)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	}

	req := engine.CommitRequest{
		Message:       commitMessage,
		Candidates:    candidates,
		WorkingSet:    workingSet,
		Full:          full,
		BranchParents: branchParents,
	}
	if !commitNoValidate {
		req.ValidateTemplate = template.Validate
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	res, err := engine.Commit(cmd.Context(), database, req)
	if err != nil {
		return err
	}
	if res.NoChanges {
		fmt.Println("Nothing to commit. No changes detected.")
		return nil
	}

	created := make([]any, 0, len(res.Created))
	for _, c := range res.Created {
		created = append(created, map[string]any{
			"id": c.ID, "type": c.Type, "version": c.Version, "branched": c.Branched,
		})
	}
	return output.Print(map[string]any{
		"id":       res.MasterID,
		"version":  res.Version,
		"created":  created,
		"branched": res.Branched,
	}, formatFlag, false)
}
