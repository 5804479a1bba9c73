// Package output renders command payloads in the selected format. The
// default is table for terminals and json for pipes.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

func DefaultFormat() string {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return "table"
	}
	return "json"
}

func Print(payload map[string]any, format string, quiet bool) error {
	if quiet {
		format = "quiet"
	}
	format = strings.TrimSpace(strings.ToLower(format))
	if format == "" {
		format = DefaultFormat()
	}

	switch format {
	case "json":
		return printJSON(payload)
	case "table":
		return printTable(payload)
	case "plain":
		return printPlain(payload)
	case "quiet":
		return printQuiet(payload)
	default:
		return errors.New("invalid --format value")
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printTable(payload map[string]any) error {
	switch {
	case hasKey(payload, "sub_prompts"):
		fmt.Printf("id: %s\n", str(payload["id"]))
		fmt.Printf("version: %s\n", str(payload["version"]))
		fmt.Printf("commit_message: %s\n", str(payload["commit_message"]))
		fmt.Printf("created_at: %s\n", str(payload["created_at"]))
		fmt.Printf("is_current: %s\n", str(payload["is_current"]))
		fmt.Println("sub_prompts:")
		for _, row := range toObjectSlice(payload["sub_prompts"]) {
			fmt.Printf("  - id=%s type=%s version=%s\n",
				str(row["id"]), str(row["type"]), str(row["version"]))
		}
	case hasKey(payload, "created"):
		fmt.Printf("committed master %s (version %s)\n", str(payload["id"]), str(payload["version"]))
		for _, row := range toObjectSlice(payload["created"]) {
			fmt.Printf("  + sub-prompt %s type=%s version=%s\n",
				str(row["id"]), str(row["type"]), str(row["version"]))
		}
		if branched := toStringSlice(payload["branched"]); len(branched) > 0 {
			fmt.Printf("branched: %s\n", strings.Join(branched, ", "))
		}
	case hasKey(payload, "reverted_id"):
		fmt.Printf("reverted master %s; master %s (version %s) is current again\n",
			str(payload["reverted_id"]), str(payload["id"]), str(payload["version"]))
	default:
		return printJSON(payload)
	}
	return nil
}

func printPlain(payload map[string]any) error {
	switch {
	case hasKey(payload, "sub_prompts"):
		fmt.Printf("%s %s\n", str(payload["id"]), str(payload["version"]))
		for _, row := range toObjectSlice(payload["sub_prompts"]) {
			fmt.Printf("%s %s %s\n", str(row["id"]), str(row["type"]), str(row["version"]))
		}
	case hasKey(payload, "created"):
		fmt.Printf("%s %s\n", str(payload["id"]), str(payload["version"]))
	case hasKey(payload, "reverted_id"):
		fmt.Printf("%s %s\n", str(payload["id"]), str(payload["version"]))
	default:
		return printJSON(payload)
	}
	return nil
}

func printQuiet(payload map[string]any) error {
	if id, ok := payload["id"]; ok {
		fmt.Println(str(id))
		return nil
	}
	return printJSON(payload)
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func toObjectSlice(v any) []map[string]any {
	in, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(in))
	for _, item := range in {
		if row, ok := item.(map[string]any); ok {
			out = append(out, row)
		}
	}
	return out
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, str(item))
		}
		return out
	default:
		return nil
	}
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
