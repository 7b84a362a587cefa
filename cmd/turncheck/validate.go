package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ragchat-backend/internal/models"

	"github.com/spf13/cobra"
)

// newValidateCmd creates the validate command.
func newValidateCmd() *cobra.Command {
	var opts struct {
		Quiet bool
	}

	cmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check chat turns against the message contract",
		Long: "Reads a JSON object (one turn) or a JSON array (a conversation) from each file, " +
			"or from stdin when no file is given, and reports every turn that violates the contract.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			violations := 0

			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				violations += report(out, "<stdin>", data, opts.Quiet)
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				violations += report(out, path, data, opts.Quiet)
			}

			if violations > 0 {
				return fmt.Errorf("validation failed: %d violation(s)", violations)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print violations")
	return cmd
}

// report checks one document and prints its findings. It returns the number of violations.
func report(out io.Writer, name string, data []byte, quiet bool) int {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if _, err := models.ParseChatMessage(trimmed); err != nil {
			fmt.Fprintf(out, "%s: %v\n", name, err)
			return 1
		}
		if !quiet {
			fmt.Fprintf(out, "%s: ok (1 turn)\n", name)
		}
		return 0
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		fmt.Fprintf(out, "%s: not a JSON array of turns: %v\n", name, err)
		return 1
	}

	violations := 0
	for i, item := range items {
		if _, err := models.ParseChatMessage(item); err != nil {
			fmt.Fprintf(out, "%s: messages[%d]: %v\n", name, i, err)
			violations++
		}
	}
	if violations == 0 && !quiet {
		fmt.Fprintf(out, "%s: ok (%d turns)\n", name, len(items))
	}
	return violations
}
