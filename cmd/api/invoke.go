package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
)

var (
	invokePrompt string
	invokeSchema string
	invokeTenant string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Send one structured request and print the validated result",
	Long: `Sends --prompt with the JSON schema read from --schema ("-" reads stdin)
and prints the validated object. Invalid responses print the violations and
the raw payload, and exit non-zero.

Example:
  automaton-insight invoke --prompt "rate the last deploy" --schema score.json`,
	Args: cobra.NoArgs,
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringVarP(&invokePrompt, "prompt", "p", "", "prompt text")
	invokeCmd.Flags().StringVarP(&invokeSchema, "schema", "s", "", "path to the response JSON schema")
	invokeCmd.Flags().StringVar(&invokeTenant, "tenant", "cli", "tenant recorded on the run")
	_ = invokeCmd.MarkFlagRequired("prompt")
	_ = invokeCmd.MarkFlagRequired("schema")
}

func runInvoke(cmd *cobra.Command, _ []string) error {
	s, err := readSchema(cmd.InOrStdin(), invokeSchema)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Invoke(ctx, domain.Request{TenantID: invokeTenant, Prompt: invokePrompt, Schema: s})
	out := cmd.OutOrStdout()
	if err != nil {
		var rf *domain.RequestFailed
		if errors.As(err, &rf) && len(rf.Violations) > 0 {
			_ = printJSON(out, map[string]any{
				"error":      err.Error(),
				"kind":       rf.Kind,
				"violations": rf.Violations,
				"payload":    string(rf.Payload),
			})
		}
		return err
	}
	return printJSON(out, res)
}

func readSchema(stdin io.Reader, path string) (*schema.Schema, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return schema.Parse(raw)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
