package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Run event envelopes through the pipeline",
	Long: `Reads event envelopes as JSON from a file, or from stdin when no file is
given, and processes each one. The input may be a single envelope, a JSON
array of envelopes, or a stream of envelopes one after another.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading envelopes: %w", err)
	}
	envelopes, err := splitEnvelopes(data)
	if err != nil {
		return err
	}
	if len(envelopes) == 0 {
		return fmt.Errorf("no event envelopes in input")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var results []*pipeline.Execution
	for i, raw := range envelopes {
		ev, err := event.Decode(raw)
		if err != nil {
			return fmt.Errorf("envelope %d: %w", i+1, err)
		}
		exec, err := a.orch.ProcessEvent(ctx, ev)
		if err != nil {
			return fmt.Errorf("processing %s: %w", ev.ID, err)
		}
		results = append(results, exec)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// splitEnvelopes accepts one envelope, an array of envelopes, or a stream of
// concatenated envelopes.
func splitEnvelopes(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []json.RawMessage
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decoding envelope array: %w", err)
		}
		return out, nil
	}

	var out []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding envelope %d: %w", len(out)+1, err)
		}
		out = append(out, raw)
	}
}
