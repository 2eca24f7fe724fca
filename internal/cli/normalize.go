package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/golden/canon"
	"github.com/roach88/golden/internal/config"
	"github.com/roach88/golden/transform"
)

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	var pipelineFile string

	cmd := &cobra.Command{
		Use:   "normalize <input.json>",
		Short: "Run a pipeline file over a JSON document",
		Long: `Normalize a JSON document with the transformers declared in a YAML or
CUE pipeline file and print the canonical result, as it would be
recorded in a snapshot file. Use "-" to read the document from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(rootOpts, args[0], pipelineFile, cmd)
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "pipeline", "p", "", "pipeline file (.yaml or .cue)")
	_ = cmd.MarkFlagRequired("pipeline")

	return cmd
}

func runNormalize(opts *RootOptions, input, pipelineFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	p, err := config.LoadPipeline(pipelineFile)
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), err.Error(), nil)
	}
	formatter.VerboseLog("Loaded pipeline %s: %v", pipelineFile, p.Pipeline.Names())

	var data []byte
	if input == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), fmt.Sprintf("read input: %v", err), nil)
	}

	doc, err := canon.Unmarshal(data)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInput, fmt.Sprintf("%s: %v", input, err), nil)
	}
	doc = transform.ExpandJSONObjects(doc)

	out, err := p.Pipeline.WithLogger(opts.Logger()).Apply(doc)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	encoded, err := canon.Marshal(out)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	_, err = formatter.Writer.Write(encoded)
	return err
}
