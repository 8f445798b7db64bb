package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/flowgraph"
)

// app carries what every subcommand needs once the root flags are parsed.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logFormat string
	logger    *slog.Logger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "flowctl",
		Short: "Inspect dataflow topologies and exchange messages through them",
		Long: `flowctl loads a dataflow topology document, including every module it
mounts, and works with the flattened graph: validating it, listing processors
and exchanges, exporting it to GraphViz, checking that transports are
reachable, and sending or receiving messages as one of its processors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.logLevel, a.logFormat, a.stderr)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text",
		"Log format: json, text")

	root.AddCommand(
		newValidateCmd(a),
		newListCmd(a),
		newDotCmd(a),
		newCheckCmd(a),
		newSendCmd(a),
		newRecvCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, path string) (*flowgraph.Dataflow, error) {
	return flowgraph.Open(cmd.Context(), path, flowgraph.WithLogger(a.logger))
}
