package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Load and flatten a topology, reporting the first error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}

			var processors, exchanges, modules int
			for range df.Processors() {
				processors++
			}
			for range df.Exchanges() {
				exchanges++
			}
			for range df.Bindings() {
				modules++
			}
			fmt.Fprintf(a.stdout, "%s: ok (%d processors, %d exchanges, %d modules)\n",
				args[0], processors, exchanges, modules)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <file>",
		Short: "List processors with their exchanges, then exchanges with their transports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROCESSOR\tRECEIVES FROM\tSENDS TO")
			for proc := range df.Processors() {
				inputs, err := df.Inputs(proc)
				if err != nil {
					return err
				}
				outputs, err := df.Outputs(proc)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", proc, joinKeys(inputs), joinKeys(outputs))
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "EXCHANGE\tTRANSPORT")
			for key, cfg := range df.Exchanges() {
				fmt.Fprintf(tw, "%s\t%s\n", key, cfg)
			}
			return tw.Flush()
		},
	}
}

func joinKeys[T fmt.Stringer](keys []T) string {
	if len(keys) == 0 {
		return "-"
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

func newDotCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "dot <file>",
		Short: "Export the flattened topology as a GraphViz digraph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return df.WriteDOT(a.stdout)
			}
			if err := df.SaveDOT(output); err != nil {
				return err
			}
			a.logger.Info("wrote GraphViz file", "path", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
