package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/flowgraph"
	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		to    string
		lines bool
	)

	cmd := &cobra.Command{
		Use:   "send <file> <processor>",
		Short: "Send stdin as a processor's output",
		Long: `send builds the sender of the given processor and sends stdin through it,
as one message or, with --lines, one message per line. Use --to when the
processor sends to more than one exchange.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			proc, err := ns.NewIdent(args[1])
			if err != nil {
				return err
			}

			var tx link.Sender
			if to != "" {
				key, err := ns.ParseKey(to)
				if err != nil {
					return err
				}
				tx, err = df.BuildSenderTo(cmd.Context(), proc, key)
				if err != nil {
					return err
				}
			} else {
				tx, err = df.BuildSender(cmd.Context(), proc)
				if err != nil {
					return err
				}
			}
			defer flowgraph.CloseWithLog(tx, a.logger, "sender")

			if !lines {
				data, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				if err := tx.Send(cmd.Context(), data); err != nil {
					return err
				}
				a.logger.Info("sent message", "processor", proc, "size", len(data))
				return nil
			}

			scanner := bufio.NewScanner(a.stdin)
			scanner.Buffer(make([]byte, 64*1024), maxLineSize)
			n, err := link.SendAll(cmd.Context(), tx, scanLines(scanner))
			if err != nil {
				return err
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			a.logger.Info("sent messages", "processor", proc, "count", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Exchange key to send to")
	cmd.Flags().BoolVar(&lines, "lines", false, "Send each line of stdin as a separate message")
	return cmd
}

const maxLineSize = 16 * 1024 * 1024

// scanLines yields a copy of every line of scanner. Scan errors are left
// for the caller to read from scanner.Err.
func scanLines(scanner *bufio.Scanner) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for scanner.Scan() {
			if !yield(bytes.Clone(scanner.Bytes())) {
				return
			}
		}
	}
}

func newRecvCmd(a *app) *cobra.Command {
	var (
		from  string
		count int
	)

	cmd := &cobra.Command{
		Use:   "recv <file> <processor>",
		Short: "Write a processor's input to stdout, one message per line",
		Long: `recv builds the receiver of the given processor and writes every message it
yields to stdout followed by a newline, until the exchange reports the end of
the stream, --count messages were received, or flowctl is interrupted. Use
--from when the processor receives from more than one exchange.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			proc, err := ns.NewIdent(args[1])
			if err != nil {
				return err
			}

			var rx link.Receiver
			if from != "" {
				key, err := ns.ParseKey(from)
				if err != nil {
					return err
				}
				rx, err = df.BuildReceiverFrom(cmd.Context(), proc, key)
				if err != nil {
					return err
				}
			} else {
				rx, err = df.BuildReceiver(cmd.Context(), proc)
				if err != nil {
					return err
				}
			}
			defer flowgraph.CloseWithLog(rx, a.logger, "receiver")

			out := bufio.NewWriter(a.stdout)
			received := 0
			for payload, err := range link.Messages(cmd.Context(), rx) {
				if err != nil {
					if cmd.Context().Err() != nil {
						break
					}
					return err
				}
				out.Write(payload)
				out.WriteByte('\n')
				if err := out.Flush(); err != nil {
					return err
				}
				received++
				if count > 0 && received >= count {
					break
				}
			}
			a.logger.Info("received messages", "processor", proc, "count", received)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Exchange key to receive from")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many messages (0 means no limit)")
	return cmd
}
