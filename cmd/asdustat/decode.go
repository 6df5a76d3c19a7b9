package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/asdustat/internal/report"
)

func newDecodeCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Render an MQTT or webhook report payload as text",
		Long: "Reads one encoded report from file, or stdin when no file is given, " +
			"and prints it in the same text layout as the console sink.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return decodeReport(in, cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(report.FormatJSON), "payload format (json|msgpack)")
	return cmd
}

func decodeReport(in io.Reader, out io.Writer, format string) error {
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	r, err := report.Decode(f, data)
	if err != nil {
		return err
	}
	return report.WriteText(out, r)
}
