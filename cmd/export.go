package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every directory record to a JSON or CSV snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		env, err := initDirectory()
		if err != nil {
			return err
		}
		records, err := env.Directory.All(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "load records")
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrap(err, "create export file")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if err := export.Write(w, format, records); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("format", string(format)),
			zap.Int("records", len(records)),
			zap.String("out", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json or csv")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
