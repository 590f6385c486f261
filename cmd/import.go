package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/fetcher"
	"github.com/referral-os/directory/internal/imports"
)

var (
	importFile     string
	importCategory string
	importBy       string
	historyLimit   int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a registry CSV or XLSX export into the import directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initImportEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		content, err := os.ReadFile(importFile)
		if err != nil {
			return eris.Wrap(err, "read import file")
		}
		if fetcher.IsXLSX(importFile) {
			if content, err = fetcher.XLSXToCSV(content, fetcher.XLSXOptions{}); err != nil {
				return err
			}
		}

		importedBy := importBy
		if importedBy == "" {
			importedBy = os.Getenv("USER")
		}
		rec, err := env.Imports.Import(ctx, imports.Request{
			Filename:   imports.Filename(importCategory, time.Now()),
			Category:   importCategory,
			ImportedBy: importedBy,
			Content:    content,
		})
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("source", filepath.Base(importFile)),
			zap.String("filename", rec.Filename),
			zap.Int("records", rec.RecordCount),
		)
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "List recent imports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initImportEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Imports.History(ctx, historyLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), recs)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the CSV or XLSX file (required)")
	importCmd.Flags().StringVar(&importCategory, "category", "", "category the upload is filed under (required)")
	importCmd.Flags().StringVar(&importBy, "by", "", "who ran the import (default $USER)")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("category")

	importsCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of imports to list")

	rootCmd.AddCommand(importCmd, importsCmd)
}
