package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/referral-os/directory/internal/model"
)

var searchParams model.SearchParams

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the directory and print one page as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initDirectory()
		if err != nil {
			return err
		}
		res, err := env.Directory.Search(cmd.Context(), searchParams)
		if err != nil {
			return eris.Wrap(err, "search")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id-or-slug>",
	Short: "Print one professional by id, falling back to slug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initDirectory()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		p, err := env.Directory.ByID(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "lookup by id")
		}
		if p == nil {
			if p, err = env.Directory.BySlug(ctx, args[0]); err != nil {
				return eris.Wrap(err, "lookup by slug")
			}
		}
		if p == nil {
			return eris.Errorf("professional not found: %s", args[0])
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print record counts per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initDirectory()
		if err != nil {
			return err
		}
		stats, err := env.Directory.Stats(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rebuild both sources from disk and print the resulting stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initDirectory()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := env.Directory.Reload(ctx); err != nil {
			return eris.Wrap(err, "reload")
		}
		stats, err := env.Directory.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchParams.Q, "q", "", "free-text query")
	f.StringVar(&searchParams.Category, "category", "", "category filter; \"All\" disables it")
	f.StringVar(&searchParams.City, "city", "", "city substring filter")
	f.StringVar(&searchParams.Zip, "zip", "", "zip prefix filter")
	f.StringVar(&searchParams.County, "county", "", "county substring filter")
	f.IntVar(&searchParams.Limit, "limit", 50, "page size (max 200)")
	f.IntVar(&searchParams.Offset, "offset", 0, "page offset")

	rootCmd.AddCommand(searchCmd, getCmd, statsCmd, reloadCmd)
}
