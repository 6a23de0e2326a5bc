package main

import (
	"github.com/spf13/cobra"

	"github.com/siteatlas/siteatlas/internal/taxonomy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report store connectivity and dataset size",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		out := map[string]any{
			"driver": cfg.Store.Driver,
			"store":  "ok",
		}
		if err := store.Ping(ctx); err != nil {
			out["store"] = "unreachable"
			out["error"] = err.Error()
			return printJSON(out)
		}

		areas, err := store.ListAreas(ctx)
		if err != nil {
			return err
		}
		out["areas"] = len(areas)

		if cats, err := taxonomy.SuperCategories(); err == nil {
			out["categories"] = len(cats)
		}
		return printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
