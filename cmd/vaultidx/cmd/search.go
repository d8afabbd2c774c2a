package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
	"github.com/vaultidx/vaultidx/internal/vault"
)

func newSearchCmd() *cobra.Command {
	var (
		flagLimit    int
		flagMinScore float64
		flagSources  []string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vault from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			for _, src := range flagSources {
				if !vault.ValidCategory(src) {
					return vxerrors.New(vxerrors.ErrCodeInvalidInput,
						"unknown source: "+src, nil)
				}
			}

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			a.registry.CheckHealth(ctx)

			opts := a.searchOptions()
			if flagLimit > 0 {
				opts.MaxResults = flagLimit
			}
			if cmd.Flags().Changed("min-score") {
				opts.MinScore = flagMinScore
			}
			opts.Sources = flagSources

			resp, err := a.engine.Search(ctx, strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Total == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for _, group := range resp.Groups {
				fmt.Fprintf(out, "%s:\n", group.Category)
				for _, r := range group.Results {
					heading := r.Heading
					if heading == "" {
						heading = "(top)"
					}
					fmt.Fprintf(out, "  %.2f  %s:%d  %s\n", r.Score, r.Path, r.StartLine, heading)
					fmt.Fprintf(out, "        %s\n", r.Snippet)
				}
			}
			fmt.Fprintf(out, "\n%d results (%s)\n", resp.Total, resp.Mode)
			return nil
		},
	}

	cmd.Flags().IntVar(&flagLimit, "limit", 0, "Maximum number of results")
	cmd.Flags().Float64Var(&flagMinScore, "min-score", 0, "Minimum normalized score (0-1)")
	cmd.Flags().StringSliceVar(&flagSources, "source", nil, "Restrict results to these source categories (repeatable)")
	return cmd
}
