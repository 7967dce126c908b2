package cli

import (
	"fmt"
	"text/tabwriter"

	"measurement-gateway/internal/repository"

	"github.com/spf13/cobra"
)

func newStudiesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "studies",
		Short: "List lift studies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.openDB(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			studies, err := repository.NewLiftStudyRepository(logger(), db).ListStudies(ctx)
			if err != nil {
				return err
			}
			if len(studies) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No lift studies")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTART\tEND\tCONTROL\tTEST\tSAMPLE\tTEMPLATES")
			for _, s := range studies {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					s.ID, s.Name, s.Status,
					s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"),
					s.ControlGroupSize, s.TestGroupSize, s.SampleSize, s.TemplateNames)
			}
			return w.Flush()
		},
	}
}
