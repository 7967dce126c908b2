package cli

import (
	"context"
	"fmt"
	"time"

	"measurement-gateway/internal/liftstudy"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/repository"

	"github.com/spf13/cobra"
)

// dryRunStore reads from the database but never writes assignments or counts.
type dryRunStore struct {
	liftstudy.Store
}

func (dryRunStore) Assign(ctx context.Context, studyID, phoneNumber string, group models.Group) error {
	return nil
}

func (dryRunStore) IncrementMessagesCount(ctx context.Context, studyID string) error {
	return nil
}

func newEvaluateCmd(opts *options) *cobra.Command {
	var (
		write bool
		date  string
	)

	cmd := &cobra.Command{
		Use:   "evaluate <phone-number> <template-name>",
		Short: "Show what the router would do with a template message",
		Long: `Run the lift study assignment for one phone number and template.

Without --write the assignment is computed but not stored, so a phone that has
no group yet gets a random one on every run.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.openDB(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			var store liftstudy.Store = repository.NewLiftStudyRepository(logger(), db)
			if !write {
				store = dryRunStore{Store: store}
			}

			engine := liftstudy.NewEngine(logger(), store, nil)
			if date != "" {
				day, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				engine.Now = func() time.Time { return day }
			}

			result := engine.Evaluate(ctx, args[0], args[1])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "disposition: %s\n", result.Disposition)
			if result.StudyID != "" {
				fmt.Fprintf(out, "study: %s\n", result.StudyID)
			}
			if result.Group != models.GroupNone {
				fmt.Fprintf(out, "group: %s\n", result.Group)
			}
			if result.Err != nil {
				fmt.Fprintf(out, "error: %v\n", result.Err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "store the assignment and count the message")
	cmd.Flags().StringVar(&date, "date", "", "evaluate as of this day (YYYY-MM-DD) instead of today")
	return cmd
}
