// Package cli implements wmgctl, the operator tool for the gateway database.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"measurement-gateway/internal/database"
	"measurement-gateway/internal/database/sqlite"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	dialect string
	path    string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "wmgctl",
		Short: "Operate the measurement gateway database",
		Long: `wmgctl manages the measurement gateway database.

It creates the schema, lists lift studies and runs the lift study assignment
against a database, by default without writing anything.

MySQL settings come from DB_HOST, DB_USER, DB_NAME, DB_PORT and DB_SECRET_ARN,
read from the environment or a .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dialect, "dialect", string(database.DialectSQLite), "database dialect: mysql or sqlite")
	root.PersistentFlags().StringVar(&opts.path, "path", "wmg.db", "sqlite database file")

	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newStudiesCmd(opts))
	root.AddCommand(newEvaluateCmd(opts))
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logger() *logrus.Entry {
	return logrus.WithField("component", "wmgctl")
}

func (o *options) openDB(ctx context.Context) (*sql.DB, error) {
	switch database.Dialect(o.dialect) {
	case database.DialectSQLite:
		return sqlite.Open(o.path)
	case database.DialectMySQL:
		dbConfig, secretARN, err := database.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return database.Connect(ctx, dbConfig, secretsmanager.NewFromConfig(cfg), secretARN)
	}
	return nil, fmt.Errorf("unsupported dialect %q", o.dialect)
}
