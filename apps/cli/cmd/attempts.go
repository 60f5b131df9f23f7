package cmd

import (
	"context"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/stats"
	"github.com/spf13/cobra"
)

var attemptsLimitFlag int

var attemptsCmd = &cobra.Command{
	Use:   "attempts <request-id>",
	Short: "List the execution attempts of a request, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return formatAttempts(cmd, args[0], attemptsLimitFlag, func(f attemptSink, id string, attempts []model.Attempt) {
			f.FormatAttempts(id, attempts)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <request-id>",
	Short: "Summarize the execution attempts of a request",
	Long: `Summarize every recorded attempt of a request: completion rate, error
kinds, status codes and latency percentiles.

Examples:
  postbox stats -u alice <request-id>
  postbox stats -u alice <request-id> -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return formatAttempts(cmd, args[0], 0, func(f attemptSink, id string, attempts []model.Attempt) {
			f.FormatStats(id, stats.Summarize(attempts))
		})
	},
}

type attemptSink interface {
	FormatAttempts(requestID string, attempts []model.Attempt)
	FormatStats(requestID string, summary stats.Summary)
}

func init() {
	attemptsCmd.Flags().IntVarP(&attemptsLimitFlag, "limit", "l", getEnvInt("POSTBOX_ATTEMPTS_LIMIT", 20), "Most recent attempts to show, 0 for all")
	addOutputFlags(attemptsCmd)
	addOutputFlags(statsCmd)
}

func formatAttempts(cmd *cobra.Command, requestID string, limit int, emit func(attemptSink, string, []model.Attempt)) error {
	return withUserApp(func(ctx context.Context, a *app, user string) error {
		var attempts []model.Attempt
		err := a.store.WithSession(ctx, func(s *db.Session) error {
			var err error
			attempts, err = s.ListAttempts(ctx, user, requestID, limit)
			return err
		})
		if err != nil {
			return err
		}

		formatter, closeOut, err := newFormatter(cmd, a.cfg.GetNoColor())
		if err != nil {
			return err
		}
		emit(formatter, requestID, attempts)
		return closeOut()
	})
}
