package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/spf13/cobra"
)

var collectionDescriptionFlag string

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"collections", "col"},
	Short:   "Manage collections",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a collection and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserApp(func(ctx context.Context, a *app, user string) error {
			return a.store.WithSession(ctx, func(s *db.Session) error {
				col, err := s.CreateCollection(ctx, &model.Collection{
					Owner:       user,
					Name:        args[0],
					Description: collectionDescriptionFlag,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), col.ID)
				return nil
			})
		})
	},
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections and their requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserApp(func(ctx context.Context, a *app, user string) error {
			return a.store.WithSession(ctx, func(s *db.Session) error {
				cols, err := s.ListCollections(ctx, user)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, col := range cols {
					fmt.Fprintf(w, "%s\t%s\t\t\n", col.ID, col.Name)
					reqs, err := s.ListRequests(ctx, user, col.ID)
					if err != nil {
						return err
					}
					for _, r := range reqs {
						fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", r.ID, r.Name, r.Method, r.URL)
					}
				}
				return w.Flush()
			})
		})
	},
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a collection with its requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserApp(func(ctx context.Context, a *app, user string) error {
			return a.store.WithSession(ctx, func(s *db.Session) error {
				return s.DeleteCollection(ctx, user, args[0])
			})
		})
	},
}

func init() {
	collectionCreateCmd.Flags().StringVar(&collectionDescriptionFlag, "description", "", "Collection description")
	collectionCmd.AddCommand(collectionCreateCmd, collectionListCmd, collectionDeleteCmd)
}

// withUserApp runs fn with the --user value, an open app and a context
// canceled on interrupt.
func withUserApp(fn func(ctx context.Context, a *app, user string) error) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()
	return fn(ctx, a, user)
}
