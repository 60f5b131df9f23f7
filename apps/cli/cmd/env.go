package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/env"
	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envNameFlag  string
	envWatchFlag bool
)

var envCmd = &cobra.Command{
	Use:     "env",
	Aliases: []string{"environment", "environments"},
	Short:   "Manage environment sets",
}

var envImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create or replace an environment set from a .env or YAML file",
	Long: `Create or replace an environment set from a file. .env files use
KEY=value lines; YAML files hold either a flat mapping or a document with
name and variables. The set is named after --name, the document name or
the file name, and an existing set with that name is replaced.

Examples:
  postbox env import -u alice .env.staging
  postbox env import -u alice envs/dev.yaml --name dev
  postbox env import -u alice envs/dev.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: envImportCommand,
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List environment sets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserApp(func(ctx context.Context, a *app, user string) error {
			return a.store.WithSession(ctx, func(s *db.Session) error {
				sets, err := s.ListEnvironments(ctx, user)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, set := range sets {
					fmt.Fprintf(w, "%s\t%s\t%d variables\n", set.ID, set.Name, len(set.Variables))
				}
				return w.Flush()
			})
		})
	},
}

var envShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Print the variables of an environment set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserApp(func(ctx context.Context, a *app, user string) error {
			return a.store.WithSession(ctx, func(s *db.Session) error {
				var set *model.EnvironmentSet
				var err error
				if uuid.Validate(args[0]) == nil {
					set, err = s.GetEnvironment(ctx, user, args[0])
				} else {
					set, err = s.FindEnvironment(ctx, user, args[0])
				}
				if err != nil {
					return err
				}
				for _, v := range set.Variables {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", v.Key, v.Value)
				}
				return nil
			})
		})
	},
}

func init() {
	envImportCmd.Flags().StringVar(&envNameFlag, "name", "", "Environment set name (default: from the file)")
	envImportCmd.Flags().BoolVarP(&envWatchFlag, "watch", "w", false, "Re-import whenever the file changes")
	envCmd.AddCommand(envImportCmd, envListCmd, envShowCmd)
}

func envImportCommand(cmd *cobra.Command, args []string) error {
	path := args[0]
	return withUserApp(func(ctx context.Context, a *app, user string) error {
		load := func() error {
			set, err := importEnvironmentFile(ctx, a.store, user, path, envNameFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d variables\n", set.ID, set.Name, len(set.Variables))
			return nil
		}
		if err := load(); err != nil {
			return err
		}
		if !envWatchFlag {
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s for changes... (press Ctrl+C to stop)\n", path)
		return watchFile(ctx, path, a.log.WithComponent("watch"), func() {
			if err := load(); err != nil {
				a.log.Error("re-import environment", "file", path, "error", err)
			}
		})
	})
}

// importEnvironmentFile loads path and stores it as owner's environment set.
func importEnvironmentFile(ctx context.Context, store *db.Client, owner, path, name string) (*model.EnvironmentSet, error) {
	fileName, vars, err := env.LoadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindValidation, err, "load environment file")
	}
	if name == "" {
		name = fileName
	}
	var set *model.EnvironmentSet
	err = store.WithSession(ctx, func(s *db.Session) error {
		set, err = upsertEnvironment(ctx, s, owner, name, vars)
		return err
	})
	return set, err
}

// upsertEnvironment replaces the variables of owner's set called name, or
// creates it.
func upsertEnvironment(ctx context.Context, s *db.Session, owner, name string, vars []model.Variable) (*model.EnvironmentSet, error) {
	if vars == nil {
		vars = []model.Variable{}
	}
	current, err := s.FindEnvironment(ctx, owner, name)
	switch {
	case errdef.Is(err, errdef.KindNotFound):
		return s.CreateEnvironment(ctx, &model.EnvironmentSet{Owner: owner, Name: name, Variables: vars})
	case err != nil:
		return nil, err
	}
	return s.UpdateEnvironment(ctx, &model.EnvironmentSet{ID: current.ID, Owner: owner, Variables: vars})
}

// watchFile calls onChange, debounced, whenever path is written or
// replaced. It watches the parent directory so editors that save by
// rename are still seen.
func watchFile(ctx context.Context, path string, log logger.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				log.Info("file changed", "file", event.Name)
				onChange()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		}
	}
}
