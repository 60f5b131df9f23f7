package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/import/curl"
	"github.com/abdul-hamid-achik/postbox/packages/import/insomnia"
	"github.com/abdul-hamid-achik/postbox/packages/import/openapi"
	"github.com/spf13/cobra"
)

var (
	importCollectionFlag string
	importNameFlag       string
	importBaseURLFlag    string
	importTagsFlag       string
	importNoEnvFlag      bool
)

var importCmd = &cobra.Command{
	Use:   "import <format> <source>",
	Short: "Import requests from curl, Insomnia or OpenAPI",
	Long: `Import request definitions into a collection. A new collection is
created unless --collection names an existing one. Environments found in
the source are stored as environment sets, replacing sets of the same name.

Supported formats:
  curl     - a file of curl commands (one per line, backslash continuations)
  insomnia - Insomnia v4 export (JSON)
  openapi  - OpenAPI 3.0/3.1 (YAML or JSON, file or URL)`,
}

var importCurlCmd = &cobra.Command{
	Use:   "curl <file>",
	Short: "Import curl commands",
	Long: `Import every curl command in a file.

Examples:
  postbox import curl -u alice requests.sh
  postbox import curl -u alice requests.sh --collection <collection-id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := curl.NewConverter().ConvertFile(args[0])
		if err != nil {
			return err
		}
		return storeImport(cmd, importedSet{name: "curl import", requests: defs})
	},
}

var importInsomniaCmd = &cobra.Command{
	Use:   "insomnia <export-file>",
	Short: "Import an Insomnia export",
	Long: `Import requests and environments from an Insomnia v4 export.

Examples:
  postbox import insomnia -u alice insomnia.json
  postbox import insomnia -u alice insomnia.json --no-env`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := insomnia.NewConverter(insomnia.WithEnvironments(!importNoEnvFlag)).ConvertFile(args[0])
		if err != nil {
			return err
		}
		return storeImport(cmd, importedSet{
			name:         result.Name,
			requests:     result.Requests,
			environments: result.Environments,
			warnings:     result.Warnings,
		})
	},
}

var importOpenAPICmd = &cobra.Command{
	Use:   "openapi <spec-file-or-url>",
	Short: "Import from OpenAPI/Swagger specification",
	Long: `Import one request per operation of an OpenAPI 3 document. URLs start
with {{baseUrl}}, which the imported environment set defines from the
first server (or --base-url).

Examples:
  postbox import openapi -u alice spec.yaml
  postbox import openapi -u alice https://api.example.com/openapi.json
  postbox import openapi -u alice spec.yaml --tags users,auth --base-url http://localhost:3000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []openapi.Option{}
		if importBaseURLFlag != "" {
			opts = append(opts, openapi.WithBaseURL(importBaseURLFlag))
		}
		if importTagsFlag != "" {
			opts = append(opts, openapi.WithTags(strings.Split(importTagsFlag, ",")))
		}

		ctx, stop := signalContext()
		defer stop()
		result, err := openapi.NewConverter(opts...).ConvertFile(ctx, args[0])
		if err != nil {
			return err
		}
		set := importedSet{name: result.Name, requests: result.Requests, warnings: result.Warnings}
		if !importNoEnvFlag {
			set.environments = result.Environments
		}
		return storeImport(cmd, set)
	},
}

func init() {
	for _, c := range []*cobra.Command{importCurlCmd, importInsomniaCmd, importOpenAPICmd} {
		c.Flags().StringVarP(&importCollectionFlag, "collection", "c", "", "Existing collection to import into")
		c.Flags().StringVar(&importNameFlag, "name", "", "Name of the new collection")
	}
	for _, c := range []*cobra.Command{importInsomniaCmd, importOpenAPICmd} {
		c.Flags().BoolVar(&importNoEnvFlag, "no-env", false, "Skip environments")
	}
	importOpenAPICmd.Flags().StringVar(&importBaseURLFlag, "base-url", "", "Override the base URL from the document servers")
	importOpenAPICmd.Flags().StringVar(&importTagsFlag, "tags", "", "Filter operations by tags (comma-separated)")

	importCmd.AddCommand(importCurlCmd, importInsomniaCmd, importOpenAPICmd)
}

type importedSet struct {
	name         string
	requests     []model.Definition
	environments []model.EnvironmentSet
	warnings     []string
}

func storeImport(cmd *cobra.Command, set importedSet) error {
	return withUserApp(func(ctx context.Context, a *app, user string) error {
		for _, w := range set.warnings {
			a.log.Warn("import", "warning", w)
		}

		collectionID, err := importCollection(ctx, a.store, user, set)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "collection %s: %d requests\n", collectionID, len(set.requests))
		for _, e := range set.environments {
			fmt.Fprintf(cmd.OutOrStdout(), "environment %s: %d variables\n", e.Name, len(e.Variables))
		}
		return nil
	})
}

// importCollection stores set in one transaction and returns the id of
// the collection that received the requests.
func importCollection(ctx context.Context, store *db.Client, owner string, set importedSet) (string, error) {
	var collectionID string
	err := store.WithSession(ctx, func(s *db.Session) error {
		return s.Tx(ctx, func(tx *db.Session) error {
			collectionID = importCollectionFlag
			if collectionID == "" {
				name := importNameFlag
				if name == "" {
					name = set.name
				}
				if name == "" {
					name = "import"
				}
				col, err := tx.CreateCollection(ctx, &model.Collection{Owner: owner, Name: name})
				if err != nil {
					return err
				}
				collectionID = col.ID
			}

			for _, def := range set.requests {
				if _, err := tx.CreateRequest(ctx, &model.PersistedRequest{
					Owner:        owner,
					CollectionID: collectionID,
					Definition:   def,
				}); err != nil {
					return fmt.Errorf("store %q: %w", def.Name, err)
				}
			}
			for _, e := range set.environments {
				if _, err := upsertEnvironment(ctx, tx, owner, e.Name, e.Variables); err != nil {
					return fmt.Errorf("store environment %q: %w", e.Name, err)
				}
			}
			return nil
		})
	})
	return collectionID, err
}
