// Package ontology implements the concept graph management sub-commands:
// import, export and sync between the storage backends.
package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/ontology"
)

// Command returns the ontology sub-command tree.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ontology",
		Short: "Manage the concept graph and its storage backends",
	}

	cmd.AddCommand(
		importCommand(settings),
		exportCommand(settings),
		syncCommand(settings),
	)
	return cmd
}

func importCommand(settings *conf.Settings) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import concepts from a JSON document into the active backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading import file: %w", err)
			}

			var doc struct {
				Concepts []ontology.Concept `json:"concepts"`
			}
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parsing import file: %w", err)
			}

			store, err := ontology.New(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped := 0, 0
			for i := range doc.Concepts {
				if err := store.Add(context.Background(), doc.Concepts[i], nil); err != nil {
					skipped++
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: %v\n", doc.Concepts[i].ID, err)
					continue
				}
				imported++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d concepts, skipped %d\n", imported, skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the concepts JSON document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func exportCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the concept set to the flat-file document",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ontology.New(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ExportToFlatFile(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d concepts to %s\n",
				store.Count(), settings.Ontology.FlatFilePath)
			return nil
		},
	}
}

func syncCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Copy the concept set into the relational backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ontology.New(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SyncToRelational(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d concepts to %s\n",
				store.Count(), settings.Ontology.SQLitePath)
			return nil
		},
	}
}
