package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tetkool/concierge/internal/domain/catalog"
	"github.com/tetkool/concierge/internal/infrastructure/catalogfile"
	"github.com/tetkool/concierge/internal/infrastructure/tools"
)

const defaultCatalogPath = "data/courses.yaml"

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the course catalog",
		Long:  `Run the get_courses lookup against the catalog file and print exactly what the model would receive.`,
		RunE:  runCatalog,
	}
	cmd.Flags().String("category", "", "Category key, matched case-insensitively")
	cmd.Flags().StringP("query", "q", "", "Substring searched in course names and descriptions")
	cmd.Flags().Bool("categories", false, "List category keys only")
	return cmd
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	c, err := loadCatalog(cmd)
	if err != nil {
		return err
	}

	if listOnly, _ := cmd.Flags().GetBool("categories"); listOnly {
		for _, key := range c.Categories() {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	}

	category, _ := cmd.Flags().GetString("category")
	query, _ := cmd.Flags().GetString("query")
	args, err := json.Marshal(tools.CourseQuery{Category: category, SearchQuery: query})
	if err != nil {
		return err
	}

	lookup := tools.NewCourseLookup(c, "", zerolog.Nop())
	out, err := lookup.Handle(cmd.Context(), args)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func loadCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	path, _ := cmd.Flags().GetString("catalog-file")
	if path == "" {
		path = os.Getenv("CATALOG_PATH")
	}
	if path == "" {
		path = defaultCatalogPath
	}
	return catalogfile.Load(path)
}
