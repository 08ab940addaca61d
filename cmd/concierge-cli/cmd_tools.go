package main

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tetkool/concierge/internal/domain/catalog"
	"github.com/tetkool/concierge/internal/domain/tool"
	"github.com/tetkool/concierge/internal/infrastructure/tools"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool definitions advertised to the model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := tool.NewRegistry()
			err := tools.Register(registry,
				tools.NewCourseLookup(catalog.New(nil), "", zerolog.Nop()),
				tools.NewManagerNotifier(nil, tools.NotifySettings{}, nil, zerolog.Nop()),
			)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(registry.Definitions())
		},
	}
}
