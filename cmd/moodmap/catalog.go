package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/justestif/moodmap/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the effective mood catalog as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		hc, err := httpClient(ctx, cfg, cfg.HTTPTimeout)
		if err != nil {
			return err
		}
		remote, err := newBackend(hc, cfg, logger)
		if err != nil {
			return err
		}

		cat, src := catalog.Load(ctx, remote, logger)
		data, err := yaml.Marshal(cat)
		if err != nil {
			return fmt.Errorf("encoding catalog: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# moods: %s, journeys: %s\n", src.Moods, src.Journeys)
		_, err = out.Write(data)
		return err
	},
}
