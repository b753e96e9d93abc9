package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LJTian/MedNewsHub/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured news sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func runSources(cmd *cobra.Command, _ []string) error {
	specs, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		return err
	}
	t, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tTIER\tSTATUS\tURL")
	for _, s := range specs {
		status := "enabled"
		if s.Disabled {
			status = "disabled"
		}
		tier := t.Priorities.Lookup(s.Name)
		if _, ok := t.Priorities[s.Name]; !ok && s.Priority > 0 {
			tier = s.Priority
		}
		url := s.URL
		if url == "" {
			url = s.BaseURL
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.Name, s.Kind, tier, status, url)
	}
	return w.Flush()
}
