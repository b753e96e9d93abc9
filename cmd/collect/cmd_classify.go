package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
	"github.com/LJTian/MedNewsHub/internal/collector"
	"github.com/LJTian/MedNewsHub/internal/config"
	"github.com/LJTian/MedNewsHub/internal/filter"
)

var classifyFlags struct {
	source string
}

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Score a headline and show where it would be ranked",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyFlags.source, "source", "", "source name used for the priority tier")
}

func runClassify(cmd *cobra.Command, args []string) error {
	t, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		return err
	}
	c, err := aggregator.NewCategorizer(filter.NewEngine(t.EngineConfig()), t.Ranking, logger, nil)
	if err != nil {
		return err
	}

	as := c.Assess(collector.Article{
		Title:    strings.Join(args, " "),
		Source:   classifyFlags.source,
		Priority: t.Priorities.Lookup(classifyFlags.source),
	})

	category := as.Category
	if category == "" {
		category = "(not relevant)"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Category:   %s\n", category)
	fmt.Fprintf(out, "Radiology:  %.3f\n", as.Scores.Radiology)
	fmt.Fprintf(out, "Healthcare: %.3f\n", as.Scores.Healthcare)
	fmt.Fprintf(out, "AI:         %.3f\n", as.Scores.AI)
	fmt.Fprintf(out, "Combined:   %.3f (weighted %.3f, tier %d x%.1f)\n",
		as.Scores.Combined, as.Weighted.Combined, as.Priority, as.Multiplier)
	if as.Automatic {
		fmt.Fprintln(out, "Automatic:  yes")
	}
	return nil
}
