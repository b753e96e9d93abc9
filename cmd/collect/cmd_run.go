package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LJTian/MedNewsHub/internal/app"
)

var runFlags struct {
	dryRun    bool
	noArchive bool
}

// 只执行一轮采集 + 发帖后退出，适合手动触发
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one collect-rank-post cycle and exit",
	Args:  cobra.NoArgs,
	RunE:  runCycle,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "print the post instead of sending it")
	f.BoolVar(&runFlags.noArchive, "no-archive", false, "do not write the digest to Postgres")
}

func runCycle(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cfg, logger, app.Options{DryRun: runFlags.dryRun, NoArchive: runFlags.noArchive})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.RunCycle(cmd.Context())
	if report != nil {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.PostText)
		fmt.Fprintf(cmd.ErrOrStderr(), "status=%s gathered=%d dropped=%d failed_sources=%v\n",
			report.Status, report.Stats.Gathered, report.Stats.Dropped, report.Stats.FailedSources)
	}
	return err
}
