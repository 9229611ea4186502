package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/huskylens/internal/config"
	"github.com/banshee-data/huskylens/internal/db"
	"github.com/banshee-data/huskylens/internal/report"
)

func statsCmd(a *app) *cobra.Command {
	var plotPath string
	var plotLimit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded detections per learned id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := db.NewDB(a.cfg.Recorder.Database, a.logger)
			if err != nil {
				return fmt.Errorf("open database %s: %w", a.cfg.Recorder.Database, err)
			}
			defer store.Close()

			stats, err := store.DetectionStats(cmd.Context(), a.cfg.Recorder.Kind)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCOUNT\tMEAN X\tSTD X\tMEAN Y\tSTD Y")
			for _, s := range stats {
				fmt.Fprintf(tw, "%d\t%d\t%.1f\t%.1f\t%.1f\t%.1f\n", s.ID, s.Count, s.MeanX, s.StdX, s.MeanY, s.StdY)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if plotPath == "" {
				return nil
			}
			pos, err := store.RecentPositions(cmd.Context(), a.cfg.Recorder.Kind, plotLimit)
			if err != nil {
				return err
			}
			if err := report.SavePlot(plotPath, "HuskyLens "+a.cfg.Recorder.Kind, pos); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plot written to %s\n", plotPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&plotPath, "plot", "", "also write a scatter plot of recent positions (png, svg or pdf)")
	cmd.Flags().IntVar(&plotLimit, "plot-snapshots", 500, "snapshots included in the plot")
	cmd.Flags().String("db", "huskylens.db", "sqlite database path")
	cmd.Flags().String("kind", config.KindBlocks, "record kind: blocks or arrows")
	return cmd
}
