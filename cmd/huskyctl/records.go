package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/huskylens/internal/huskylens"
)

type recordFlags struct {
	learned bool
	id      uint16
	asJSON  bool
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.learned, "learned", false, "only learned records")
	cmd.Flags().Uint16Var(&f.id, "id", 0, "only records with this learned id")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
	cmd.MarkFlagsMutuallyExclusive("learned", "id")
}

func blocksCmd(a *app) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "List the blocks the device currently sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *huskylens.Client) error {
				var blocks []huskylens.Block
				var err error
				switch {
				case cmd.Flags().Changed("id"):
					blocks, err = c.BlocksByID(f.id)
				case f.learned:
					blocks, err = c.BlocksLearned()
				default:
					blocks, err = c.Blocks()
				}
				if err != nil {
					return err
				}
				if f.asJSON {
					return printJSON(cmd.OutOrStdout(), blocks)
				}
				return printBlocks(cmd.OutOrStdout(), blocks)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func arrowsCmd(a *app) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "arrows",
		Short: "List the arrows the device currently sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(c *huskylens.Client) error {
				var arrows []huskylens.Arrow
				var err error
				switch {
				case cmd.Flags().Changed("id"):
					arrows, err = c.ArrowsByID(f.id)
				case f.learned:
					arrows, err = c.ArrowsLearned()
				default:
					arrows, err = c.Arrows()
				}
				if err != nil {
					return err
				}
				if f.asJSON {
					return printJSON(cmd.OutOrStdout(), arrows)
				}
				return printArrows(cmd.OutOrStdout(), arrows)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBlocks(w io.Writer, blocks []huskylens.Block) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tX\tY\tWIDTH\tHEIGHT\tLEARNED")
	for _, b := range blocks {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%t\n", b.ID, b.X, b.Y, b.Width, b.Height, b.Learned())
	}
	return tw.Flush()
}

func printArrows(w io.Writer, arrows []huskylens.Arrow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTAIL\tHEAD\tANGLE\tLENGTH\tLEARNED")
	for _, ar := range arrows {
		fmt.Fprintf(tw, "%d\t(%d,%d)\t(%d,%d)\t%.1f\t%.1f\t%t\n",
			ar.ID, ar.XTail, ar.YTail, ar.XHead, ar.YHead, ar.Angle(), ar.Length(), ar.Learned())
	}
	return tw.Flush()
}
