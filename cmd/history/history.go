package history

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	"github.com/0w0mewo/localsend-engine/internal/config"
	"github.com/0w0mewo/localsend-engine/internal/store"
	"github.com/spf13/cobra"
)

var limit int

var Cmd = &cobra.Command{
	Use:   "history",
	Short: "List finished transfers",
	Long:  "List the files received and served by this device, latest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := cmdutil.Dir()
		if err != nil {
			return err
		}

		h, err := store.Open(config.HistoryPath(dir))
		if err != nil {
			return err
		}
		defer h.Close()

		transfers, err := h.List(limit)
		if err != nil {
			return err
		}

		if len(transfers) == 0 {
			fmt.Fprintln(os.Stderr, "No transfer yet")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tDIRECTION\tPEER\tFILE\tSIZE\tSTATE")
		for _, t := range transfers {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				t.FinishedAt.Format(time.DateTime), t.Direction, t.PeerAlias, t.FileName, t.Size, t.State)
		}
		return tw.Flush()
	},
}

func init() {
	Cmd.PersistentFlags().IntVarP(&limit, "limit", "n", 20, "Number of transfers to show (0 for all)")
}
