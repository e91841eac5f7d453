package scan

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	"github.com/spf13/cobra"
)

var (
	timeout int64
	mdns    bool
)

var Cmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan local network for localsend instance",
	Long:  "Scan local network for localsend instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, settings, err := cmdutil.LoadSettings()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("mdns") {
			settings.MDNS = mdns
		}

		id, err := cmdutil.LoadIdentity(dir, settings, false)
		if err != nil {
			return err
		}

		disc, err := cmdutil.Discover(context.Background(), id, settings, time.Second*time.Duration(timeout))
		if err != nil {
			return err
		}

		peers := disc.Peers()
		if len(peers) == 0 {
			fmt.Fprintln(os.Stderr, "No device found")
			return nil
		}

		fmt.Fprintf(os.Stdout, "Found Devices: \n")
		for _, p := range peers {
			fmt.Fprintf(os.Stdout, "\tName: %s, Version: %s, Address: %s:%d, Protocol: %s, Fingerprint: %s, Via: %s\n",
				p.Alias, p.Version, p.IP, p.Port, p.Protocol, p.Fingerprint, p.Source)
		}
		return nil
	},
}

func init() {
	Cmd.PersistentFlags().Int64VarP(&timeout, "timeout", "t", 4, "scan duration in seconds")
	Cmd.PersistentFlags().BoolVar(&mdns, "mdns", false, "Also browse mDNS")
}
