package identity

import (
	"fmt"
	"os"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	lsidentity "github.com/0w0mewo/localsend-engine/internal/identity"
	"github.com/spf13/cobra"
)

var reset bool

var Cmd = &cobra.Command{
	Use:   "identity",
	Short: "Show this device's identity",
	Long:  "Show the alias and certificate fingerprint this device announces, or generate a new identity with --reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, settings, err := cmdutil.LoadSettings()
		if err != nil {
			return err
		}

		var id *lsidentity.Identity
		if reset {
			id, err = lsidentity.Reset(lsidentity.NewFileStore(dir), lsidentity.Options{Port: settings.Port, Protocol: settings.Protocol()})
		} else {
			id, err = cmdutil.LoadIdentity(dir, settings, false)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Alias:       %s\n", id.Alias)
		fmt.Fprintf(os.Stdout, "Fingerprint: %s\n", id.Fingerprint)
		fmt.Fprintf(os.Stdout, "Device:      %s (%s)\n", id.DeviceModel, id.DeviceType)
		fmt.Fprintf(os.Stdout, "Port:        %d/%s\n", id.Port, id.Protocol)
		fmt.Fprintf(os.Stdout, "Stored in:   %s\n", dir)
		return nil
	},
}

func init() {
	Cmd.PersistentFlags().BoolVar(&reset, "reset", false, "Discard the current identity and generate a new one")
}
