package cmd

import (
	"log/slog"
	"os"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	"github.com/0w0mewo/localsend-engine/cmd/history"
	"github.com/0w0mewo/localsend-engine/cmd/identity"
	"github.com/0w0mewo/localsend-engine/cmd/recv"
	"github.com/0w0mewo/localsend-engine/cmd/scan"
	"github.com/0w0mewo/localsend-engine/cmd/send"
	"github.com/0w0mewo/localsend-engine/cmd/settings"
	"github.com/0w0mewo/localsend-engine/cmd/share"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "localsend",
	Short: "LocalSend compatible file transfer",
	Long:  "Discover LocalSend devices on the local network and exchange files with them",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.SetupLogger()
	},
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("Fail to execute", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.ConfigDir, "config-dir", "", "Directory holding identity, settings and history (default: $LOCALSEND_CONFIG_DIR or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&cmdutil.Verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(scan.Cmd)
	rootCmd.AddCommand(recv.Cmd)
	rootCmd.AddCommand(send.Cmd)
	rootCmd.AddCommand(share.Cmd)
	rootCmd.AddCommand(identity.Cmd)
	rootCmd.AddCommand(history.Cmd)
	rootCmd.AddCommand(settings.Cmd)
}
