package recv

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	"github.com/0w0mewo/localsend-engine/internal/config"
	"github.com/0w0mewo/localsend-engine/internal/localsend"
	lsrecv "github.com/0w0mewo/localsend-engine/internal/localsend/recv"
	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/utils"
	"github.com/spf13/cobra"
)

var (
	node        cmdutil.NodeFlags
	savetodir   string
	acceptExt   string
	maxSize     int64
	interactive bool
	noHistory   bool
)

var Cmd = &cobra.Command{
	Use:   "recv",
	Short: "Receive files from localsend instance",
	Long:  "Receive files from localsend instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, settings, err := cmdutil.LoadSettings()
		if err != nil {
			return err
		}
		if err := node.Apply(cmd, &settings); err != nil {
			return err
		}
		if cmd.Flags().Changed("dir") {
			settings.SaveDir = savetodir
		}
		if cmd.Flags().Changed("accept-ext") {
			settings.AcceptExt = config.NormalizeExt(strings.Split(acceptExt, ","))
		}
		if noHistory {
			settings.History = false
		}

		if err := config.EnsureDir(settings.SaveDir); err != nil {
			return err
		}

		id, err := cmdutil.LoadIdentity(dir, settings, false)
		if err != nil {
			return err
		}

		sessman := cmdutil.NewManager(approver(settings), session.NewDirSink(settings.SaveDir), settings)
		closeHistory := cmdutil.OpenHistory(dir, settings, sessman)
		defer closeHistory()

		recver := lsrecv.NewFileReceiver(id, sessman)
		recver.SetPIN(settings.PIN)

		disc, err := cmdutil.NewDiscoverier(id, settings)
		if err != nil {
			slog.Warn("Multicast discovery disabled", "error", err)
		} else {
			recver.SetDiscoverier(disc)
			if settings.MDNS {
				recver.SetMDNS(localsend.NewMDNS(disc))
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			<-utils.WaitForSignal()
			recver.Stop()
		}()

		slog.Info("Receiving", "alias", id.Alias, "fingerprint", id.Fingerprint, "dir", settings.SaveDir)
		return recver.Start(ctx)
	},
}

func approver(settings config.Settings) session.TransferApprover {
	if interactive {
		return session.NewPrompt(os.Stdin, os.Stdout)
	}

	if len(settings.AcceptExt) == 0 && maxSize <= 0 {
		return session.AcceptAll
	}

	return session.Policy{
		AllowedExt: settings.AcceptExt,
		MaxSize:    maxSize,
	}
}

func init() {
	node.Register(Cmd)
	Cmd.PersistentFlags().StringVarP(&savetodir, "dir", "d", ".", "Directory for received files")
	Cmd.PersistentFlags().StringVarP(&acceptExt, "accept-ext", "a", "", "Comma-separated list of allowed file extensions (e.g., epub,pdf,mobi). Empty means accept all.")
	Cmd.PersistentFlags().Int64Var(&maxSize, "max-size", 0, "Reject files larger than this many bytes (0 means no limit)")
	Cmd.PersistentFlags().BoolVarP(&interactive, "interactive", "i", false, "Ask before accepting each file")
	Cmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not record transfers in the history")
}
