package share

import (
	"context"
	"errors"
	"log/slog"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	"github.com/0w0mewo/localsend-engine/internal/config"
	lsrecv "github.com/0w0mewo/localsend-engine/internal/localsend/recv"
	lssend "github.com/0w0mewo/localsend-engine/internal/localsend/send"
	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/utils"
	"github.com/spf13/cobra"
)

var (
	node  cmdutil.NodeFlags
	files []string
)

var Cmd = &cobra.Command{
	Use:   "share [files]...",
	Short: "Share files for peers to download",
	Long:  "Serve files through the download API (Reverse File Transfer)",
	RunE: func(cmd *cobra.Command, args []string) error {
		files = append(files, args...)
		if len(files) == 0 {
			return errors.New("File is required")
		}

		dir, settings, err := cmdutil.LoadSettings()
		if err != nil {
			return err
		}
		if err := node.Apply(cmd, &settings); err != nil {
			return err
		}

		return Run(dir, settings, files)
	},
}

// Run shares paths until interrupted. Uploads are refused while sharing.
func Run(dir string, settings config.Settings, paths []string) error {
	id, err := cmdutil.LoadIdentity(dir, settings, true)
	if err != nil {
		return err
	}

	sessman := cmdutil.NewManager(session.RejectAll, session.NoSink{}, settings)
	closeHistory := cmdutil.OpenHistory(dir, settings, sessman)
	defer closeHistory()

	recver := lsrecv.NewFileReceiver(id, sessman)
	if disc, err := cmdutil.NewDiscoverier(id, settings); err != nil {
		slog.Warn("Multicast discovery disabled", "error", err)
	} else {
		recver.SetDiscoverier(disc)
	}

	sender := lssend.NewReverseSender(recver)
	sender.SetPIN(settings.PIN)
	if err := cmdutil.AddPaths(sender, paths); err != nil {
		return err
	}

	go func() {
		<-utils.WaitForSignal()

		slog.Info("Abort")
		if err := sender.Cancel(); err != nil {
			slog.Error("Fail to cancel", "error", err)
		}
	}()

	return sender.Start(context.Background())
}

func init() {
	node.Register(Cmd)
	Cmd.PersistentFlags().StringSliceVarP(&files, "file", "f", []string{}, "File/Directory to be shared")
}
