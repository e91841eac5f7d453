package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	"github.com/0w0mewo/localsend-engine/cmd/share"
	"github.com/0w0mewo/localsend-engine/internal/config"
	"github.com/0w0mewo/localsend-engine/internal/identity"
	"github.com/0w0mewo/localsend-engine/internal/localsend"
	lssend "github.com/0w0mewo/localsend-engine/internal/localsend/send"
	"github.com/0w0mewo/localsend-engine/internal/models"
	"github.com/0w0mewo/localsend-engine/internal/utils"
	"github.com/spf13/cobra"
)

var (
	node           cmdutil.NodeFlags
	ip             string
	port           int
	to             string
	scanTimeout    int64
	files          []string
	useDownloadAPI bool
)

var Cmd = &cobra.Command{
	Use:   "send [files]...",
	Short: "Send files to localsend instance",
	Long:  "Send files to localsend instance",
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

		if useDownloadAPI {
			return share.Run(dir, settings, files)
		}

		if ip == "" && to == "" {
			return errors.New("IP address or device is required")
		}

		id, err := cmdutil.LoadIdentity(dir, settings, false)
		if err != nil {
			return err
		}

		target, err := resolveTarget(id, settings)
		if err != nil {
			return err
		}

		sender := lssend.NewForwardSender(id.Sender())
		if err := sender.Init(target); err != nil {
			return err
		}
		sender.SetPIN(settings.PIN)
		if err := cmdutil.AddPaths(sender, files); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			<-utils.WaitForSignal()

			slog.Info("Abort")
			cancel()
			if err := sender.Cancel(); err != nil {
				slog.Error("Fail to cancel", "error", err)
			}
		}()

		slog.Info("Start sending", "to", target.Alias, "addr", target.IP, "files", len(files))
		report, err := sender.Send(ctx)
		if err != nil {
			return err
		}

		if report.Declined {
			fmt.Println("Peer declined every file")
			return nil
		}
		for _, f := range report.Files {
			switch {
			case !f.Accepted:
				fmt.Printf("\t%s: declined\n", f.Meta.Filename)
			case f.Err != nil:
				fmt.Printf("\t%s: failed (%v)\n", f.Meta.Filename, f.Err)
			default:
				fmt.Printf("\t%s: sent\n", f.Meta.Filename)
			}
		}

		if report.Failed() > 0 {
			return fmt.Errorf("%d file(s) failed", report.Failed())
		}
		return nil
	},
}

// resolveTarget asks the device at --ip who it is, or looks --to up among
// the peers seen on the network.
func resolveTarget(id *identity.Identity, settings config.Settings) (models.SenderInfo, error) {
	if ip != "" {
		info, err := localsend.GetDeviceInfo(id.Sender(), ip, port, settings.HTTPS)
		if err != nil {
			return models.SenderInfo{}, fmt.Errorf("get device info: %w", err)
		}
		return info, nil
	}

	disc, err := cmdutil.Discover(context.Background(), id, settings, time.Second*time.Duration(scanTimeout))
	if err != nil {
		return models.SenderInfo{}, err
	}

	for _, fingerprint := range []string{to, strings.ToUpper(to)} {
		if p, ok := disc.Lookup(fingerprint); ok {
			return p.Sender(), nil
		}
	}
	if p, ok := disc.FindByAlias(to); ok {
		return p.Sender(), nil
	}

	return models.SenderInfo{}, fmt.Errorf("device %q not found", to)
}

func init() {
	node.Register(Cmd)
	Cmd.PersistentFlags().StringVar(&ip, "ip", "", "IP address of remote localsend instance")
	Cmd.PersistentFlags().IntVar(&port, "remote-port", 53317, "Port of remote localsend instance")
	Cmd.PersistentFlags().StringVar(&to, "to", "", "Alias or fingerprint of a device found by scanning")
	Cmd.PersistentFlags().Int64VarP(&scanTimeout, "timeout", "t", 4, "scan duration in seconds when --to is given")
	Cmd.PersistentFlags().StringSliceVarP(&files, "file", "f", []string{}, "File/Directory to be sent")
	Cmd.PersistentFlags().BoolVar(&useDownloadAPI, "dapi", false, "Use Download API(Reverse File Transfer)")
}
