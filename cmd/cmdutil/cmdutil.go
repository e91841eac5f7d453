package cmdutil

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/config"
	"github.com/0w0mewo/localsend-engine/internal/identity"
	"github.com/0w0mewo/localsend-engine/internal/localsend"
	"github.com/0w0mewo/localsend-engine/internal/localsend/send"
	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/store"
	"github.com/spf13/cobra"
)

// Set by the root command's persistent flags.
var (
	ConfigDir string
	Verbose   bool
)

func SetupLogger() {
	level := slog.LevelInfo
	if Verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Dir returns the configuration directory, creating it if needed. Without
// it no identity can be kept, so failures are configuration errors.
func Dir() (string, error) {
	dir := ConfigDir
	if dir == "" {
		var err error
		dir, err = config.ResolveConfigDir()
		if err != nil {
			return "", &identity.ConfigurationError{Op: "locate", Err: err}
		}
	}

	if err := config.EnsureDir(dir); err != nil {
		return "", &identity.ConfigurationError{Op: "locate", Err: err}
	}
	return dir, nil
}

// LoadSettings reads settings.json from the configuration directory.
func LoadSettings() (string, config.Settings, error) {
	dir, err := Dir()
	if err != nil {
		return "", config.Settings{}, err
	}

	settings, err := config.Load(config.SettingsPath(dir))
	if err != nil {
		return "", config.Settings{}, err
	}

	return dir, settings, nil
}

// NodeFlags are the flags shared by the commands that run a node.
type NodeFlags struct {
	Port  int
	HTTPS bool
	PIN   string
	MDNS  bool
}

func (nf *NodeFlags) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().IntVar(&nf.Port, "port", 53317, "Port of the transfer server")
	cmd.PersistentFlags().BoolVar(&nf.HTTPS, "https", true, "Do https")
	cmd.PersistentFlags().StringVarP(&nf.PIN, "pin", "p", "", "PIN code")
	cmd.PersistentFlags().BoolVar(&nf.MDNS, "mdns", false, "Also discover peers over mDNS")
}

// Apply overrides settings with the flags given on the command line.
func (nf *NodeFlags) Apply(cmd *cobra.Command, settings *config.Settings) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		settings.Port = nf.Port
	}
	if flags.Changed("https") {
		settings.HTTPS = nf.HTTPS
	}
	if flags.Changed("pin") {
		settings.PIN = nf.PIN
	}
	if flags.Changed("mdns") {
		settings.MDNS = nf.MDNS
	}

	return settings.Validate()
}

func LoadIdentity(dir string, settings config.Settings, download bool) (*identity.Identity, error) {
	return identity.LoadOrCreate(identity.NewFileStore(dir), identity.Options{
		Port:     settings.Port,
		Protocol: settings.Protocol(),
		Download: download,
	})
}

// NewDiscoverier joins the multicast group as id.
func NewDiscoverier(id *identity.Identity, settings config.Settings) (*localsend.Discoverier, error) {
	conn, err := localsend.ListenMulticast(localsend.DefaultGroup)
	if err != nil {
		return nil, err
	}

	return localsend.NewDiscoverier(id.Announcement(true), conn, localsend.DiscoveryOptions{
		AnnounceInterval: time.Duration(settings.AnnounceInterval),
		LivenessTimeout:  time.Duration(settings.LivenessTimeout),
	}), nil
}

func NewManager(approver session.TransferApprover, sink session.Sink, settings config.Settings) *session.Manager {
	sessman := session.NewManager(approver, sink, session.Options{
		Timeout:   time.Duration(settings.SessionTimeout),
		Retention: time.Duration(settings.SessionRetention),
	})

	sessman.OnFinished(func(sess session.Snapshot, file session.FileSnapshot) {
		slog.Info("Transfer finished",
			"direction", sess.Direction,
			"peer", sess.Initiator.Alias,
			"file", file.Meta.Filename,
			"size", file.Meta.Size,
			"state", file.State)
	})

	return sessman
}

// OpenHistory hooks the transfer history into sessman when enabled. The
// returned close func is never nil.
func OpenHistory(dir string, settings config.Settings, sessman *session.Manager) func() {
	if !settings.History {
		return func() {}
	}

	h, err := store.Open(config.HistoryPath(dir))
	if err != nil {
		slog.Warn("Transfer history disabled", "error", err)
		return func() {}
	}

	sessman.OnFinished(h.Hook())
	return func() { h.Close() }
}

// Discover listens for peers for d, browsing mDNS as well when settings ask
// for it. The returned peer table holds what was seen.
func Discover(ctx context.Context, id *identity.Identity, settings config.Settings, d time.Duration) (*localsend.Discoverier, error) {
	disc, err := NewDiscoverier(id, settings)
	if err != nil {
		return nil, err
	}

	slog.Info("Start Scanning")

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := disc.Listen(ctx); err != nil {
			slog.Error("Discovery stopped", "error", err)
		}
	}()

	if settings.MDNS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := localsend.NewMDNS(disc).Browse(ctx); err != nil {
				slog.Warn("mDNS browsing stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Stop Scanning")
	wg.Wait()

	return disc, nil
}

// AddPaths queues files and directories. Paths that cannot be read are
// skipped; an error is returned only when nothing could be queued.
func AddPaths(sender send.FileSender, paths []string) error {
	added := 0
	for _, path := range paths {
		finfo, err := os.Stat(path)
		if err != nil {
			slog.Error("Fail to probe file", "file", path, "error", err)
			continue
		}

		if finfo.IsDir() {
			err = sender.AddDir(path)
		} else {
			err = sender.AddFile(path)
		}
		if err != nil {
			slog.Error("Fail to add, skipping...", "path", path, "error", err)
			continue
		}
		added++
	}

	if added == 0 {
		return errors.New("no file to send")
	}
	return nil
}
