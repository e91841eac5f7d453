package recv

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/identity"
	"github.com/0w0mewo/localsend-engine/internal/localsend"
	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	lsutils "github.com/0w0mewo/localsend-engine/internal/localsend/utils"
	"github.com/0w0mewo/localsend-engine/internal/models"
	"github.com/gofiber/fiber/v2"
)

// FileReceiver serves the LocalSend HTTP API. Every decision about
// sessions and tokens is left to the session manager.
type FileReceiver struct {
	identity  *identity.Identity
	sessman   *session.Manager
	webServer *fiber.App

	discoverier *localsend.Discoverier
	mdns        *localsend.MDNS
	expectedPin string
	stall       time.Duration

	shareMu sync.RWMutex
	shared  []session.SharedFile

	stopMu sync.Mutex
	cancel context.CancelFunc
}

func NewFileReceiver(id *identity.Identity, sessman *session.Manager) *FileReceiver {
	fr := &FileReceiver{
		identity:  id,
		sessman:   sessman,
		webServer: lsutils.NewWebServer(),
		stall:     lsutils.DefaultStallTimeout,
	}

	server := fr.webServer
	server.Post(constants.RegisterPath, fr.registerHandler)
	server.Get(constants.InfoPath, fr.infoHandler)
	server.Post(constants.PreuploadPath, fr.preUploadHandler)
	server.Post(constants.UploadPath, fr.uploadHandler)
	server.Post(constants.CancelPath, fr.cancelHandler)
	server.Post(constants.PreDownloadPath, fr.preDownloadHandler)
	server.Get(constants.DownloadPath, fr.downloadHandler)

	return fr
}

func (fr *FileReceiver) SetPIN(pin string) {
	fr.expectedPin = pin
}

// SetStallTimeout bounds how long a connection may sit idle in the middle
// of a request. Zero disables the bound. It must be called before Serve.
func (fr *FileReceiver) SetStallTimeout(d time.Duration) {
	fr.stall = d
}

// SetDiscoverier makes Serve run discovery and lets /register calls
// populate its peer table.
func (fr *FileReceiver) SetDiscoverier(d *localsend.Discoverier) {
	fr.discoverier = d
}

func (fr *FileReceiver) SetMDNS(m *localsend.MDNS) {
	fr.mdns = m
}

// Share offers files through prepare-download. It replaces what was shared
// before.
func (fr *FileReceiver) Share(files ...session.SharedFile) {
	fr.shareMu.Lock()
	defer fr.shareMu.Unlock()

	fr.shared = files
}

func (fr *FileReceiver) sharedFiles() []session.SharedFile {
	fr.shareMu.RLock()
	defer fr.shareMu.RUnlock()

	return fr.shared
}

func (fr *FileReceiver) Port() int {
	return fr.identity.Port
}

func (fr *FileReceiver) App() *fiber.App {
	return fr.webServer
}

// Start listens on the identity's port on all interfaces.
func (fr *FileReceiver) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", fr.identity.Port))
	if err != nil {
		return err
	}
	return fr.Serve(ctx, ln)
}

// Serve runs the API on ln, wrapped in TLS when the identity speaks https,
// together with discovery and the session sweeper. It blocks until Stop.
func (fr *FileReceiver) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	fr.stopMu.Lock()
	fr.cancel = cancel
	fr.stopMu.Unlock()

	fr.sessman.Start(ctx)

	if fr.discoverier != nil {
		go func() {
			if err := fr.discoverier.Listen(ctx); err != nil {
				slog.Error("Discovery stopped", "error", err)
			}
		}()
	}

	if fr.mdns != nil {
		if err := fr.mdns.Advertise(); err != nil {
			slog.Warn("Fail to advertise over mDNS", "error", err)
		}
		go func() {
			if err := fr.mdns.Browse(ctx); err != nil {
				slog.Warn("mDNS browsing stopped", "error", err)
			}
		}()
	}

	ln = lsutils.StallListener(ln, fr.stall)
	if fr.identity.Protocol == models.ProtocolHTTPS {
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{fr.identity.Certificate},
			MinVersion:   tls.VersionTLS12,
		})
	}

	slog.Info("Waiting for receiving files (Ctrl-C to terminate)", "alias", fr.identity.Alias, "addr", ln.Addr(), "protocol", fr.identity.Protocol)
	return fr.webServer.Listener(ln)
}

func (fr *FileReceiver) Stop() error {
	slog.Info("Stop receiving")

	fr.stopMu.Lock()
	if fr.cancel != nil {
		fr.cancel()
	}
	fr.stopMu.Unlock()

	if fr.mdns != nil {
		fr.mdns.Stop()
	}
	return fr.webServer.Shutdown()
}
