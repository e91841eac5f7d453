package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/0w0mewo/localsend-engine/internal/localsend/recv"
	"github.com/0w0mewo/localsend-engine/internal/utils"
)

// ReverseSender shares files through the download API: peers call
// prepare-download and pull the files themselves.
type ReverseSender struct {
	baseSender
	receiver *recv.FileReceiver
}

func NewReverseSender(receiver *recv.FileReceiver) *ReverseSender {
	return &ReverseSender{
		baseSender: newBaseSender(),
		receiver:   receiver,
	}
}

// Start serves the queued files until ctx is done or Cancel is called.
func (rs *ReverseSender) Start(ctx context.Context) error {
	files := rs.shared()
	if len(files) == 0 {
		return errors.New("no file to share")
	}

	rs.receiver.SetPIN(rs.pin)
	rs.receiver.Share(files...)

	ip, err := utils.GetMyIPv4Addr()
	if err != nil {
		slog.Warn("Fail to list local addresses", "error", err)
	}

	slog.Info("Start reverse sending server", "files", len(files))
	for idx := range ip {
		host := net.JoinHostPort(ip[idx].String(), strconv.Itoa(rs.receiver.Port()))
		fmt.Fprintf(os.Stdout, "Sharing %d file(s) at %s\n", len(files), host)
	}

	go func() {
		<-ctx.Done()
		rs.receiver.Stop()
	}()

	return rs.receiver.Start(ctx)
}

func (rs *ReverseSender) Cancel() error {
	slog.Info("Shutdown reverse sending server")
	return rs.receiver.Stop()
}
