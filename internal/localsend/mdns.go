package localsend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/0w0mewo/localsend-engine/internal/models"
	"github.com/grandcat/zeroconf"
)

const (
	MDNSService = "_localsend._tcp"
	MDNSDomain  = "local."
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// MDNS publishes this device over DNS-SD and feeds browsed devices into a
// Discoverier, for networks where the multicast group is filtered.
type MDNS struct {
	disc   *Discoverier
	server *zeroconf.Server

	registerFn registerFunc
	browseFn   browseFunc
}

func NewMDNS(disc *Discoverier) *MDNS {
	return &MDNS{
		disc:       disc,
		registerFn: zeroconf.Register,
	}
}

// Advertise registers the service. Stop withdraws it.
func (m *MDNS) Advertise() error {
	self := m.disc.self

	server, err := m.registerFn(self.Alias, MDNSService, MDNSDomain, self.Port, announcementTXT(self), nil)
	if err != nil {
		return fmt.Errorf("register mDNS service: %w", err)
	}

	m.server = server
	return nil
}

// Browse upserts every device found until ctx is done.
func (m *MDNS) Browse(ctx context.Context) error {
	browse := m.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return err
		}
		browse = resolver.Browse
	}

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := browse(ctx, MDNSService, MDNSDomain, entries); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if entry == nil {
				continue
			}

			rec, ok := parseEntry(entry)
			if !ok {
				slog.Debug("Ignore mDNS entry", "instance", entry.Instance)
				continue
			}
			m.disc.Upsert(rec)
		}
	}
}

func (m *MDNS) Stop() {
	if m.server != nil {
		m.server.Shutdown()
		m.server = nil
	}
}

func announcementTXT(anno models.Announcement) []string {
	return []string{
		"alias=" + anno.Alias,
		"version=" + anno.Version,
		"deviceModel=" + anno.DeviceModel,
		"deviceType=" + anno.DeviceType,
		"fingerprint=" + anno.Fingerprint,
		"protocol=" + anno.Protocol,
		"download=" + strconv.FormatBool(anno.Download),
	}
}

func parseEntry(entry *zeroconf.ServiceEntry) (PeerRecord, bool) {
	txt := make(map[string]string, len(entry.Text))
	for _, kv := range entry.Text {
		k, v, _ := strings.Cut(kv, "=")
		txt[k] = v
	}

	fingerprint := strings.TrimSpace(txt["fingerprint"])
	if fingerprint == "" || len(entry.AddrIPv4) == 0 {
		return PeerRecord{}, false
	}

	alias := txt["alias"]
	if alias == "" {
		alias = entry.Instance
	}

	protocol := txt["protocol"]
	if protocol != models.ProtocolHTTP {
		protocol = models.ProtocolHTTPS
	}

	download, _ := strconv.ParseBool(txt["download"])

	return PeerRecord{
		Announcement: models.Announcement{
			DeviceInfo: models.DeviceInfo{
				Alias:       alias,
				Version:     txt["version"],
				DeviceModel: txt["deviceModel"],
				DeviceType:  txt["deviceType"],
				Fingerprint: fingerprint,
				Download:    download,
			},
			Port:     entry.Port,
			Protocol: protocol,
		},
		IP:     entry.AddrIPv4[0].String(),
		Source: SourceMDNS,
	}, true
}
