package localsend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/models"
)

const (
	DefaultAnnounceInterval = 10 * time.Second
	DefaultLivenessTimeout  = 30 * time.Second

	maxDatagram = 64 << 10
)

// Where a peer record was learned from.
const (
	SourceMulticast = "multicast"
	SourceMDNS      = "mdns"
	SourceRegister  = "register"
)

// DefaultGroup is the LocalSend multicast group.
var DefaultGroup = &net.UDPAddr{
	IP:   net.ParseIP(constants.MulticastGroup),
	Port: constants.DefaultPort,
}

// PeerRecord is a peer seen recently. IP holds the address the last
// announcement came from.
type PeerRecord struct {
	models.Announcement
	IP       string
	LastSeen time.Time
	Source   string
}

// Sender is the peer as a protocol device descriptor with its address.
func (p PeerRecord) Sender() models.SenderInfo {
	info := p.Announcement.Sender()
	info.IP = p.IP
	return info
}

type DiscoveryOptions struct {
	Group            *net.UDPAddr
	AnnounceInterval time.Duration
	LivenessTimeout  time.Duration
	Now              func() time.Time
}

func (o DiscoveryOptions) withDefaults() DiscoveryOptions {
	if o.Group == nil {
		o.Group = DefaultGroup
	}
	if o.AnnounceInterval <= 0 {
		o.AnnounceInterval = DefaultAnnounceInterval
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = DefaultLivenessTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Discoverier announces this device on the multicast group and keeps a
// table of the peers it hears from, keyed by fingerprint.
type Discoverier struct {
	conn PacketTransport
	self models.Announcement
	opts DiscoveryOptions

	mu    sync.RWMutex
	peers map[string]PeerRecord

	stopMu sync.Mutex
	stop   context.CancelFunc
}

func NewDiscoverier(self models.Announcement, conn PacketTransport, opts DiscoveryOptions) *Discoverier {
	return &Discoverier{
		conn:  conn,
		self:  self,
		opts:  opts.withDefaults(),
		peers: make(map[string]PeerRecord),
	}
}

// Announce broadcasts an announcement request. Delivery is best effort.
func (d *Discoverier) Announce() error {
	return d.send(true)
}

func (d *Discoverier) send(announce bool) error {
	anno := d.self
	anno.Announce = announce

	b, err := json.Marshal(anno)
	if err != nil {
		return err
	}

	_, err = d.conn.WriteTo(b, d.opts.Group)
	return err
}

// OnReceive handles one datagram. Anything that is not a usable
// announcement from another device is dropped without an error. An
// announcement request is answered with a multicast response; responses
// are never answered, so two devices cannot keep each other talking.
func (d *Discoverier) OnReceive(raw []byte, src net.Addr) {
	var anno models.Announcement
	if err := json.Unmarshal(raw, &anno); err != nil {
		slog.Debug("Drop malformed announcement", "from", src, "error", err)
		return
	}

	if anno.Fingerprint == "" {
		slog.Debug("Drop announcement without fingerprint", "from", src)
		return
	}

	if anno.Fingerprint == d.self.Fingerprint {
		return
	}

	d.Upsert(PeerRecord{
		Announcement: anno,
		IP:           hostOf(src),
		Source:       SourceMulticast,
	})

	if anno.Announce {
		if err := d.send(false); err != nil {
			slog.Warn("Fail to answer announcement", "to", anno.Alias, "error", err)
		}
	}
}

func hostOf(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4.String()
		}
		return a.IP.String()
	case nil:
		return ""
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Upsert adds or refreshes a peer. A record carrying our own fingerprint is
// ignored. It reports whether the peer was not in the table before.
func (d *Discoverier) Upsert(rec PeerRecord) bool {
	if rec.Fingerprint == "" || rec.Fingerprint == d.self.Fingerprint {
		return false
	}

	if rec.LastSeen.IsZero() {
		rec.LastSeen = d.opts.Now()
	}
	rec.Announce = false
	rec.DeviceInfo.IP = rec.IP

	d.mu.Lock()
	_, known := d.peers[rec.Fingerprint]
	d.peers[rec.Fingerprint] = rec
	d.mu.Unlock()

	if !known {
		slog.Info("Discovered device", "alias", rec.Alias, "ip", rec.IP, "via", rec.Source)
	}
	return !known
}

// Sweep forgets peers not heard from within the liveness timeout.
func (d *Discoverier) Sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for fp, rec := range d.peers {
		if now.Sub(rec.LastSeen) > d.opts.LivenessTimeout {
			delete(d.peers, fp)
			slog.Debug("Forget device", "alias", rec.Alias, "ip", rec.IP)
		}
	}
}

// Peers returns a snapshot of the table ordered by alias.
func (d *Discoverier) Peers() []PeerRecord {
	d.mu.RLock()
	res := make([]PeerRecord, 0, len(d.peers))
	for _, rec := range d.peers {
		res = append(res, rec)
	}
	d.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Alias != res[j].Alias {
			return res[i].Alias < res[j].Alias
		}
		return res[i].Fingerprint < res[j].Fingerprint
	})
	return res
}

func (d *Discoverier) Lookup(fingerprint string) (PeerRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.peers[fingerprint]
	return rec, ok
}

// FindByAlias matches exactly first, then ignoring case.
func (d *Discoverier) FindByAlias(alias string) (PeerRecord, bool) {
	peers := d.Peers()

	for _, rec := range peers {
		if rec.Alias == alias {
			return rec, true
		}
	}
	for _, rec := range peers {
		if strings.EqualFold(rec.Alias, alias) {
			return rec, true
		}
	}
	return PeerRecord{}, false
}

// Listen announces this device and processes incoming announcements until
// ctx is done or Shutdown is called. It re-announces and sweeps the table
// periodically.
func (d *Discoverier) Listen(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.stopMu.Lock()
	d.stop = cancel
	d.stopMu.Unlock()

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- d.receiveLoop()
	}()

	if err := d.Announce(); err != nil {
		slog.Warn("Fail to send announcement", "error", err)
	}

	announceTicker := time.NewTicker(d.opts.AnnounceInterval)
	defer announceTicker.Stop()

	sweepTicker := time.NewTicker(d.opts.LivenessTimeout / 3)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.conn.Close()
			<-recvErr
			return nil
		case err := <-recvErr:
			d.conn.Close()
			return err
		case <-announceTicker.C:
			if err := d.Announce(); err != nil {
				slog.Warn("Fail to send announcement", "error", err)
			}
		case <-sweepTicker.C:
			d.Sweep(d.opts.Now())
		}
	}
}

func (d *Discoverier) receiveLoop() error {
	buf := make([]byte, maxDatagram)

	for {
		n, src, err := d.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		d.OnReceive(buf[:n], src)
	}
}

// Shutdown stops a running Listen.
func (d *Discoverier) Shutdown() error {
	d.stopMu.Lock()
	defer d.stopMu.Unlock()

	if d.stop != nil {
		d.stop()
	}
	return nil
}
