package models

// ProtocolVersion is the LocalSend protocol version spoken by this device.
const ProtocolVersion = "2.0"

const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// Announcement is the multicast discovery message. Announce distinguishes a
// request (peer is broadcasting) from a response to someone else's request.
type Announcement struct {
	DeviceInfo
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Announce bool   `json:"announce"`
}

func (anno Announcement) GetDeviceInfo() DeviceInfo {
	return anno.DeviceInfo
}

// Sender drops the announce flag.
func (anno Announcement) Sender() SenderInfo {
	return SenderInfo{
		DeviceInfo: anno.DeviceInfo,
		Port:       anno.Port,
		Protocol:   anno.Protocol,
	}
}

type DeviceInfo struct {
	IP          string `json:"-"` // not part of the protocol
	Alias       string `json:"alias"`
	Version     string `json:"version"`
	DeviceModel string `json:"deviceModel,omitempty"` // nullable per protocol
	DeviceType  string `json:"deviceType,omitempty"`  // nullable per protocol
	Fingerprint string `json:"fingerprint"`
	Download    bool   `json:"download,omitempty"` // optional, default false
}

// SenderInfo extends DeviceInfo with port and protocol fields.
// Used in register responses and prepare-upload requests.
type SenderInfo struct {
	DeviceInfo
	Port     int    `json:"port"`
	Protocol string `json:"protocol"` // "http" or "https"
}

func NewDeviceInfo(alias string, fingerprint string) DeviceInfo {
	return DeviceInfo{
		Alias:       alias,
		Version:     ProtocolVersion,
		DeviceModel: "LocalSend-CLI",
		DeviceType:  "headless",
		Fingerprint: fingerprint,
		Download:    false,
	}
}
