package models

import (
	"encoding/json"
	"testing"
)

func TestAnnouncementWireFormat(t *testing.T) {
	anno := Announcement{
		DeviceInfo: NewDeviceInfo("Nice Orange", "ABCDEF"),
		Port:       53317,
		Protocol:   ProtocolHTTPS,
		Announce:   true,
	}
	anno.IP = "192.168.1.2"

	b, err := json.Marshal(anno)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for _, key := range []string{"alias", "version", "deviceModel", "deviceType", "fingerprint", "port", "protocol", "announce"} {
		if _, ok := flat[key]; !ok {
			t.Errorf("field %q missing from %s", key, b)
		}
	}
	if _, ok := flat["IP"]; ok {
		t.Error("IP must not be serialized")
	}
	if flat["version"] != ProtocolVersion {
		t.Errorf("version = %v; want %s", flat["version"], ProtocolVersion)
	}
}

func TestGenBytesMeta(t *testing.T) {
	meta := GenBytesMeta("abc.txt", "", []byte("Hello world!"))

	if meta.Size != 12 {
		t.Errorf("Size = %d; want 12", meta.Size)
	}
	if meta.Checksum != "c0535e4be2b79ffd93291305436bf889314e4a3faec05ecffcbb7df31ad9e51a" {
		t.Errorf("Checksum = %s", meta.Checksum)
	}
	if meta.FileMIME == "" {
		t.Error("FileMIME is empty")
	}
	if meta.Id == "" {
		t.Error("Id is empty")
	}
}
