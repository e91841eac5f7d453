package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.Port != 53317 {
		t.Errorf("Port = %d; want 53317", settings.Port)
	}
	if time.Duration(settings.LivenessTimeout) != 30*time.Second {
		t.Errorf("LivenessTimeout = %v; want 30s", time.Duration(settings.LivenessTimeout))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := SettingsPath(t.TempDir())

	want := Default()
	want.Port = 53318
	want.PIN = "1234"
	want.AcceptExt = []string{"pdf", "epub"}
	want.SessionTimeout = Duration(time.Minute)

	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got.Port != want.Port || got.PIN != want.PIN || got.SessionTimeout != want.SessionTimeout {
		t.Errorf("Load = %+v; want %+v", got, want)
	}
	if len(got.AcceptExt) != 2 {
		t.Errorf("AcceptExt = %v", got.AcceptExt)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := SettingsPath(t.TempDir())
	if err := os.WriteFile(path, []byte(`{"port": 4000, "sessionTimeout": "45s"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Port != 4000 {
		t.Errorf("Port = %d; want 4000", got.Port)
	}
	if time.Duration(got.SessionTimeout) != 45*time.Second {
		t.Errorf("SessionTimeout = %v; want 45s", time.Duration(got.SessionTimeout))
	}
	if !got.HTTPS {
		t.Error("HTTPS default lost")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"bad json":     `{`,
		"bad duration": `{"livenessTimeout": "soon"}`,
		"bad port":     `{"port": 70000}`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := SettingsPath(t.TempDir())
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestResolveConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	got, err := ResolveConfigDir()
	if err != nil {
		t.Fatalf("ResolveConfigDir failed: %v", err)
	}
	if got != dir {
		t.Errorf("ResolveConfigDir = %q; want %q", got, dir)
	}
}

func TestLoadNormalizesAcceptExt(t *testing.T) {
	path := SettingsPath(t.TempDir())
	if err := os.WriteFile(path, []byte(`{"acceptExt": [".PDF", " Epub ", "", "."]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := []string{"pdf", "epub"}; !reflect.DeepEqual(got.AcceptExt, want) {
		t.Errorf("AcceptExt = %q; want %q", got.AcceptExt, want)
	}
}

func TestNormalizeExt(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"pdf"}, []string{"pdf"}},
		{[]string{".MOBI", "  .txt"}, []string{"mobi", "txt"}},
		{[]string{"", " ", "."}, nil},
	}

	for _, tt := range tests {
		if got := NormalizeExt(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NormalizeExt(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintMatchesSave(t *testing.T) {
	path := SettingsPath(t.TempDir())
	settings := Default()
	settings.PIN = "4321"

	if err := Save(path, settings); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Print(&buf, settings); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), saved) {
		t.Errorf("Print = %s; want %s", buf.Bytes(), saved)
	}
}
