package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// AppDirectoryName is the per-user configuration directory name.
	AppDirectoryName = "localsend-engine"
	// EnvConfigDir overrides the configuration directory.
	EnvConfigDir = "LOCALSEND_CONFIG_DIR"

	settingsFileName = "settings.json"
	historyFileName  = "history.db"
)

// Duration is a time.Duration that reads and writes as "30s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Settings are the tunables of a node. Protocol constants such as the
// multicast group and the endpoint paths are not configurable.
type Settings struct {
	Port             int      `json:"port"`
	HTTPS            bool     `json:"https"`
	SaveDir          string   `json:"saveDir"`
	PIN              string   `json:"pin,omitempty"`
	AcceptExt        []string `json:"acceptExt,omitempty"`
	MDNS             bool     `json:"mdns"`
	History          bool     `json:"history"`
	AnnounceInterval Duration `json:"announceInterval"`
	LivenessTimeout  Duration `json:"livenessTimeout"`
	SessionTimeout   Duration `json:"sessionTimeout"`
	SessionRetention Duration `json:"sessionRetention"`
}

func Default() Settings {
	return Settings{
		Port:             53317,
		HTTPS:            true,
		SaveDir:          ".",
		MDNS:             false,
		History:          true,
		AnnounceInterval: Duration(10 * time.Second),
		LivenessTimeout:  Duration(30 * time.Second),
		SessionTimeout:   Duration(2 * time.Minute),
		SessionRetention: Duration(30 * time.Second),
	}
}

// ResolveConfigDir returns the directory holding identity and settings.
//
// If LOCALSEND_CONFIG_DIR is set, its value is used as an explicit override.
func ResolveConfigDir() (string, error) {
	if override := os.Getenv(EnvConfigDir); override != "" {
		return override, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}

	return filepath.Join(base, AppDirectoryName), nil
}

// EnsureDir creates the configuration directory if needed.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// SettingsPath returns the settings file inside dir.
func SettingsPath(dir string) string {
	return filepath.Join(dir, settingsFileName)
}

// HistoryPath returns the transfer history database inside dir.
func HistoryPath(dir string) string {
	return filepath.Join(dir, historyFileName)
}

// Load reads settings from path. A missing file yields the defaults; fields
// absent from the file keep their default value.
func Load(path string) (Settings, error) {
	settings := Default()

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}

	if err := json.Unmarshal(raw, &settings); err != nil {
		return Default(), fmt.Errorf("parse settings: %w", err)
	}
	settings.AcceptExt = NormalizeExt(settings.AcceptExt)

	return settings, settings.Validate()
}

// NormalizeExt lower-cases extensions and strips surrounding spaces and the
// leading dot, dropping the ones left empty. ".PDF" and "pdf" are the same.
func NormalizeExt(exts []string) []string {
	var res []string
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			res = append(res, ext)
		}
	}
	return res
}

func encode(settings Settings) ([]byte, error) {
	raw, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return append(raw, '\n'), nil
}

// Save marshals and writes settings to disk.
func Save(path string, settings Settings) error {
	raw, err := encode(settings)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Print writes settings to w in the same form Save stores them.
func Print(w io.Writer, settings Settings) error {
	raw, err := encode(settings)
	if err != nil {
		return err
	}

	_, err = w.Write(raw)
	return err
}

func (s Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.LivenessTimeout <= 0 || s.SessionTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if s.AnnounceInterval <= 0 {
		return errors.New("announce interval must be positive")
	}
	return nil
}

func (s Settings) Protocol() string {
	if s.HTTPS {
		return "https"
	}
	return "http"
}
