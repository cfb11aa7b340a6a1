// config.go: settings struct and functions to load and save the configuration.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CameraConfig holds the configuration for a single camera.
type CameraConfig struct {
	ID       int    // device index of the camera
	Name     string // display name
	Enabled  bool   // whether this camera participates in the capture loop
	Interval int    // capture interval override in seconds, 0 uses capture.interval
}

// LogConfig contains settings for a rotated log file.
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to the log file
	MaxSizeMB  int    // maximum log size in MB before rotation
	MaxBackups int    // number of rotated files to keep
	MaxAgeDays int    // maximum age of rotated files in days
}

// MainSettings contains top level application settings.
type MainSettings struct {
	Name string    // node name used in records and alerts
	Log  LogConfig // main log file settings
}

// CaptureSettings control the per camera capture cycle.
type CaptureSettings struct {
	Interval         int            // capture interval in seconds
	FailureThreshold int            // consecutive capture failures before a camera enters error state
	DeviceTimeout    int            // per capture device timeout in seconds
	PhotoPolicy      string         // "always" or "detections"
	Cameras          []CameraConfig // configured cameras
}

// DetectionSettings control the detection backend.
type DetectionSettings struct {
	Backend    string  // detection backend, "stub" or external
	Threshold  float64 // confidence threshold for qualifying detections
	Timeout    int     // caller side inference timeout in seconds
	CropPad    int     // padding in pixels around detection crops
	Concurrent bool    // true if the backend tolerates concurrent detect calls
}

// VideoSettings control escalation to video recording.
type VideoSettings struct {
	Enabled  bool // escalate to video on qualifying detections
	Duration int  // recording duration in seconds, extended on repeated triggers
	Cooldown int  // cooldown after a recording closes, in seconds
}

// StorageSettings control media and catalog placement and retention.
type StorageSettings struct {
	DataPath  string // base directory for photos, crops, videos and the catalog
	Retention struct {
		Enabled         bool // true to enable periodic cleanup
		PhotoMaxAgeDays int  // delete photo records older than this
		VideoMaxAgeDays int  // delete video records older than this
		IntervalMinutes int  // cleanup cadence
	}
}

// SQLiteSettings contains the catalog SQLite output settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains the catalog MySQL output settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     int
}

// OutputSettings selects the catalog store backend.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// MonitoringSettings control system resource and battery monitoring.
type MonitoringSettings struct {
	Enabled            bool    // enable system stats sampling
	IntervalSeconds    int     // sampling cadence
	LowPowerThreshold  float64 // battery percentage below which low power mode engages
	IntervalMultiplier int     // capture interval multiplier while in low power mode
	DisableVideo       bool    // disable video escalation while in low power mode
}

// TelemetrySettings control the Prometheus metrics endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string // listen address, e.g. "0.0.0.0:8090"
}

// NotificationSettings control push alerts for camera faults and detections.
type NotificationSettings struct {
	Enabled           bool
	URLs              []string // shoutrrr service URLs
	OnDetection       bool     // also push an alert when a bird is detected
	DedupWindowMinute int      // suppress repeated alerts for the same camera within this window
}

// MQTTSettings control optional detection publishing.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug bool // true to enable debug level logging

	Main         MainSettings
	Capture      CaptureSettings
	Detection    DetectionSettings
	Video        VideoSettings
	Storage      StorageSettings
	Output       OutputSettings
	Monitoring   MonitoringSettings
	Telemetry    TelemetrySettings
	Notification NotificationSettings
	MQTT         MQTTSettings
}

// CaptureInterval returns the effective capture interval for a camera.
func (s *Settings) CaptureInterval(cam *CameraConfig) time.Duration {
	secs := s.Capture.Interval
	if cam.Interval > 0 {
		secs = cam.Interval
	}
	if secs <= 0 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// EnabledCameras returns the cameras that participate in the capture loop.
func (s *Settings) EnabledCameras() []CameraConfig {
	var cams []CameraConfig
	for _, c := range s.Capture.Cameras {
		if c.Enabled {
			cams = append(cams, c)
		}
	}
	return cams
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into a Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create one with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a default config file to the first config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	if err := SaveYAMLConfig(configPath, settings); err != nil {
		return err
	}

	log.Printf("Created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "pirdfy"))
	}
	homeDir, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "pirdfy"))
	}
	paths = append(paths, ".")

	if len(paths) == 0 {
		return nil, fmt.Errorf("no config paths available")
	}
	return paths, nil
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance under a read lock.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to the given path as YAML via a temp file
// rename so the write is atomic.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temp config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temp config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GetBasePath joins a relative path onto the configured data path and ensures
// the directory exists. Absolute paths are returned unchanged.
func (s *Settings) GetBasePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	full := filepath.Join(s.Storage.DataPath, path)
	if err := os.MkdirAll(full, 0o755); err != nil {
		log.Printf("Failed to create directory %s: %v", full, err)
	}
	return full
}
