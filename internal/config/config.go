package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DegradedPolicy controls scoring behavior when no image hosting is configured.
// The aesthetic scorer needs a hosted URL for the frame, so without hosting the
// pipeline either scores randomly (the historical behavior) or rejects frames.
type DegradedPolicy string

const (
	DegradedRandom DegradedPolicy = "random"
	DegradedReject DegradedPolicy = "reject"
)

// CameraConfig holds frame source settings.
type CameraConfig struct {
	// StreamURL is the rtsp:// feed address. Anything else selects the
	// synthetic test-pattern source.
	StreamURL string `yaml:"stream_url"`

	// Transport is the RTSP transport passed to ffmpeg (tcp or udp).
	Transport string `yaml:"transport"`

	// CaptureTimeoutSeconds bounds a single frame grab.
	CaptureTimeoutSeconds int `yaml:"capture_timeout_seconds"`
}

// VisionConfig holds settings for the remote vision API and the local
// classifier fallback.
type VisionConfig struct {
	BaseURL     string `yaml:"base_url"`
	Token       string `yaml:"token"`
	DetectModel string `yaml:"detect_model"`
	ScoreModel  string `yaml:"score_model"`
	StyleModel  string `yaml:"style_model"`
	ScorePrompt string `yaml:"score_prompt"`
	StylePrompt string `yaml:"style_prompt"`

	// TimeoutSeconds bounds each remote call. One attempt per call, no retry.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// OllamaURL and OllamaModel configure the local person classifier used
	// when Token is empty.
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
}

// HostingConfig holds image hosting credentials.
type HostingConfig struct {
	ImgBBKey string `yaml:"imgbb_key"`
}

// PushConfig holds messaging provider settings.
type PushConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint"`
}

// CaptureConfig holds the capture cadence and ranking policy.
type CaptureConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	TopN            int `yaml:"top_n"`

	// QualityThreshold is the minimum score (0-100) a frame needs to be
	// offered to the ranking at all.
	QualityThreshold float64 `yaml:"quality_threshold"`

	DegradedPolicy DegradedPolicy `yaml:"degraded_policy"`
}

// PublishConfig holds the daily publish schedule.
type PublishConfig struct {
	Enabled bool     `yaml:"enabled"`
	Times   []string `yaml:"times"` // "HH:MM", local time
}

// WebConfig holds dashboard server settings.
type WebConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// Config holds application configuration. Loaded once at startup and
// read-only afterwards.
type Config struct {
	DataDir string        `yaml:"data_dir"`
	Camera  CameraConfig  `yaml:"camera"`
	Vision  VisionConfig  `yaml:"vision"`
	Hosting HostingConfig `yaml:"hosting"`
	Push    PushConfig    `yaml:"push"`
	Capture CaptureConfig `yaml:"capture"`
	Publish PublishConfig `yaml:"publish"`
	Web     WebConfig     `yaml:"web"`

	// DisabledTools lists MCP tool names to exclude from registration.
	DisabledTools []string `yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			Transport:             "tcp",
			CaptureTimeoutSeconds: 15,
		},
		Vision: VisionConfig{
			BaseURL:        "https://api-inference.modelscope.cn/api-inference/v1/models",
			DetectModel:    "damo/cv_tinynas_human-detection_damoyolo",
			ScoreModel:     "damo/cv_resnet50_image-quality-assessment_mos",
			StyleModel:     "damo/cv_unet_person-image-cartoon-comic_compound-models",
			ScorePrompt:    "Rate the aesthetic quality of this photograph. Reply with a single number between 0 and 100.",
			StylePrompt:    "Redraw this photo as a clean, flat, brightly colored comic illustration, keeping the people and background recognizable.",
			TimeoutSeconds: 120,
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "llama3.2-vision:11b",
		},
		Push: PushConfig{
			Enabled:  true,
			Endpoint: "https://www.pushplus.plus/send",
		},
		Capture: CaptureConfig{
			IntervalSeconds:  30,
			TopN:             3,
			QualityThreshold: 50,
			DegradedPolicy:   DegradedRandom,
		},
		Publish: PublishConfig{
			Enabled: true,
			Times:   []string{"12:00", "18:00", "21:00"},
		},
		Web: WebConfig{
			Bind: "127.0.0.1",
			Port: 8420,
		},
	}
}

// DefaultBaseDir returns ~/.snapstrip, the default data directory.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".snapstrip"), nil
}

// Load loads configuration from path. A missing file yields the defaults.
// Values present in the file override defaults field by field.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, failing if the file
// already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks the configuration and returns a list of problems.
// An empty list means the config is usable; serve mode treats a non-empty
// list as fatal only for subsystems that are actually enabled.
func (c *Config) Validate() []string {
	var problems []string

	if c.Camera.StreamURL != "" && !strings.HasPrefix(c.Camera.StreamURL, "rtsp://") {
		problems = append(problems, "camera.stream_url must start with rtsp:// (leave empty for the test pattern source)")
	}
	if c.Camera.Transport != "tcp" && c.Camera.Transport != "udp" {
		problems = append(problems, "camera.transport must be tcp or udp")
	}

	if c.Capture.IntervalSeconds < 5 {
		problems = append(problems, "capture.interval_seconds must be at least 5")
	}
	if c.Capture.TopN < 1 || c.Capture.TopN > 10 {
		problems = append(problems, "capture.top_n must be between 1 and 10")
	}
	if c.Capture.QualityThreshold < 0 || c.Capture.QualityThreshold > 100 {
		problems = append(problems, "capture.quality_threshold must be between 0 and 100")
	}
	if c.Capture.DegradedPolicy != DegradedRandom && c.Capture.DegradedPolicy != DegradedReject {
		problems = append(problems, "capture.degraded_policy must be random or reject")
	}

	if c.Push.Enabled && c.Push.Token == "" {
		problems = append(problems, "push.token is required when push is enabled")
	}

	for _, t := range c.Publish.Times {
		if !validClock(t) {
			problems = append(problems, fmt.Sprintf("publish.times entry %q is not HH:MM", t))
		}
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		problems = append(problems, "web.port must be between 1 and 65535")
	}

	return problems
}

// validClock reports whether s is a 24h "HH:MM" clock value.
func validClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh := (int(s[0]-'0'))*10 + int(s[1]-'0')
	mm := (int(s[3]-'0'))*10 + int(s[4]-'0')
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return hh < 24 && mm < 60
}

// CapturesDir returns the directory for raw frames.
func (c *Config) CapturesDir() string {
	return filepath.Join(c.DataDir, "captures")
}

// StylizedDir returns the directory for stylized renders.
func (c *Config) StylizedDir() string {
	return filepath.Join(c.DataDir, "stylized")
}

// CollagesDir returns the directory for assembled strips.
func (c *Config) CollagesDir() string {
	return filepath.Join(c.DataDir, "collages")
}

// EnsureDirs creates the data directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.CapturesDir(), c.StylizedDir(), c.CollagesDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Masked returns a copy with credentials replaced by a placeholder, safe for
// display in the dashboard and logs.
func (c *Config) Masked() *Config {
	out := *c
	out.Vision.Token = maskSecret(c.Vision.Token)
	out.Hosting.ImgBBKey = maskSecret(c.Hosting.ImgBBKey)
	out.Push.Token = maskSecret(c.Push.Token)
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
