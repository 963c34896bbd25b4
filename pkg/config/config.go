package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env        string           `yaml:"env"`
	Output     string           `yaml:"output"`
	Service    ServiceConfig    `yaml:"service"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Log        LogConfig        `yaml:"log"`
	OTel       OTelConfig       `yaml:"otel"`
}

type ServiceConfig struct {
	URL     string        `yaml:"url"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// KubernetesConfig locates the analysis service inside a cluster. Service is
// "namespace/name" or "name"; empty disables discovery.
type KubernetesConfig struct {
	Service    string `yaml:"service"`
	Kubeconfig string `yaml:"kubeconfig"`
	Context    string `yaml:"context"`
	LocalPort  int    `yaml:"local_port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type OTelConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Headers        string `yaml:"headers"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

func (o OTelConfig) Enabled() bool {
	return o.Endpoint != ""
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Config) DiscoveryEnabled() bool {
	return c.Kubernetes.Service != ""
}

func Defaults() Config {
	return Config{
		Env:    "production",
		Output: "human",
		Service: ServiceConfig{
			URL:     "http://localhost:5000",
			Path:    "/analyze",
			Timeout: 5 * time.Minute,
		},
		Kubernetes: KubernetesConfig{
			LocalPort: 15000,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		OTel: OTelConfig{
			ServiceName:    "repoguardian",
			ServiceVersion: "dev",
		},
	}
}

// DefaultPath is the config file consulted when no explicit path is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "repoguardian", "config.yaml")
}

// Load builds the configuration from defaults, then the YAML file at path
// (or DefaultPath when empty and present), then environment variables. A
// .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Env = getEnv("REPOGUARDIAN_ENV", cfg.Env)
	cfg.Output = getEnv("REPOGUARDIAN_OUTPUT", cfg.Output)
	cfg.Service.URL = getEnv("REPOGUARDIAN_URL", cfg.Service.URL)
	cfg.Service.Path = getEnv("REPOGUARDIAN_PATH", cfg.Service.Path)
	cfg.Kubernetes.Service = getEnv("REPOGUARDIAN_K8S_SERVICE", cfg.Kubernetes.Service)
	cfg.Kubernetes.Kubeconfig = getEnv("KUBECONFIG", cfg.Kubernetes.Kubeconfig)
	cfg.Kubernetes.Context = getEnv("REPOGUARDIAN_K8S_CONTEXT", cfg.Kubernetes.Context)
	cfg.Log.Level = getEnv("REPOGUARDIAN_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("REPOGUARDIAN_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("REPOGUARDIAN_LOG_FILE", cfg.Log.File)
	cfg.OTel.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.Headers = getEnv("OTEL_EXPORTER_OTLP_HEADERS", cfg.OTel.Headers)
	cfg.OTel.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.OTel.ServiceName)

	timeout, err := getEnvDuration("REPOGUARDIAN_TIMEOUT", cfg.Service.Timeout)
	if err != nil {
		return err
	}
	cfg.Service.Timeout = timeout

	port, err := getEnvInt("REPOGUARDIAN_K8S_LOCAL_PORT", cfg.Kubernetes.LocalPort)
	if err != nil {
		return err
	}
	cfg.Kubernetes.LocalPort = port
	return nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch c.Output {
	case "human", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q (supported: human, json, yaml)", c.Output)
	}
	if c.Service.URL == "" && !c.DiscoveryEnabled() {
		return fmt.Errorf("analysis service URL is empty; set --url or REPOGUARDIAN_URL")
	}
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Service.Timeout)
	}
	if c.Kubernetes.LocalPort <= 0 || c.Kubernetes.LocalPort > 65535 {
		return fmt.Errorf("invalid local port %d", c.Kubernetes.LocalPort)
	}
	if c.Kubernetes.Service != "" && strings.Count(c.Kubernetes.Service, "/") > 1 {
		return fmt.Errorf("invalid kubernetes service %q (expected namespace/name)", c.Kubernetes.Service)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
