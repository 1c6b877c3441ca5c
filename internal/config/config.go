package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/chunkstore"
	"gopkg.in/yaml.v3"
)

const (
	MiB = 1 << 20

	defaultConfigPath = "./config.yaml"
)

// ByteSize — размер в байтах, в YAML и ENV допускает запись вида "5MiB" или "512kb".
type ByteSize int64

// ParseByteSize разбирает размер с единицами или без.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b ByteSize) MarshalYAML() (any, error) {
	return humanize.IBytes(uint64(b)), nil
}

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// GCConfig управляет фоновой очисткой брошенных сессий. Нулевые значения выключают её.
type GCConfig struct {
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// Config передаётся компонентам явно при создании.
type Config struct {
	ListenAddr        string   `yaml:"listen_addr" json:"listen_addr"`
	UploadRoot        string   `yaml:"upload_root" json:"upload_root"`
	DownloadRoot      string   `yaml:"download_root" json:"download_root"`
	ArtifactRoot      string   `yaml:"artifact_root" json:"artifact_root"`
	DefaultChunkSize  ByteSize `yaml:"default_chunk_size" json:"default_chunk_size"`
	MaxChunkSize      ByteSize `yaml:"max_chunk_size" json:"max_chunk_size"`
	ChecksumAlgorithm string   `yaml:"checksum_algorithm" json:"checksum_algorithm"`
	ChunkCompression  string   `yaml:"chunk_compression" json:"chunk_compression"`
	LogLevel          string   `yaml:"log_level" json:"log_level"`
	GC                GCConfig `yaml:"gc" json:"gc"`
}

// Default возвращает конфигурацию, с которой сервис стартует без файла.
func Default() Config {
	return Config{
		ListenAddr:        ":8000",
		UploadRoot:        "./data",
		DownloadRoot:      "./library",
		DefaultChunkSize:  5 * MiB,
		MaxChunkSize:      64 * MiB,
		ChecksumAlgorithm: string(checksum.Default),
		ChunkCompression:  chunkstore.CodecNone.String(),
		LogLevel:          "info",
		GC: GCConfig{
			TTL:      24 * time.Hour,
			Interval: 30 * time.Minute,
		},
	}
}

// Load читает YAML из CONFIG_PATH (по умолчанию ./config.yaml), применяет ENV-переопределения
// и проверяет результат. Отсутствие файла по умолчанию не ошибка.
func Load() (*Config, error) {
	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}

	c, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		d := Default()
		c, err = &d, nil
	}
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFile читает YAML поверх значений по умолчанию, без ENV.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"LISTEN_ADDR":        &c.ListenAddr,
		"UPLOAD_ROOT":        &c.UploadRoot,
		"DOWNLOAD_ROOT":      &c.DownloadRoot,
		"ARTIFACT_ROOT":      &c.ArtifactRoot,
		"CHECKSUM_ALGORITHM": &c.ChecksumAlgorithm,
		"CHUNK_COMPRESSION":  &c.ChunkCompression,
		"LOG_LEVEL":          &c.LogLevel,
	}
	for k, dst := range strs {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}

	sizes := map[string]*ByteSize{
		"DEFAULT_CHUNK_SIZE": &c.DefaultChunkSize,
		"MAX_CHUNK_SIZE":     &c.MaxChunkSize,
	}
	for k, dst := range sizes {
		if v := os.Getenv(k); v != "" {
			n, err := ParseByteSize(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"GC_TTL":      &c.GC.TTL,
		"GC_INTERVAL": &c.GC.Interval,
	}
	for k, dst := range durations {
		if v := os.Getenv(k); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = d
		}
	}

	return nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UploadRoot) == "" {
		return fmt.Errorf("upload_root is not configured")
	}
	if strings.TrimSpace(c.DownloadRoot) == "" {
		return fmt.Errorf("download_root is not configured")
	}
	if c.DefaultChunkSize <= 0 {
		return fmt.Errorf("default_chunk_size must be > 0")
	}
	if c.MaxChunkSize < c.DefaultChunkSize {
		return fmt.Errorf("max_chunk_size (%s) is smaller than default_chunk_size (%s)", c.MaxChunkSize, c.DefaultChunkSize)
	}
	if _, err := checksum.Parse(c.ChecksumAlgorithm); err != nil {
		return err
	}
	if _, err := chunkstore.ParseCodec(c.ChunkCompression); err != nil {
		return err
	}
	if c.GC.TTL < 0 || c.GC.Interval < 0 {
		return fmt.Errorf("gc ttl and interval must not be negative")
	}
	return nil
}

// Artifacts возвращает каталог для собранных файлов: artifact_root или download_root.
func (c *Config) Artifacts() string {
	if strings.TrimSpace(c.ArtifactRoot) != "" {
		return c.ArtifactRoot
	}
	return c.DownloadRoot
}
