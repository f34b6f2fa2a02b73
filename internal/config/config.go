package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config se lee de variables de entorno y, si existe, de un archivo (.env o
// YAML). Las variables de entorno tienen prioridad.
type Config struct {
	// Puertos TCP por dialecto; vacío deshabilita el listener.
	HuaShengPort  string `mapstructure:"HUASHENG_PORT"`
	RoboTrackPort string `mapstructure:"ROBOTRACK_PORT"`
	TeltonikaPort string `mapstructure:"TELTONIKA_PORT"`
	MetricsPort   string `mapstructure:"METRICS_PORT"`

	// RegistryBackend: memory | redis | bolt
	RegistryBackend string `mapstructure:"REGISTRY_BACKEND"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	BoltPath        string `mapstructure:"BOLT_PATH"`

	// StrictDevices rechaza IMEI no provisionados.
	StrictDevices   bool   `mapstructure:"STRICT_DEVICES"`
	DeviceAllowList string `mapstructure:"DEVICE_ALLOWLIST"`

	GRPCServer string `mapstructure:"GRPC_SERVER"`
	ProxyAddr  string `mapstructure:"PROXY_ADDR"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	RawLog   bool   `mapstructure:"RAW_LOG"`
}

// Load lee la configuración. path vacío busca un .env en el directorio actual
// y lo ignora si no existe.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	// ROBOTRACK_PORT= (vacío) deshabilita ese listener
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault("HUASHENG_PORT", "8001")
	v.SetDefault("ROBOTRACK_PORT", "8002")
	v.SetDefault("TELTONIKA_PORT", "8003")
	v.SetDefault("METRICS_PORT", "9000")
	v.SetDefault("REGISTRY_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BOLT_PATH", "gpscodec.db")
	v.SetDefault("STRICT_DEVICES", false)
	v.SetDefault("DEVICE_ALLOWLIST", "")
	v.SetDefault("GRPC_SERVER", "")
	v.SetDefault("PROXY_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RAW_LOG", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.RegistryBackend {
	case "memory", "redis", "bolt":
	default:
		return fmt.Errorf("config: REGISTRY_BACKEND must be memory, redis or bolt, got %q", c.RegistryBackend)
	}
	if c.HuaShengPort == "" && c.RoboTrackPort == "" && c.TeltonikaPort == "" {
		return errors.New("config: at least one protocol port must be set")
	}
	if c.StrictDevices && c.RegistryBackend == "memory" && len(c.AllowList()) == 0 {
		return errors.New("config: STRICT_DEVICES with memory backend needs DEVICE_ALLOWLIST")
	}
	return nil
}

// Ports devuelve el puerto de cada protocolo habilitado.
func (c *Config) Ports() map[string]string {
	out := make(map[string]string, 3)
	for proto, port := range map[string]string{
		"huasheng":  c.HuaShengPort,
		"robotrack": c.RoboTrackPort,
		"teltonika": c.TeltonikaPort,
	} {
		if port != "" {
			out[proto] = port
		}
	}
	return out
}

// AllowList separa DEVICE_ALLOWLIST por comas.
func (c *Config) AllowList() []string {
	if c == nil || c.DeviceAllowList == "" {
		return nil
	}
	parts := strings.Split(c.DeviceAllowList, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
