package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFile 默认配置文件
const ConfigFile = "mopedmap.toml"

// EnvPrefix 环境变量前缀，层级用双下划线分隔，如 MOPEDMAP_AGOL__LINES__LAYER=0
const EnvPrefix = "MOPEDMAP_"

// MainConfig 全局配置，Load 成功后写入
var MainConfig Config

type Config struct {
	Listen string         `koanf:"listen"`
	DB     DatabaseConfig `koanf:"db"`
	Agol   AgolConfig     `koanf:"agol"`
	Map    MapConfig      `koanf:"map"`
	Log    LogConfig      `koanf:"log"`
}

// DatabaseConfig 数据库连接
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite | postgres
	DSN    string `koanf:"dsn"`
	Log    bool   `koanf:"log"`
}

// AgolConfig ArcGIS Online 要素服务
type AgolConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
	Cache    CacheConfig   `koanf:"cache"`
	Lines    LayerConfig   `koanf:"lines"`
	Points   LayerConfig   `koanf:"points"`
}

type CacheConfig struct {
	Size int           `koanf:"size"`
	TTL  time.Duration `koanf:"ttl"`
}

// LayerConfig 单个 FeatureServer 图层
type LayerConfig struct {
	Service string `koanf:"service"`
	Layer   int    `koanf:"layer"`
	IDProp  string `koanf:"idprop"`
}

// MapConfig 地图交互参数
type MapConfig struct {
	MinZoom        float64 `koanf:"minzoom"`
	EvictionMargin float64 `koanf:"evictionmargin"`
	StreetNameProp string  `koanf:"streetnameprop"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Defaults 默认配置项
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"listen":              ":8426",
		"db.driver":           "sqlite",
		"db.dsn":              "mopedmap.db",
		"db.log":              false,
		"agol.endpoint":       "https://services.arcgis.com/arcgis/rest/services",
		"agol.timeout":        "30s",
		"agol.cache.size":     1000,
		"agol.cache.ttl":      "10m",
		"agol.lines.service":  "CTN",
		"agol.lines.layer":    0,
		"agol.lines.idprop":   "CTN_SEGMENT_ID",
		"agol.points.service": "CTN_Intersections",
		"agol.points.layer":   0,
		"agol.points.idprop":  "INTERSECTION_ID",
		"map.minzoom":         15.0,
		"map.evictionmargin":  0.0,
		"map.streetnameprop":  "FULL_STREET_NAME",
		"log.level":           "info",
		"log.json":            false,
	}
}

// Flags 命令行参数，名称与配置键一致
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("mopedmap", pflag.ContinueOnError)
	f.String("config", ConfigFile, "Path to the TOML config file")
	f.String("listen", ":8426", "HTTP listen address")
	f.String("db.driver", "sqlite", "Database driver (sqlite or postgres)")
	f.String("db.dsn", "mopedmap.db", "Database DSN or sqlite file path")
	f.Bool("db.log", false, "Log SQL statements")
	f.String("agol.endpoint", "", "ArcGIS REST services root")
	f.Float64("map.minzoom", 15, "Minimum zoom at which street network features are fetched")
	f.String("log.level", "info", "Log level (debug, info, warn, error)")
	f.Bool("log.json", false, "Emit JSON logs")
	return f
}

// Load 加载配置，优先级：命令行 > 环境变量 > 配置文件 > 默认值
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := ConfigFile
	if f != nil {
		if p, err := f.GetString("config"); err == nil && p != "" {
			path = p
		}
	}
	// 配置文件可以不存在
	_ = k.Load(file.Provider(path), toml.Parser())

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	MainConfig = cfg
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Agol.Endpoint == "" {
		return fmt.Errorf("agol.endpoint must be set")
	}
	if c.Agol.Lines.IDProp == "" || c.Agol.Points.IDProp == "" {
		return fmt.Errorf("agol layer idprop must be set")
	}
	if c.Map.EvictionMargin < 0 {
		return fmt.Errorf("map.evictionmargin must not be negative")
	}
	return nil
}

// mapProvider 将扁平的点分键展开为嵌套结构
type mapProvider map[string]interface{}

func (p mapProvider) Read() (map[string]interface{}, error) {
	return maps.Unflatten(p, "."), nil
}

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
