package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "tasks.db"
	DefaultLogName        = "duely.log"
	appDirName            = "duely"
)

type Keymap struct {
	Quit     string `toml:"quit"`
	Add      string `toml:"add"`
	Up       string `toml:"up"`
	Down     string `toml:"down"`
	Toggle   string `toml:"toggle"`
	Delete   string `toml:"delete"`
	Edit     string `toml:"edit"`
	Search   string `toml:"search"`
	Jump     string `toml:"jump"`
	NextItem string `toml:"next_field"`
	Confirm  string `toml:"confirm"`
	Cancel   string `toml:"cancel"`
}

type Notifications struct {
	Enabled bool `toml:"enabled"`
}

type Config struct {
	DBDriver      string        `toml:"db_driver"`
	DBPath        string        `toml:"db_path"`
	PostgresDSN   string        `toml:"postgres_dsn"`
	LogPath       string        `toml:"log_path"`
	DefaultFilter string        `toml:"default_filter"`
	Notifications Notifications `toml:"notifications"`
	Keys          Keymap        `toml:"keys"`
}

// ResolveConfigPath honours $DUELY_CONFIG, then the user config dir, then
// the working directory.
func ResolveConfigPath() string {
	if p := os.Getenv("DUELY_CONFIG"); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName, DefaultConfigFileName)
	}
	return DefaultConfigFileName
}

// LoadOrCreate reads the config at path, writing defaults there first when
// the file is missing. Relative db and log paths resolve next to the file.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return resolvePaths(cfg, path), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogName
	}
	return resolvePaths(cfg, path), nil
}

// ApplyEnv overrides storage and notification settings from the environment.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("DUELY_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("DUELY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DUELY_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("DUELY_NOTIFICATIONS"); v != "" {
		on, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.New("invalid DUELY_NOTIFICATIONS value: " + v)
		}
		cfg.Notifications.Enabled = on
	}
	return nil
}

func resolvePaths(cfg Config, configPath string) Config {
	dir := filepath.Dir(configPath)
	if cfg.DBPath != "" && !filepath.IsAbs(cfg.DBPath) && !strings.HasPrefix(cfg.DBPath, "file:") {
		cfg.DBPath = filepath.Join(dir, cfg.DBPath)
	}
	if cfg.LogPath != "" && !filepath.IsAbs(cfg.LogPath) {
		cfg.LogPath = filepath.Join(dir, cfg.LogPath)
	}
	return cfg
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		DBDriver:      "sqlite",
		DBPath:        DefaultDBName,
		LogPath:       DefaultLogName,
		DefaultFilter: "all",
		Notifications: Notifications{Enabled: true},
		Keys: Keymap{
			Quit:     "q",
			Add:      "a",
			Up:       "k",
			Down:     "j",
			Toggle:   " ",
			Delete:   "d",
			Edit:     "e",
			Search:   "/",
			Jump:     "g",
			NextItem: "tab",
			Confirm:  "enter",
			Cancel:   "esc",
		},
	}
}
