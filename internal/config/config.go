package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"outbreak/internal/domain"
)

const (
	MinBoardSize       = 10
	MaxBoardSize       = 100
	MinCooldown        = 0.1
	MaxCooldown        = 5.0
	PlacementEdge      = "edge"
	PlacementScattered = "scattered"

	DisplayText = "text"
	DisplayTUI  = "tui"
	DisplayNone = "none"
)

type Config struct {
	Simulation Simulation     `toml:"simulation"`
	Display    Display        `toml:"display"`
	Output     Output         `toml:"output"`
	Server     Server         `toml:"server"`
	Raw        map[string]any `toml:"-"`
	Path       string         `toml:"-"`
}

type Simulation struct {
	BoardSize           int     `toml:"board_size" json:"board_size"`
	Humans              int     `toml:"humans" json:"humans"`
	Zombies             int     `toml:"zombies" json:"zombies"`
	CooldownMin         float64 `toml:"cooldown_min" json:"cooldown_min"`
	CooldownMax         float64 `toml:"cooldown_max" json:"cooldown_max"`
	GameTimeout         float64 `toml:"game_timeout" json:"game_timeout"`
	PositionWaitTimeout float64 `toml:"position_wait_timeout" json:"position_wait_timeout"`
	HumanBias           float64 `toml:"human_bias" json:"human_bias"`
	HumanBiasDisabled   bool    `toml:"no_human_bias" json:"no_human_bias"`
	ZombieStrategy      string  `toml:"zombie_strategy" json:"zombie_strategy"`
	ZombieRange         int     `toml:"zombie_range" json:"zombie_range"`
	ZombiePlacement     string  `toml:"zombie_placement" json:"zombie_placement"`
}

type Display struct {
	Mode string  `toml:"mode"`
	Rate float64 `toml:"rate"`
}

type Output struct {
	LogDir      string `toml:"log_dir"`
	DBPath      string `toml:"db_path"`
	RealtimeLog bool   `toml:"realtime_log"`
}

type Server struct {
	Addr string `toml:"addr"`
}

func Default() Config {
	return Config{
		Simulation: Simulation{
			BoardSize:           50,
			Humans:              50,
			Zombies:             10,
			CooldownMin:         0.5,
			CooldownMax:         2.0,
			GameTimeout:         300,
			PositionWaitTimeout: 5.0,
			HumanBias:           0.6,
			ZombieStrategy:      string(domain.StrategyRandom),
			ZombieRange:         3,
			ZombiePlacement:     PlacementEdge,
		},
		Display: Display{
			Mode: DisplayText,
			Rate: 0.5,
		},
		Output: Output{
			LogDir: "logs",
			DBPath: "data/outbreak.db",
		},
	}
}

// Load reads a TOML file on top of Default. An empty path loads the default
// location when present and falls back to plain defaults otherwise.
func Load(path string) (Config, error) {
	cfg := Default()
	resolved := path
	explicit := resolved != ""
	if !explicit {
		resolved = defaultConfigPath()
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	var raw map[string]any
	if _, err := toml.Decode(string(bytes), &raw); err != nil {
		return Config{}, fmt.Errorf("decode raw config: %w", err)
	}
	cfg.Raw = raw
	cfg.Path = resolved
	return cfg, nil
}

func (c Config) Validate() error {
	errs := []error{c.Simulation.Validate()}
	switch c.Display.Mode {
	case DisplayText, DisplayTUI, DisplayNone:
	default:
		errs = append(errs, fmt.Errorf("display mode must be one of text, tui, none (got %q)", c.Display.Mode))
	}
	if c.Display.Rate <= 0 {
		errs = append(errs, fmt.Errorf("display rate must be positive (got %v)", c.Display.Rate))
	}
	return errors.Join(errs...)
}

func (s Simulation) Validate() error {
	var errs []error
	if s.BoardSize < MinBoardSize || s.BoardSize > MaxBoardSize {
		errs = append(errs, fmt.Errorf("board size must be between %d and %d (got %d)", MinBoardSize, MaxBoardSize, s.BoardSize))
	}
	if s.Humans < 1 || s.Humans > s.BoardSize {
		errs = append(errs, fmt.Errorf("humans must be between 1 and %d (got %d)", s.BoardSize, s.Humans))
	}
	if s.Zombies < 0 || s.Zombies > s.BoardSize {
		errs = append(errs, fmt.Errorf("zombies must be between 0 and %d (got %d)", s.BoardSize, s.Zombies))
	}
	if s.CooldownMin < MinCooldown {
		errs = append(errs, fmt.Errorf("cooldown min must be at least %.1fs (got %v)", MinCooldown, s.CooldownMin))
	}
	if s.CooldownMax > MaxCooldown || s.CooldownMax < s.CooldownMin {
		errs = append(errs, fmt.Errorf("cooldown max must be at most %.1fs and not below cooldown min (got %v)", MaxCooldown, s.CooldownMax))
	}
	if s.GameTimeout < 0 {
		errs = append(errs, fmt.Errorf("game timeout cannot be negative (got %v)", s.GameTimeout))
	}
	if s.PositionWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("position wait timeout must be positive (got %v)", s.PositionWaitTimeout))
	}
	if s.HumanBias < 0 || s.HumanBias > 1 {
		errs = append(errs, fmt.Errorf("human bias must be between 0.0 and 1.0 (got %v)", s.HumanBias))
	}
	if _, ok := domain.ParseStrategy(s.ZombieStrategy); !ok {
		errs = append(errs, fmt.Errorf("unknown zombie strategy %q", s.ZombieStrategy))
	}
	if s.ZombieRange < 1 {
		errs = append(errs, fmt.Errorf("zombie range must be at least 1 (got %d)", s.ZombieRange))
	}
	switch s.ZombiePlacement {
	case PlacementEdge, PlacementScattered:
	default:
		errs = append(errs, fmt.Errorf("zombie placement must be %q or %q (got %q)", PlacementEdge, PlacementScattered, s.ZombiePlacement))
	}
	return errors.Join(errs...)
}

func (s Simulation) Strategy() domain.Strategy {
	strategy, ok := domain.ParseStrategy(s.ZombieStrategy)
	if !ok {
		return domain.StrategyRandom
	}
	return strategy
}

// Bias returns the forward preference probability, or a negative value when
// the preference is disabled.
func (s Simulation) Bias() float64 {
	if s.HumanBiasDisabled {
		return -1
	}
	return s.HumanBias
}

func (s Simulation) Cooldown() (time.Duration, time.Duration) {
	return Seconds(s.CooldownMin), Seconds(s.CooldownMax)
}

func (s Simulation) Timeout() time.Duration {
	return Seconds(s.GameTimeout)
}

func (s Simulation) PositionWait() time.Duration {
	return Seconds(s.PositionWaitTimeout)
}

func (d Display) Interval() time.Duration {
	return Seconds(d.Rate)
}

func Seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".outbreak/config.toml"
	}
	return filepath.Join(home, ".outbreak", "config.toml")
}
