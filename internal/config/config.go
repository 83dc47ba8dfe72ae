// Package config handles configuration loading and management for pickplace.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arcticfish-wang/pickplace/internal/orchestrator/policy"
	"github.com/arcticfish-wang/pickplace/internal/scene"
	"github.com/arcticfish-wang/pickplace/internal/state"
	"github.com/arcticfish-wang/pickplace/pkg/models"
)

const (
	// ProjectFileName is searched for in the working directory and its parents.
	ProjectFileName = ".pickplace.yaml"
	// EnvPrefix prefixes environment overrides, e.g. PICKPLACE_RETRY_AUTO.
	EnvPrefix = "PICKPLACE"
)

// Config holds all configuration for pickplace.
type Config struct {
	Planning   PlanningConfig `mapstructure:"planning" yaml:"planning"`
	Retry      RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Run        RunConfig      `mapstructure:"run" yaml:"run"`
	Objects    []ObjectConfig `mapstructure:"objects" yaml:"objects"`
	GoalOffset Vector         `mapstructure:"goal_offset" yaml:"goal_offset"`
	BlockSize  float64        `mapstructure:"block_size" yaml:"block_size"`
	Grasp      GraspConfig    `mapstructure:"grasp" yaml:"grasp"`
	Table      BoxConfig      `mapstructure:"table" yaml:"table"`
	Walls      []BoxConfig    `mapstructure:"walls" yaml:"walls"`
	Sim        SimConfig      `mapstructure:"sim" yaml:"sim"`
	Log        LogConfig      `mapstructure:"log" yaml:"log"`
	State      StateConfig    `mapstructure:"state" yaml:"state"`
}

// PlanningConfig holds the settings passed to the motion service.
type PlanningConfig struct {
	Group            string        `mapstructure:"group" yaml:"group"`
	PlannerID        string        `mapstructure:"planner_id" yaml:"planner_id"`
	PlanningTime     time.Duration `mapstructure:"planning_time" yaml:"planning_time"`
	SupportSurface   string        `mapstructure:"support_surface" yaml:"support_surface"`
	BaseLink         string        `mapstructure:"base_link" yaml:"base_link"`
	EndEffectorGroup string        `mapstructure:"end_effector_group" yaml:"end_effector_group"`
}

// RetryConfig selects the retry policy.
type RetryConfig struct {
	Auto         bool    `mapstructure:"auto" yaml:"auto"`
	DelaySeconds int `mapstructure:"delay_seconds" yaml:"delay_seconds"`
}

// RunConfig holds orchestrator loop settings.
type RunConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxCycles   int           `mapstructure:"max_cycles" yaml:"max_cycles"`
}

// ObjectConfig places one work item on the table.
type ObjectConfig struct {
	ID string  `mapstructure:"id" yaml:"id"`
	X  float64 `mapstructure:"x" yaml:"x"`
	Y  float64 `mapstructure:"y" yaml:"y"`
}

// Vector is a 3D vector in config form.
type Vector struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
	Z float64 `mapstructure:"z" yaml:"z"`
}

// R3 converts v to an r3.Vector.
func (v Vector) R3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// GraspConfig holds gripper geometry and approach/retreat distances.
type GraspConfig struct {
	ApproachRetreatDesired float64   `mapstructure:"approach_retreat_desired" yaml:"approach_retreat_desired"`
	ApproachRetreatMin     float64   `mapstructure:"approach_retreat_min" yaml:"approach_retreat_min"`
	PreGraspPosture        []float64 `mapstructure:"pre_grasp_posture" yaml:"pre_grasp_posture"`
	GraspPosture           []float64 `mapstructure:"grasp_posture" yaml:"grasp_posture"`
	Count                  int       `mapstructure:"count" yaml:"count"`
}

// BoxConfig describes a box obstacle.
type BoxConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Center Vector `mapstructure:"center" yaml:"center"`
	Size   Vector `mapstructure:"size" yaml:"size"`
}

// SimConfig drives the simulated collaborators.
type SimConfig struct {
	FailureRate float64 `mapstructure:"failure_rate" yaml:"failure_rate"`
	Seed        uint64  `mapstructure:"seed" yaml:"seed"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// StateConfig locates run history and logs.
type StateConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Retention purges finished runs older than this at run startup. Zero keeps everything.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (PICKPLACE_RETRY_AUTO, PICKPLACE_PLANNING_GROUP, ...)
// 2. Project config (.pickplace.yaml in current directory or parent)
// 3. User config (~/.config/pickplace/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of the defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.State.Dir = os.ExpandEnv(cfg.State.Dir)
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Save writes cfg to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values from Default.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("planning.group", d.Planning.Group)
	v.SetDefault("planning.planner_id", d.Planning.PlannerID)
	v.SetDefault("planning.planning_time", d.Planning.PlanningTime.String())
	v.SetDefault("planning.support_surface", d.Planning.SupportSurface)
	v.SetDefault("planning.base_link", d.Planning.BaseLink)
	v.SetDefault("planning.end_effector_group", d.Planning.EndEffectorGroup)

	v.SetDefault("retry.auto", d.Retry.Auto)
	v.SetDefault("retry.delay_seconds", d.Retry.DelaySeconds)

	v.SetDefault("run.settle_delay", d.Run.SettleDelay.String())
	v.SetDefault("run.max_cycles", d.Run.MaxCycles)

	objects := make([]map[string]any, 0, len(d.Objects))
	for _, o := range d.Objects {
		objects = append(objects, map[string]any{"id": o.ID, "x": o.X, "y": o.Y})
	}
	v.SetDefault("objects", objects)
	setVectorDefault(v, "goal_offset", d.GoalOffset)
	v.SetDefault("block_size", d.BlockSize)

	v.SetDefault("grasp.approach_retreat_desired", d.Grasp.ApproachRetreatDesired)
	v.SetDefault("grasp.approach_retreat_min", d.Grasp.ApproachRetreatMin)
	v.SetDefault("grasp.pre_grasp_posture", d.Grasp.PreGraspPosture)
	v.SetDefault("grasp.grasp_posture", d.Grasp.GraspPosture)
	v.SetDefault("grasp.count", d.Grasp.Count)

	v.SetDefault("table.name", d.Table.Name)
	setVectorDefault(v, "table.center", d.Table.Center)
	setVectorDefault(v, "table.size", d.Table.Size)

	walls := make([]map[string]any, 0, len(d.Walls))
	for _, w := range d.Walls {
		walls = append(walls, map[string]any{
			"name":   w.Name,
			"center": map[string]any{"x": w.Center.X, "y": w.Center.Y, "z": w.Center.Z},
			"size":   map[string]any{"x": w.Size.X, "y": w.Size.Y, "z": w.Size.Z},
		})
	}
	v.SetDefault("walls", walls)

	v.SetDefault("sim.failure_rate", d.Sim.FailureRate)
	v.SetDefault("sim.seed", d.Sim.Seed)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("state.dir", d.State.Dir)
	v.SetDefault("state.retention", d.State.Retention)
}

func setVectorDefault(v *viper.Viper, key string, vec Vector) {
	v.SetDefault(key+".x", vec.X)
	v.SetDefault(key+".y", vec.Y)
	v.SetDefault(key+".z", vec.Z)
}

// getUserConfigDir returns the XDG config directory for pickplace.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pickplace")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "pickplace")
	}
	return filepath.Join(home, ".config", "pickplace")
}

// findProjectConfig searches for .pickplace.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}


// Default returns a Config with default values: three blocks in a row,
// each moved 0.2 m along y.
func Default() *Config {
	return &Config{
		Planning: PlanningConfig{
			Group:            "right_arm",
			PlannerID:        "RRTConnectkConfigDefault",
			PlanningTime:     30 * time.Second,
			SupportSurface:   "table",
			BaseLink:         "base",
			EndEffectorGroup: "right_hand",
		},
		Retry: RetryConfig{
			Auto:         true,
			DelaySeconds: int(policy.DefaultAutoRetryDelay / time.Second),
		},
		Run: RunConfig{
			SettleDelay: time.Second,
		},
		Objects: []ObjectConfig{
			{ID: "Block1", X: 0.55, Y: -0.4},
			{ID: "Block2", X: 0.65, Y: -0.4},
			{ID: "Block3", X: 0.75, Y: -0.4},
		},
		GoalOffset: Vector{Y: 0.2},
		BlockSize:  0.04,
		Grasp: GraspConfig{
			ApproachRetreatDesired: 0.1,
			ApproachRetreatMin:     0.05,
			PreGraspPosture:        []float64{0.04, 0.04},
			GraspPosture:           []float64{0.0, 0.0},
			Count:                  8,
		},
		Table: BoxConfig{
			Name:   "table",
			Center: Vector{X: 0.7, Y: -0.3, Z: -0.15},
			Size:   Vector{X: 0.5, Y: 1.0, Z: 0.3},
		},
		Walls: []BoxConfig{
			{Name: "back_wall", Center: Vector{X: -0.3, Z: 0.5}, Size: Vector{X: 0.05, Y: 2.0, Z: 2.0}},
			{Name: "right_wall", Center: Vector{X: 0.5, Y: -1.1, Z: 0.5}, Size: Vector{X: 1.5, Y: 0.05, Z: 2.0}},
		},
		Sim: SimConfig{
			FailureRate: 0.2,
			Seed:        1,
		},
		Log: LogConfig{
			Level: "info",
		},
		State: StateConfig{
			Dir: state.DefaultDir(),
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Planning.Group == "" {
		return errors.New("planning.group is required")
	}
	if c.Planning.PlanningTime <= 0 {
		return fmt.Errorf("planning.planning_time must be positive, got %s", c.Planning.PlanningTime)
	}
	if c.Retry.DelaySeconds < 0 {
		return fmt.Errorf("retry.delay_seconds must not be negative, got %d", c.Retry.DelaySeconds)
	}
	if c.Run.SettleDelay < 0 {
		return fmt.Errorf("run.settle_delay must not be negative, got %s", c.Run.SettleDelay)
	}
	if c.State.Retention < 0 {
		return fmt.Errorf("state.retention must not be negative, got %s", c.State.Retention)
	}
	if c.Run.MaxCycles < 0 {
		return fmt.Errorf("run.max_cycles must not be negative, got %d", c.Run.MaxCycles)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %g", c.BlockSize)
	}
	if c.Grasp.Count < 0 {
		return fmt.Errorf("grasp.count must not be negative, got %d", c.Grasp.Count)
	}
	if err := c.ModelGraspConfig().Validate(); err != nil {
		return fmt.Errorf("grasp: %w", err)
	}
	if c.Sim.FailureRate < 0 || c.Sim.FailureRate > 1 {
		return fmt.Errorf("sim.failure_rate must be within [0, 1], got %g", c.Sim.FailureRate)
	}
	if err := models.ValidateWorkItems(c.WorkItems(0)); err != nil {
		return fmt.Errorf("objects: %w", err)
	}
	return nil
}

// RetryPolicy returns the retry policy configuration.
func (c *Config) RetryPolicy() policy.Config {
	return policy.Config{
		AutoRetry:      c.Retry.Auto,
		AutoRetryDelay: time.Duration(c.Retry.DelaySeconds) * time.Second,
	}
}

// ModelGraspConfig returns the gripper parameters shared by grasp and place generation.
func (c *Config) ModelGraspConfig() models.GraspConfig {
	return models.GraspConfig{
		EndEffectorGroup:       c.Planning.EndEffectorGroup,
		BaseLink:               c.Planning.BaseLink,
		ObjectSize:             c.BlockSize,
		ApproachRetreatDesired: c.Grasp.ApproachRetreatDesired,
		ApproachRetreatMin:     c.Grasp.ApproachRetreatMin,
		PreGraspPosture:        append([]float64(nil), c.Grasp.PreGraspPosture...),
		GraspPosture:           append([]float64(nil), c.Grasp.GraspPosture...),
	}
}

// SceneTable returns the support surface.
func (c *Config) SceneTable() scene.Table {
	return scene.Table{Name: c.Table.Name, Center: c.Table.Center.R3(), Size: c.Table.Size.R3()}
}

// SceneWalls returns the static wall obstacles.
func (c *Config) SceneWalls() []models.Obstacle {
	walls := make([]models.Obstacle, 0, len(c.Walls))
	for _, w := range c.Walls {
		walls = append(walls, models.Obstacle{Name: w.Name, Center: w.Center.R3(), Size: w.Size.R3()})
	}
	return walls
}

// WorkItems builds the configured objects resting at height z, each with its
// goal shifted by GoalOffset.
func (c *Config) WorkItems(z float64) []models.WorkItem {
	items := make([]models.WorkItem, 0, len(c.Objects))
	for _, o := range c.Objects {
		items = append(items, models.NewWorkItem(o.ID, models.NewPose(o.X, o.Y, z), c.GoalOffset.R3()))
	}
	return items
}
