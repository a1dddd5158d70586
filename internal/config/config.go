// Package config handles configuration loading and management.
package config

// Config holds all settings.
type Config struct {
	Render  RenderConfig  `yaml:"render"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`
}

// RenderConfig holds model evaluation settings.
type RenderConfig struct {
	// LODBias pushes every model toward coarser detail levels.
	LODBias int `yaml:"lod_bias"`
	// LerpModels enables frame blending; off, animations snap between
	// keyframes.
	LerpModels bool `yaml:"lerp_models"`
}

// DataConfig holds asset search path settings.
type DataConfig struct {
	Dirs []string `yaml:"dirs"` // Directories of loose files
	Paks []string `yaml:"paks"` // pk3 packs
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			LODBias:    0,
			LerpModels: true,
		},
		Data: DataConfig{
			Dirs: []string{"base"},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
