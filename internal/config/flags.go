package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagData    = flag.String("data", "", "Extra asset directory")
	flagLODBias = flag.Int("lod-bias", -1, "Detail level bias (0 = full detail)")
	flagNoLerp  = flag.Bool("nolerp", false, "Disable animation frame blending")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagData != "" {
		cfg.Data.Dirs = append(cfg.Data.Dirs, *flagData)
	}
	if *flagLODBias >= 0 {
		cfg.Render.LODBias = *flagLODBias
	}
	if *flagNoLerp {
		cfg.Render.LerpModels = false
	}
}
