// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for client, network and effect settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"time"
)

// =============================================================================
// VIEW CONFIGURATION
// =============================================================================

// ViewConfig holds window/frame related settings.
type ViewConfig struct {
	Width  int // Window/frame width in pixels
	Height int // Window/frame height in pixels
	FPS    int // Target frame rate of the run loop
}

// DefaultView returns the default view configuration.
func DefaultView() ViewConfig {
	return ViewConfig{
		Width:  1280,
		Height: 720,
		FPS:    60,
	}
}

// ViewFromEnv returns view configuration with environment variable overrides.
// Environment variables take precedence over defaults.
func ViewFromEnv() ViewConfig {
	cfg := DefaultView()

	if w := getEnvInt("VIEW_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("VIEW_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if fps := getEnvInt("VIEW_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}

	return cfg
}

// =============================================================================
// NETWORK CONFIGURATION
// =============================================================================

// NetworkConfig holds session and input transmission settings.
type NetworkConfig struct {
	ServerURL   string        // WebSocket endpoint of the arena server
	Nickname    string        // Display name sent on join
	InputRate   int           // Outbound input messages per second (never faster)
	JoinTimeout time.Duration // How long to wait for the join acknowledgement
}

// DefaultNetwork returns the default network configuration.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		ServerURL:   "ws://localhost:2567/arena",
		Nickname:    "player",
		InputRate:   30, // ~33ms throttle period
		JoinTimeout: 5 * time.Second,
	}
}

// NetworkFromEnv returns network configuration with environment variable overrides.
func NetworkFromEnv() NetworkConfig {
	cfg := DefaultNetwork()

	cfg.ServerURL = getEnvString("ARENA_SERVER_URL", cfg.ServerURL)
	cfg.Nickname = getEnvString("ARENA_NICKNAME", cfg.Nickname)
	if r := getEnvInt("INPUT_RATE", 0); r > 0 {
		cfg.InputRate = r
	}
	if ms := getEnvInt("JOIN_TIMEOUT_MS", 0); ms > 0 {
		cfg.JoinTimeout = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// InputPeriod returns the throttle period derived from InputRate.
func (c NetworkConfig) InputPeriod() time.Duration {
	if c.InputRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.InputRate)
}

// =============================================================================
// EFFECT TIMING CONFIGURATION
// =============================================================================

// EffectConfig holds the fixed durations of animations and transient effects.
type EffectConfig struct {
	KickDuration  time.Duration
	HeadDuration  time.Duration
	GlowDuration  time.Duration // Role-change glow
	FlashDuration time.Duration // Quadrant highlight
	PulseDuration time.Duration // Ball touch scale pulse
}

// DefaultEffects returns the default effect timings.
func DefaultEffects() EffectConfig {
	return EffectConfig{
		KickDuration:  450 * time.Millisecond,
		HeadDuration:  400 * time.Millisecond,
		GlowDuration:  1200 * time.Millisecond,
		FlashDuration: 600 * time.Millisecond,
		PulseDuration: 250 * time.Millisecond,
	}
}

// =============================================================================
// DEBUG SERVER CONFIGURATION
// =============================================================================

// DebugConfig configures the local observability server.
type DebugConfig struct {
	Enabled       bool
	ListenAddr    string // MUST stay on localhost
	Profiling     bool   // Mount pprof under /debug
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
	RateLimit     float64 // Requests per second per IP
}

// DefaultDebug returns safe defaults.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6061",
		Profiling:  true,
		RateLimit:  10,
	}
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	if os.Getenv("DEBUG_SERVER_ENABLED") == "false" {
		cfg.Enabled = false
	}
	cfg.ListenAddr = getEnvString("DEBUG_SERVER_ADDR", cfg.ListenAddr)
	if os.Getenv("DEBUG_PPROF") == "false" {
		cfg.Profiling = false
	}
	cfg.BasicAuthUser = getEnvString("DEBUG_AUTH_USER", "")
	cfg.BasicAuthPass = getEnvString("DEBUG_AUTH_PASS", "")
	if r := getEnvFloat("DEBUG_RATE_LIMIT", 0); r > 0 {
		cfg.RateLimit = r
	}

	return cfg
}

// =============================================================================
// SPECTATOR CONFIGURATION
// =============================================================================

// SpectatorConfig configures the headless frame writer.
type SpectatorConfig struct {
	OutputDir string        // Where PNG frames are written
	Interval  time.Duration // Time between saved frames
	MaxFrames int           // 0 means run until interrupted
}

// DefaultSpectator returns the default spectator configuration.
func DefaultSpectator() SpectatorConfig {
	return SpectatorConfig{
		OutputDir: "frames",
		Interval:  time.Second,
	}
}

// SpectatorFromEnv returns spectator configuration with environment variable overrides.
func SpectatorFromEnv() SpectatorConfig {
	cfg := DefaultSpectator()

	cfg.OutputDir = getEnvString("SPECTATOR_OUTPUT_DIR", cfg.OutputDir)
	if ms := getEnvInt("SPECTATOR_INTERVAL_MS", 0); ms > 0 {
		cfg.Interval = time.Duration(ms) * time.Millisecond
	}
	if n := getEnvInt("SPECTATOR_MAX_FRAMES", 0); n > 0 {
		cfg.MaxFrames = n
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	View      ViewConfig
	Network   NetworkConfig
	Effects   EffectConfig
	Debug     DebugConfig
	Spectator SpectatorConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		View:      ViewFromEnv(),
		Network:   NetworkFromEnv(),
		Effects:   DefaultEffects(),
		Debug:     DebugFromEnv(),
		Spectator: SpectatorFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
