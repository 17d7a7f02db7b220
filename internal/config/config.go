package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	jsoniter "github.com/json-iterator/go"

	"github.com/gurkebaui/sun/internal/inference"
	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/monitor"
	"github.com/gurkebaui/sun/internal/orchestrator"
	"github.com/gurkebaui/sun/internal/perception"
	"github.com/gurkebaui/sun/internal/regulator"
	"github.com/gurkebaui/sun/internal/vigilance"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region app-config

// AppConfig is every setting the agent binaries read from the environment.
// Section fields are looked up under their section prefix first
// (AGENT_REFLEX_AMOUNT) and then under the bare name (REFLEX_AMOUNT).
type AppConfig struct {
	Env        string `envconfig:"APP_ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
	StateDB    string `envconfig:"STATE_DB" default:"sun_state.db"`
	TuningFile string `envconfig:"TUNING_FILE"`
	Perception string `envconfig:"PERCEPTION_SOURCE" default:"queue"` // queue, telegram or sidecar

	Agent     orchestrator.Config
	Regulator regulator.Config
	Vigilance vigilance.Config
	Inference inference.Config
	Memory    memory.Config
	Monitor   monitor.Config
	Telegram  perception.TelegramConfig
}

// Load reads envFile into the process environment (a missing file is fine)
// and binds the result to an AppConfig.
func Load(envFile string) (AppConfig, error) {
	var cfg AppConfig
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process environment config: %w", err)
	}
	if err := cfg.Tuning().Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Tuning returns the hot-reloadable part of cfg.
func (c AppConfig) Tuning() Tuning {
	return Tuning{Regulator: c.Regulator, Vigilance: c.Vigilance}
}

// #endregion

// #region tuning

// Tuning holds the homeostasis constants that may change while running.
type Tuning struct {
	Regulator regulator.Config `json:"regulator"`
	Vigilance vigilance.Config `json:"vigilance"`
}

// LoadTuning overlays the JSON file at path onto base. Keys absent from the
// file keep their base value.
func LoadTuning(path string, base Tuning) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read tuning file: %w", err)
	}
	t := base
	if err := json.Unmarshal(data, &t); err != nil {
		return base, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return base, err
	}
	return t, nil
}

// Validate rejects constants the regulator cannot work with.
func (t Tuning) Validate() error {
	r, v := t.Regulator, t.Vigilance
	for name, f := range map[string]float64{
		"pressure_threshold":       r.PressureThreshold,
		"max_pressure":             r.MaxPressure,
		"pressure_build_base_rate": r.PressureBuildBaseRate,
		"fatigue_penalty":          r.FatiguePenalty,
		"sleep_recovery_rate":      r.SleepRecoveryRate,
		"sleep_reward":             r.SleepReward,
		"optimal_sleep_factor":     r.OptimalSleepFactor,
		"wake_reward_factor":       r.WakeRewardFactor,
		"oversleep_penalty_factor": r.OversleepPenaltyFactor,
		"oversleep_grace":          r.OversleepGrace,
		"pssc_arousal_threshold":   v.SleepArousalThreshold,
		"svf_intensity_threshold":  v.StimulusIntensityThreshold,
	} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("tuning: %s must be finite, got %v", name, f)
		}
	}
	switch {
	case r.MaxPressure <= 0:
		return fmt.Errorf("tuning: max_pressure must be positive, got %v", r.MaxPressure)
	case r.PressureThreshold < 0 || r.PressureThreshold >= r.MaxPressure:
		return fmt.Errorf("tuning: pressure_threshold %v outside [0, %v)", r.PressureThreshold, r.MaxPressure)
	case r.SleepRecoveryRate <= 0:
		return fmt.Errorf("tuning: sleep_recovery_rate must be positive, got %v", r.SleepRecoveryRate)
	case r.OptimalSleepFactor <= 0:
		return fmt.Errorf("tuning: optimal_sleep_factor must be positive, got %v", r.OptimalSleepFactor)
	}
	return nil
}

// #endregion
