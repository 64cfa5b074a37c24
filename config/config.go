package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del benchmark.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Forecast ForecastConfig `yaml:"forecast"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// BacktestConfig controla la generación y evaluación de ventanas.
type BacktestConfig struct {
	NumWindows   int    `yaml:"num_windows"`
	TestWindow   int    `yaml:"test_window"`
	Stride       int    `yaml:"stride"`
	NumSamples   int    `yaml:"num_samples"`
	Workers      int    `yaml:"workers"`
	Seed         uint64 `yaml:"seed"`
	WeightWindow int    `yaml:"weight_window"` // pasos de ventas en dinero para los pesos
}

// ForecastConfig controla el modelo y su ajuste.
type ForecastConfig struct {
	Model             string  `yaml:"model"` // loglinear | snaive
	NumSteps          int     `yaml:"num_steps"`
	LearningRate      float64 `yaml:"learning_rate"`
	LearningRateDecay float64 `yaml:"learning_rate_decay"`
	ClipNorm          float64 `yaml:"clip_norm"`
	Season            int     `yaml:"season"`
}

// DatasetConfig dimensiona el panel sintético.
type DatasetConfig struct {
	Stores         int    `yaml:"stores"`
	Items          int    `yaml:"items"`
	Duration       int    `yaml:"duration"`
	Seed           uint64 `yaml:"seed"`
	MaxLaunchDelay int    `yaml:"max_launch_delay"`
}

// StorageConfig controla dónde se persisten los resultados.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Los valores del .env sobreescriben los del YAML para las keys que
// correspondan. Con path vacío se usan solo defaults y entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SALESBENCH_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Backtest.NumWindows <= 0 {
		cfg.Backtest.NumWindows = 3
	}
	if cfg.Backtest.TestWindow <= 0 {
		cfg.Backtest.TestWindow = 28
	}
	if cfg.Backtest.Stride <= 0 {
		cfg.Backtest.Stride = 35
	}
	if cfg.Backtest.NumSamples <= 0 {
		cfg.Backtest.NumSamples = 100
	}
	if cfg.Backtest.Workers <= 0 {
		cfg.Backtest.Workers = 1
	}
	if cfg.Backtest.Seed == 0 {
		cfg.Backtest.Seed = 1
	}
	if cfg.Backtest.WeightWindow <= 0 {
		cfg.Backtest.WeightWindow = 28
	}
	if cfg.Forecast.Model == "" {
		cfg.Forecast.Model = "loglinear"
	}
	if cfg.Forecast.NumSteps <= 0 {
		cfg.Forecast.NumSteps = 1001
	}
	if cfg.Forecast.LearningRate <= 0 {
		cfg.Forecast.LearningRate = 0.1
	}
	if cfg.Forecast.LearningRateDecay <= 0 {
		cfg.Forecast.LearningRateDecay = 0.1
	}
	if cfg.Forecast.ClipNorm <= 0 {
		cfg.Forecast.ClipNorm = 10
	}
	if cfg.Forecast.Season <= 0 {
		cfg.Forecast.Season = 7
	}
	if cfg.Dataset.Stores <= 0 {
		cfg.Dataset.Stores = 4
	}
	if cfg.Dataset.Items <= 0 {
		cfg.Dataset.Items = 25
	}
	if cfg.Dataset.Duration <= 0 {
		cfg.Dataset.Duration = 730
	}
	if cfg.Dataset.Seed == 0 {
		cfg.Dataset.Seed = 99
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "salesbench.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
