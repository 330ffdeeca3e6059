package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Server holds process settings for cmd/server. Flags override these values.
type Server struct {
	Addr         string        `env:"SIM_ADDR"           envDefault:":8080"`
	DataDir      string        `env:"SIM_DATA_DIR"       envDefault:"./data"`
	WorldID      string        `env:"SIM_WORLD_ID"`
	TuningPath   string        `env:"SIM_TUNING"         envDefault:"./configs/tuning.yaml"`
	ScenarioPath string        `env:"SIM_SCENARIO"       envDefault:"./configs/scenario.yaml"`
	OracleMode   string        `env:"SIM_ORACLE"         envDefault:"builtin"`
	OracleURL    string        `env:"SIM_ORACLE_URL"`
	OracleCmd    string        `env:"SIM_ORACLE_CMD"`
	Behaviour    string        `env:"SIM_BEHAVIOUR"      envDefault:"mixed"`
	Seed         int64         `env:"SIM_SEED"           envDefault:"1"`
	DisableIndex bool          `env:"SIM_DISABLE_INDEX"`
	EnablePprof  bool          `env:"SIM_ENABLE_PPROF"`
	SnapEvery    time.Duration `env:"SIM_SNAPSHOT_EVERY" envDefault:"30s"`
	SnapKeep     int           `env:"SIM_SNAPSHOT_KEEP"  envDefault:"10"`
	Shutdown     time.Duration `env:"SIM_SHUTDOWN_WAIT"  envDefault:"5s"`
}

// Oracle holds settings for the remote oracle client in cmd/oracle.
type Oracle struct {
	URL       string        `env:"SIM_SERVER_URL"  envDefault:"ws://localhost:8080/v1/oracle"`
	Name      string        `env:"SIM_ORACLE_NAME" envDefault:"builtin"`
	Behaviour string        `env:"SIM_BEHAVIOUR"   envDefault:"mixed"`
	Seed      int64         `env:"SIM_SEED"        envDefault:"1"`
	Backoff   time.Duration `env:"SIM_RECONNECT"   envDefault:"2s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv loads the given files (".env" when none are named) into the
// process environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}
