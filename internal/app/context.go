package app

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"flightscout/internal/config"
	"flightscout/internal/db"
	"flightscout/internal/migrate"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLIGHTSCOUT"

// LoadEnv loads <workspace>/.env into the process environment. Variables
// already set win; a missing file is not an error.
func LoadEnv(workspace string) error {
	if workspace == "" {
		workspace = "."
	}
	err := godotenv.Load(filepath.Join(workspace, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ResolveConfig picks the explicit file when given, then the workspace
// flightscout.yml, then the built-in defaults, and applies FLIGHTSCOUT_*
// environment overrides on top.
func ResolveConfig(workspace, file string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case file != "":
		cfg, err = config.FromFile(file)
	default:
		cfg, err = config.LoadOptional(workspace)
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *config.Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("api.base_url"); s != "" {
		cfg.API.BaseURL = s
	}
	if s := v.GetString("api.timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s_API_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.API.Timeout = d
	}
	if s := v.GetString("airports.origins"); s != "" {
		cfg.Airports.Origins = splitCodes(s)
	}
	if s := v.GetString("airports.destinations"); s != "" {
		cfg.Airports.Destinations = splitCodes(s)
	}
	if s := v.GetString("dates.min_stay_days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s_DATES_MIN_STAY_DAYS: %w", EnvPrefix, err)
		}
		cfg.Dates.MinStayDays = n
	}
	if s := v.GetString("prompt.max_attempts"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s_PROMPT_MAX_ATTEMPTS: %w", EnvPrefix, err)
		}
		cfg.Prompt.MaxAttempts = n
	}
	if s := v.GetString("output.dir"); s != "" {
		cfg.Output.Dir = s
	}
	if s := v.GetString("history.enabled"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("%s_HISTORY_ENABLED: %w", EnvPrefix, err)
		}
		cfg.History.Enabled = b
	}
	if s := v.GetString("server.cors_origins"); s != "" {
		cfg.Server.CORSOrigins = splitList(s)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitCodes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if code := strings.ToUpper(strings.TrimSpace(part)); code != "" {
			out = append(out, code)
		}
	}
	return out
}

// OpenHistory opens the workspace database and applies pending migrations.
func OpenHistory(workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return conn, nil
}
