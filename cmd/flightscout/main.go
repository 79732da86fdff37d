package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"flightscout/internal/app"
	"flightscout/internal/config"
	"flightscout/internal/db"
	"flightscout/internal/domain"
	"flightscout/internal/engine"
	"flightscout/internal/prompt"
	"flightscout/internal/report"
	"flightscout/internal/repo"
	"flightscout/internal/searchapi"
	"flightscout/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "flightscout",
	Short: "Find the cheapest roundtrip offers for a route",
	Long: `flightscout queries the flight search API for one route and a pair of dates,
pairs outbound and inbound journeys of the same recommendation into roundtrips,
marks the cheapest ones and saves them as CSV.
- Only direct and one-stop journeys are considered.
- Runs are recorded in the workspace history (.flightscout/flightscout.db); view them with 'flightscout runs list'.
- Settings live in flightscout.yml; FLIGHTSCOUT_* environment variables and a workspace .env override them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := app.LoadEnv(viper.GetString("workspace")); err != nil {
			return err
		}
		return setupLogger(viper.GetString("log-level"))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix(app.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default <workspace>/flightscout.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func searchCmd() *cobra.Command {
	var q domain.Query
	var noSave bool
	var outputDir string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search roundtrip offers; missing values are asked for",
		Example: `  flightscout search --from MAD --to AUH --depart 2026-11-01 --return 2026-11-08
  flightscout search            # interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			// keep stdout clean for --json
			var promptOut io.Writer = os.Stdout
			if viper.GetBool("json") {
				promptOut = os.Stderr
			}
			p := prompt.New(cmd.InOrStdin(), promptOut, prompt.Rules{
				Origins:      cfg.Airports.Origins,
				Destinations: cfg.Airports.Destinations,
				MinStayDays:  cfg.Dates.MinStayDays,
			}, cfg.Prompt.MaxAttempts, prompt.Today(time.Now()))
			query, err := p.Complete(q)
			if err != nil {
				return err
			}
			return withSearchEngine(cfg, func(e engine.Engine) error {
				res, err := e.Run(cmd.Context(), query, engine.RunOptions{Save: !noSave, OutputDir: outputDir})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if len(res.Roundtrips) > 0 {
					report.Roundtrips(os.Stdout, "All roundtrips", res.Roundtrips)
				}
				report.Summary(os.Stdout, res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.Origin, "from", "", "origin airport code")
	cmd.Flags().StringVar(&q.Destination, "to", "", "destination airport code")
	cmd.Flags().StringVar(&q.OutboundDate, "depart", "", "outbound date (yyyy-mm-dd)")
	cmd.Flags().StringVar(&q.InboundDate, "return", "", "inbound date (yyyy-mm-dd)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not write the CSV export")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "CSV directory (overrides config output.dir)")
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect and create flightscout.yml"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := resolveConfig(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default flightscout.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

func runsCmd() *cobra.Command {
	runs := &cobra.Command{Use: "runs", Short: "Browse recorded searches"}
	var f repo.RunFilters
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded searches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListRuns(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				report.Runs(os.Stdout, items)
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&f.Status, "status", "", "status filter (ok, no_flights, no_roundtrips, failed)")
	listCmd.Flags().StringVar(&f.Origin, "origin", "", "origin filter")
	listCmd.Flags().StringVar(&f.Destination, "destination", "", "destination filter")
	listCmd.Flags().IntVar(&f.Limit, "n", 20, "number of runs")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded search and its cheapest offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				run, err := r.GetRun(ctx, args[0])
				if err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						return fmt.Errorf("run %s not found", args[0])
					}
					return err
				}
				offers, err := r.ListOffers(ctx, run.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"run": run, "offers": offers})
				}
				report.Runs(os.Stdout, []domain.Run{run})
				if run.Error != nil {
					fmt.Println("error:", *run.Error)
				}
				if len(offers) > 0 {
					report.Offers(os.Stdout, offers)
				}
				return nil
			})
		},
	}
	runs.AddCommand(listCmd, showCmd)
	return runs
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, "", entityID)
				if err != nil {
					return err
				}
				return printJSON(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "run", "", "run id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			authCfg := server.AuthConfig{JWTSecret: viper.GetString("jwt-secret")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("FLIGHTSCOUT_JWT_SECRET is required for bearer auth")
			}
			return withSearchEngine(cfg, func(e engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-cmd.Context().Done()
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(ctx)
				}()
				fmt.Printf("Serving flightscout API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API (signed with FLIGHTSCOUT_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := server.SignToken(viper.GetString("jwt-secret"), subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "local-user", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for none)")
	return cmd
}

// --- helpers ---

func resolveConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
}

// withSearchEngine wires the search API client and, when enabled, the
// workspace history.
func withSearchEngine(cfg *config.Config, fn func(engine.Engine) error) error {
	client := searchapi.NewClient(cfg.API.BaseURL)
	client.Timeout = cfg.API.Timeout
	var conn *sql.DB
	if cfg.History.Enabled {
		var err error
		conn, err = app.OpenHistory(viper.GetString("workspace"))
		if err != nil {
			return err
		}
		defer conn.Close()
	}
	return fn(engine.New(conn, cfg, client))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	if _, err := os.Stat(db.Path(workspace)); os.IsNotExist(err) {
		return fmt.Errorf("no history in %s; run a search first", workspace)
	}
	conn, err := app.OpenHistory(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
