package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dealscope/internal/app"
	"dealscope/internal/config"
	"dealscope/internal/crm"
	"dealscope/internal/db"
	"dealscope/internal/domain"
	"dealscope/internal/events"
	"dealscope/internal/export"
	"dealscope/internal/narrate"
	"dealscope/internal/render"
	"dealscope/internal/repo"
	"dealscope/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ds",
	Short: "Dealscope CLI",
	Long: `Dealscope turns a CRM deal pipeline into actionable reports.
- Workspace: your project directory with dealscope.yml and a .dealscope database.
- Sync: fetch pipelines, owners, and deals from the CRM into a local snapshot.
- Hygiene: score every deal for missing fields and flag the sloppy ones.
- Aging: measure how long deals sit in each stage and spot the stuck ones.
- Forecast: weight open pipeline by stage and project the quarter and week.
Reports run against the latest snapshot, so results are reproducible offline.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DEALSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier for the event log")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(hygieneCmd())
	rootCmd.AddCommand(agingCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(snapshotsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func syncCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch a fresh snapshot from the CRM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				token, err := a.PortalToken()
				if err != nil {
					return err
				}
				client := crm.New(a.Config.Portal.BaseURL, token)
				client.Log = a.Log
				snap, err := crm.FetchSnapshot(ctx, client, a.Config, time.Now)
				if err != nil {
					return err
				}
				if err := a.Repo.SaveSnapshot(ctx, snap); err != nil {
					return err
				}
				if keep > 0 {
					if err := a.Repo.PruneSnapshots(ctx, keep); err != nil {
						return err
					}
				}
				_ = a.Events.Append(ctx, nil, events.TypeSync, snap.ID, viper.GetString("actor-id"), events.Payload{
					"deal_count":  len(snap.Deals),
					"pipelines":   len(snap.Pipelines),
					"owner_count": len(snap.Owners),
				})
				return printJSONOrTable(repo.SnapshotInfo{
					ID:        snap.ID,
					FetchedAt: snap.FetchedAt,
					DealCount: len(snap.Deals),
				})
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 10, "snapshots to retain after sync (0 keeps all)")
	return cmd
}

func hygieneCmd() *cobra.Command {
	var xlsxPath string
	var narrated bool
	cmd := &cobra.Command{
		Use:   "hygiene",
		Short: "Score deal completeness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				e, snap, err := a.Engine(ctx, nil)
				if err != nil {
					return err
				}
				sum := e.SummarizeHygiene(snap.Deals)
				logAnalysis(ctx, a, repo.ReportHygiene, snap.ID)
				if xlsxPath != "" {
					if err := exportReport(ctx, a, snap.ID, repo.ReportHygiene, xlsxPath, func() error {
						return export.Hygiene(xlsxPath, sum)
					}); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				render.Hygiene(os.Stdout, sum)
				if narrated {
					return narrateReport(ctx, a, repo.ReportHygiene, sum)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the report as an Excel workbook")
	cmd.Flags().BoolVar(&narrated, "narrate", false, "append an AI-written summary")
	return cmd
}

func agingCmd() *cobra.Command {
	var xlsxPath string
	var narrated bool
	cmd := &cobra.Command{
		Use:   "aging",
		Short: "Measure time in stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				e, snap, err := a.Engine(ctx, nil)
				if err != nil {
					return err
				}
				sum := e.SummarizeAging(snap.Deals)
				logAnalysis(ctx, a, repo.ReportAging, snap.ID)
				if xlsxPath != "" {
					if err := exportReport(ctx, a, snap.ID, repo.ReportAging, xlsxPath, func() error {
						return export.Aging(xlsxPath, sum)
					}); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				render.Aging(os.Stdout, sum)
				if narrated {
					return narrateReport(ctx, a, repo.ReportAging, sum)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the report as an Excel workbook")
	cmd.Flags().BoolVar(&narrated, "narrate", false, "append an AI-written summary")
	return cmd
}

func forecastCmd() *cobra.Command {
	fc := &cobra.Command{
		Use:   "forecast",
		Short: "Project revenue from open pipeline",
		Long:  "Forecasts weight each open deal's amount by its stage bucket. Quarterly covers the current calendar quarter by close date; weekly covers the current week's movement.",
	}
	fc.AddCommand(forecastQuarterlyCmd())
	fc.AddCommand(forecastWeeklyCmd())
	return fc
}

func forecastQuarterlyCmd() *cobra.Command {
	var xlsxPath string
	var narrated bool
	cmd := &cobra.Command{
		Use:   "quarterly",
		Short: "Quarterly revenue forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				e, snap, err := a.Engine(ctx, nil)
				if err != nil {
					return err
				}
				sum := e.QuarterlyForecast(snap.Deals)
				logAnalysis(ctx, a, repo.ReportQuarterly, snap.ID)
				if xlsxPath != "" {
					if err := exportReport(ctx, a, snap.ID, repo.ReportQuarterly, xlsxPath, func() error {
						return export.QuarterlyForecast(xlsxPath, sum)
					}); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				render.QuarterlyForecast(os.Stdout, sum)
				if narrated {
					return narrateReport(ctx, a, repo.ReportQuarterly, sum)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the report as an Excel workbook")
	cmd.Flags().BoolVar(&narrated, "narrate", false, "append an AI-written summary")
	return cmd
}

func forecastWeeklyCmd() *cobra.Command {
	var xlsxPath string
	var narrated bool
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Weekly pipeline forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				e, snap, err := a.Engine(ctx, nil)
				if err != nil {
					return err
				}
				rep := e.WeeklyForecast(snap.Deals)
				logAnalysis(ctx, a, repo.ReportWeekly, snap.ID)
				if xlsxPath != "" {
					if err := exportReport(ctx, a, snap.ID, repo.ReportWeekly, xlsxPath, func() error {
						return export.WeeklyForecast(xlsxPath, rep)
					}); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				render.WeeklyForecast(os.Stdout, rep)
				if narrated {
					return narrateReport(ctx, a, repo.ReportWeekly, rep)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the report as an Excel workbook")
	cmd.Flags().BoolVar(&narrated, "narrate", false, "append an AI-written summary")
	return cmd
}

func snapshotsCmd() *cobra.Command {
	snaps := &cobra.Command{Use: "snapshots", Short: "Manage stored snapshots"}
	snaps.AddCommand(snapshotsListCmd())
	snaps.AddCommand(snapshotsPruneCmd())
	return snaps
}

func snapshotsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListSnapshots(ctx, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum snapshots to list")
	return cmd
}

func snapshotsPruneCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Repo.PruneSnapshots(ctx, keep); err != nil {
					return err
				}
				items, err := a.Repo.ListSnapshots(ctx, keep)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 10, "snapshots to retain")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook in dealscope.yml: which CRM pipeline to read, which properties a healthy deal carries, stage aging thresholds, and forecast stage weights.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error
			if filePath != "" {
				cfg, err = config.FromFile(filePath)
			} else {
				cfg, err = config.Load(viper.GetString("workspace"))
			}
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "validate this YAML file instead of the workspace config")
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter dealscope.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: syncs, report runs, and exports.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.LatestEvents(ctx, n, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter (sync, analysis, export)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("DEALSCOPE_JWT_SECRET")}
				if authCfg.JWTSecret == "" && !loopbackAddr(addr) {
					return fmt.Errorf("DEALSCOPE_JWT_SECRET is required when binding beyond loopback")
				}
				var syncer server.Syncer
				if token, err := a.PortalToken(); err == nil {
					client := crm.New(a.Config.Portal.BaseURL, token)
					client.Log = a.Log
					syncer = syncerFunc(func(ctx context.Context) (domain.Snapshot, error) {
						return crm.FetchSnapshot(ctx, client, a.Config, time.Now)
					})
				} else {
					a.Log.WithError(err).Warn("starting without CRM credentials; POST /sync disabled")
				}
				handler, err := server.New(server.Config{
					Repo:     a.Repo,
					Config:   a.Config,
					Syncer:   syncer,
					BasePath: basePath,
					Auth:     authCfg,
					Log:      a.Log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving Dealscope API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
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

// --- helpers ---

type syncerFunc func(context.Context) (domain.Snapshot, error)

func (f syncerFunc) Sync(ctx context.Context) (domain.Snapshot, error) { return f(ctx) }

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func logAnalysis(ctx context.Context, a *app.App, kind, snapshotID string) {
	err := a.Events.Append(ctx, nil, events.TypeAnalysis, snapshotID, viper.GetString("actor-id"), events.Payload{
		"kind": kind,
	})
	if err != nil {
		a.Log.WithError(err).Warn("record analysis event")
	}
}

func exportReport(ctx context.Context, a *app.App, snapshotID, kind, path string, write func() error) error {
	if err := write(); err != nil {
		return err
	}
	err := a.Events.Append(ctx, nil, events.TypeExport, snapshotID, viper.GetString("actor-id"), events.Payload{
		"kind": kind,
		"path": path,
	})
	if err != nil {
		a.Log.WithError(err).Warn("record export event")
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func narrateReport(ctx context.Context, a *app.App, kind string, report any) error {
	name := a.Config.Narration.TokenEnv
	if name == "" {
		name = "DEALSCOPE_AI_TOKEN"
	}
	token := os.Getenv(name)
	if token == "" {
		return fmt.Errorf("narration token not set; export %s", name)
	}
	n := narrate.New(a.Config.Narration.BaseURL, a.Config.Narration.Model, token)
	text, err := n.Narrate(ctx, kind, report)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(text)
	return nil
}

func loopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" || host == "localhost" {
		return host == "localhost"
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
