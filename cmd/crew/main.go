package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crewplan/internal/app"
	"crewplan/internal/config"
	"crewplan/internal/db"
	"crewplan/internal/domain"
	"crewplan/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "crew",
	Short: "Crewplan CLI",
	Long: `Crewplan ingests workforce spreadsheets (clients, workers, tasks), checks
them against a validation pipeline and a configurable rule set, and reports
every problem as a structured finding instead of rejecting the upload.
Data flows: ingest -> validate -> fix -> validate again. Rules (co-run,
slot restrictions, load limits, phase windows, pattern matches, precedence
overrides) are validated against the data set when added, and checked for
conflicts with each other on demand.`,
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
	viper.SetEnvPrefix("CREWPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default crewplan.yml into the workspace",
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
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func ingestCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "ingest <entity> <file>",
		Short: "Ingest a CSV or JSON file for one entity",
		Long: `Reads rows from a .csv (header row required) or a .json array of objects
and stores them as-is. Malformed cells and duplicate IDs are stored and
reported by 'crew validate', not rejected here.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, file := args[0], args[1]
			if mode != "replace" && mode != "append" {
				return fmt.Errorf("--mode must be replace or append")
			}
			records, err := readRecords(file)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Engine.Ingest(ctx, entity, records, mode == "replace", viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"entity": entity, "count": n, "mode": mode})
				}
				fmt.Printf("Ingested %d %s records (%s)\n", n, entity, mode)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "replace", "replace or append")
	return cmd
}

// readRecords loads records from a CSV (header row becomes the field names,
// all values stay strings) or a JSON array of objects.
func readRecords(file string) ([]domain.Record, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return recordsFromCSV(data)
	case ".json":
		var records []domain.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("unsupported file type %s; use .csv or .json", filepath.Ext(file))
	}
}

func recordsFromCSV(data []byte) ([]domain.Record, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	header := rows[0]
	var out []domain.Record
	for _, row := range rows[1:] {
		rec := make(domain.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordsCmd() *cobra.Command {
	rec := &cobra.Command{Use: "records", Short: "Manage stored records"}
	rec.AddCommand(recordsListCmd())
	rec.AddCommand(recordsDeleteCmd())
	rec.AddCommand(recordsClearCmd())
	return rec
}

func recordsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List records of one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := args[0]
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListRecords(ctx, entity)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				idField := domain.IDField(entity)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", idField, "Fields"})
				for i, rec := range items {
					id, _ := rec[idField].(string)
					tw.AppendRow(table.Row{i + 1, id, len(rec)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func recordsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record (all rows carrying the ID)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.DeleteRecord(ctx, args[0], args[1], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func recordsClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <entity>",
		Short: "Clear all records of one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.ClearEntity(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func rulesCmd() *cobra.Command {
	r := &cobra.Command{Use: "rules", Short: "Manage scheduling rules"}
	r.AddCommand(rulesListCmd())
	r.AddCommand(rulesAddCmd())
	r.AddCommand(rulesUpdateCmd())
	r.AddCommand(rulesDeleteCmd())
	r.AddCommand(rulesConflictsCmd())
	return r
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListRules(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Active", "Priority"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, string(r.Type), r.IsActive, r.Priority})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func ruleJSONFromFlags(raw, file string) ([]byte, error) {
	switch {
	case raw != "" && file != "":
		return nil, fmt.Errorf("use --json or --file, not both")
	case raw != "":
		return []byte(raw), nil
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, fmt.Errorf("--json or --file required")
	}
}

func rulesAddCmd() *cobra.Command {
	var raw, file string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule (validated against the current data set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ruleJSONFromFlags(raw, file)
			if err != nil {
				return err
			}
			var rule domain.Rule
			if err := json.Unmarshal(data, &rule); err != nil {
				return fmt.Errorf("invalid rule json: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stored, err := a.Engine.AddRule(ctx, rule, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(stored)
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "rule as inline JSON")
	cmd.Flags().StringVar(&file, "file", "", "path to rule JSON file")
	return cmd
}

func rulesUpdateCmd() *cobra.Command {
	var raw, file string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch a rule and revalidate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ruleJSONFromFlags(raw, file)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stored, err := a.Engine.UpdateRule(ctx, args[0], data, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(stored)
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "patch as inline JSON")
	cmd.Flags().StringVar(&file, "file", "", "path to patch JSON file")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.DeleteRule(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func rulesConflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect conflicts between active rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				conflicts, err := a.Engine.RuleConflicts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(conflicts)
				}
				if len(conflicts) == 0 {
					fmt.Println("No conflicts.")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Rule A", "Rule B", "Kind", "Message"})
				for _, c := range conflicts {
					tw.AppendRow(table.Row{c.RuleA, c.RuleB, c.Kind, c.Message})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func validateCmd() *cobra.Command {
	v := &cobra.Command{
		Use:   "validate",
		Short: "Run a validation pass over the stored data set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				run, err := a.Engine.RunValidation(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				printFindings(run.Result)
				return nil
			})
		},
	}
	v.AddCommand(validateHistoryCmd())
	v.AddCommand(validateShowCmd())
	return v
}

func printFindings(res domain.ValidationResult) {
	findings := append(append([]domain.Finding{}, res.Errors...), res.Warnings...)
	if len(findings) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Severity", "Entity", "Record", "Message"})
		for _, f := range findings {
			tw.AppendRow(table.Row{f.ID, string(f.Severity), f.Entity, f.RecordID, f.Message})
		}
		tw.Render()
	}
	verdict := "INVALID"
	if res.IsValid {
		verdict = "VALID"
	}
	fmt.Printf("%s: %d errors, %d warnings, %d info\n",
		verdict, res.Summary.Errors, res.Summary.Warnings, res.Summary.Info)
}

func validateHistoryCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived validation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				runs, err := a.Engine.Repo.ListValidationRuns(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "When", "Valid", "Errors", "Warnings"})
				for _, r := range runs {
					tw.AppendRow(table.Row{r.ID, r.TS, r.IsValid, r.Errors, r.Warnings})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of runs")
	return cmd
}

func validateShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show an archived validation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				run, err := a.Engine.Repo.GetValidationRun(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				printFindings(run.Result)
				return nil
			})
		},
	}
	return cmd
}

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Analyze the co-run task graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				analysis, err := a.Engine.CoRunGraph(cmd.Context())
				if err != nil {
					return err
				}
				return printJSONOrTable(analysis)
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workspace contents and the latest validation verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out := map[string]any{}
				for _, entity := range []string{domain.EntityClient, domain.EntityWorker, domain.EntityTask} {
					n, err := a.Engine.Repo.CountRecords(ctx, entity)
					if err != nil {
						return err
					}
					out[entity] = n
				}
				rules, err := a.Engine.Repo.ListRules(ctx)
				if err != nil {
					return err
				}
				out["rules"] = len(rules)
				runs, err := a.Engine.Repo.ListValidationRuns(ctx, 1)
				if err != nil {
					return err
				}
				if len(runs) > 0 {
					out["last_validation"] = map[string]any{
						"id":       runs[0].ID,
						"ts":       runs[0].TS,
						"is_valid": runs[0].IsValid,
						"errors":   runs[0].Errors,
						"warnings": runs[0].Warnings,
					}
				}
				return printJSONOrTable(out)
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Engine.Repo.ListEvents(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Log: a.Log})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Crewplan API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"), viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
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
