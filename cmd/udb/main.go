package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/brattlof/usersdb/internal/app/config"
	"github.com/brattlof/usersdb/internal/app/service"
	"github.com/brattlof/usersdb/internal/events"
	"github.com/brattlof/usersdb/internal/scaffold"
	"github.com/brattlof/usersdb/internal/seed"
	"github.com/brattlof/usersdb/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "udb",
	Short:   "udb - manage and serve a JSON-file user database",
	Version: version,
}

func loadConfig(cmd *cobra.Command) *config.Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(service.SetupLogger(cfg))
	return cfg
}

func openStore(ctx context.Context, cfg *config.Config) store.Store {
	s, err := store.Open(ctx, service.StoreOptions(cfg), slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return s
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the users HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.App.Port = port
		}
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			cfg.Store.Watch = true
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(ctx, cfg, slog.Default())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
			os.Exit(1)
		}
		defer svc.Close()

		if err := svc.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create an empty user document and sample configuration",
	Long: `Create an empty user document and sample configuration.

Examples:
  udb init                        Write data/db.json and usersd.yaml here
  udb init ./crm --name crm       Lay out a new directory
  udb init --force                Reset an existing document to no users`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := scaffold.Options{Dir: "."}
		if len(args) == 1 {
			opts.Dir = args[0]
		}
		opts.Name, _ = cmd.Flags().GetString("name")
		opts.DataPath, _ = cmd.Flags().GetString("data")
		opts.Port, _ = cmd.Flags().GetInt("port")
		opts.Force, _ = cmd.Flags().GetBool("force")

		if backend, _ := cmd.Flags().GetBool("store"); backend {
			initBackend(cmd, opts.Force)
			return
		}

		written, err := scaffold.Init(nil, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for _, p := range written {
			fmt.Printf("  created %s\n", p)
		}
		fmt.Println("\nNext steps:")
		if opts.Dir != "." {
			fmt.Printf("  cd %s\n", opts.Dir)
		}
		fmt.Println("  udb serve")
	},
}

// initBackend writes an empty document to the configured store, leaving an
// existing readable document alone unless force is set.
func initBackend(cmd *cobra.Command, force bool) {
	cfg := loadConfig(cmd)
	ctx := context.Background()
	s := openStore(ctx, cfg)
	defer s.Close()

	if !force {
		if doc, err := s.Read(ctx); err == nil {
			fmt.Fprintf(os.Stderr, "Error: %s store already holds %d user(s) (use --force to reset)\n", cfg.Store.Driver, len(doc.Users))
			os.Exit(1)
		}
	}

	if err := s.Write(ctx, &store.Document{}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing document: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Initialized empty document in %s store\n", cfg.Store.Driver)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Append generated users to the document",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		count, _ := cmd.Flags().GetInt("count")
		fixed, _ := cmd.Flags().GetUint64("seed")
		publish, _ := cmd.Flags().GetBool("publish")

		ctx := context.Background()
		s := openStore(ctx, cfg)
		defer s.Close()

		var pub events.Publisher = events.Nop{}
		if publish {
			p, err := events.New(service.EventOptions(cfg), slog.Default())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating event publisher: %v\n", err)
				os.Exit(1)
			}
			defer p.Close()
			pub = p
		}

		created, err := seed.NewSeeder(s, pub, fixed, slog.Default()).Seed(ctx, count)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding users: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added %d user(s)\n", len(created))
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the current user document",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		ctx := context.Background()
		s := openStore(ctx, cfg)
		defer s.Close()

		doc, err := s.Read(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading document: %v\n", err)
			os.Exit(1)
		}

		data, err := store.Encode(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding document: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the API routes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		jsonOutput, _ := cmd.Flags().GetBool("json")

		routes, err := service.Routes(cfg, slog.Default())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building routes: %v\n", err)
			os.Exit(1)
		}

		prefix := strings.TrimSuffix(cfg.API.Prefix, "/")
		if jsonOutput {
			output := make([]map[string]string, len(routes))
			for i, r := range routes {
				output[i] = map[string]string{
					"method":  r.Method,
					"pattern": prefix + r.Pattern,
					"name":    r.Name,
				}
			}
			data, _ := json.MarshalIndent(map[string]interface{}{"routes": output}, "", "  ")
			fmt.Println(string(data))
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATTERN\tNAME")
		fmt.Fprintln(w, "------\t-------\t----")
		for _, r := range routes {
			fmt.Fprintf(w, "%s\t%s%s\t%s\n", r.Method, prefix, r.Pattern, r.Name)
		}
		w.Flush()
	},
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect middleware plugins",
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List compiled-in plugins and whether they are enabled",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		jsonOutput, _ := cmd.Flags().GetBool("json")

		registry, loader, err := service.LoadPlugins(context.Background(), cfg, slog.Default())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading plugins: %v\n", err)
			os.Exit(1)
		}
		defer loader.Close()

		if jsonOutput {
			data, _ := json.MarshalIndent(map[string]interface{}{
				"available": loader.Available(),
				"enabled":   registry.Names(),
			}, "", "  ")
			fmt.Println(string(data))
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENABLED\tVERSION\tDESCRIPTION")
		fmt.Fprintln(w, "----\t-------\t-------\t-----------")
		for _, name := range loader.Available() {
			if info, ok := registry.Info(name); ok {
				fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", name, true, info.Version, info.Description)
				continue
			}
			fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", name, false, "-", "-")
		}
		w.Flush()
	},
}

var pluginInspectCmd = &cobra.Command{
	Use:   "inspect [name]",
	Short: "Show version, options and hooks of enabled plugins",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		registry, loader, err := service.LoadPlugins(context.Background(), cfg, slog.Default())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading plugins: %v\n", err)
			os.Exit(1)
		}
		defer loader.Close()

		var out interface{} = registry.AllInfo()
		if len(args) == 1 {
			info, ok := registry.Info(args[0])
			if !ok {
				fmt.Fprintf(os.Stderr, "Error: plugin %s is not enabled\n", args[0])
				os.Exit(1)
			}
			out = info
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("udb v%s\n", version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")

	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().Bool("watch", false, "Log external edits to the data file")

	initCmd.Flags().String("name", "usersd", "Service name used in the sample config")
	initCmd.Flags().String("data", "data/db.json", "Document path relative to dir")
	initCmd.Flags().IntP("port", "p", 3001, "Port written to the sample config")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing files")
	initCmd.Flags().Bool("store", false, "Initialize the configured store backend instead of writing files")

	seedCmd.Flags().IntP("count", "n", 10, "Number of users to add")
	seedCmd.Flags().Uint64("seed", 0, "Fixed random seed (0 picks one)")
	seedCmd.Flags().Bool("publish", false, "Publish user.created events for seeded users")

	routesCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	pluginListCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	pluginCmd.AddCommand(pluginListCmd, pluginInspectCmd)
	rootCmd.AddCommand(serveCmd, initCmd, seedCmd, dumpCmd, routesCmd, pluginCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
