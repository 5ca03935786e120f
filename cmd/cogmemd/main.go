// Command cogmemd is the cognition engine's CLI: initialize a database,
// run one-off maintenance ticks, fire the scheduler, and search memories
// from the command line, all against the same embedded SQLite store a
// host process would use. Grounded on liliang-cn-sqvect's cmd/sqvect
// main.go (persistent-flag root command, subcommand-per-operation,
// lazy store-open-per-command shape).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/cogmemlog"
	"github.com/kittclouds/cogmem/pkg/config"
	"github.com/kittclouds/cogmem/pkg/gardener"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/kittclouds/cogmem/pkg/scheduler"
	"github.com/kittclouds/cogmem/pkg/search"
)

var (
	dbPath        string
	configPath    string
	openrouterKey string
	openrouterMdl string
	embeddingDim  int
	pretty        bool
)

var rootCmd = &cobra.Command{
	Use:   "cogmemd",
	Short: "Cognition memory engine: maintenance ticks, scheduler, and search over one embedded store",
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "cogmem.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config path (uses built-in defaults if unset)")
	rootCmd.PersistentFlags().StringVar(&openrouterKey, "openrouter-key", os.Getenv("OPENROUTER_API_KEY"), "OpenRouter API key for cognition LLM calls")
	rootCmd.PersistentFlags().StringVar(&openrouterMdl, "openrouter-model", "openai/gpt-4o-mini", "OpenRouter model for cognition LLM calls")
	rootCmd.PersistentFlags().IntVar(&embeddingDim, "embedding-dim", 256, "Embedding dimensionality for the reference hash embedder")
	rootCmd.PersistentFlags().BoolVarP(&pretty, "verbose", "v", false, "Human-readable console logging instead of JSON")

	rootCmd.AddCommand(tickCmd, searchCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewWithDSN(dbPath)
}

func buildEmbedder() provider.Embedder {
	cached, err := provider.NewCachedEmbedder(provider.NewHashEmbedder(embeddingDim), 4096)
	if err != nil {
		return provider.NewHashEmbedder(embeddingDim)
	}
	return cached
}

func buildLLM(log zerolog.Logger) provider.LLM {
	if openrouterKey == "" {
		return nil
	}
	return provider.NewOpenRouterClient(provider.OpenRouterConfig{
		APIKey: openrouterKey, Model: openrouterMdl, Timeout: 60 * time.Second,
	}, log)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

var tickCmd = &cobra.Command{
	Use:   "tick [light|deep|sleep]",
	Short: "Run one maintenance tick for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		force, _ := cmd.Flags().GetBool("force")
		if userID == "" {
			return fmt.Errorf("--user is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		log := cogmemlog.New("cogmemd", pretty)
		llm := buildLLM(log)
		eng := gardener.New(st, llm, nil, "", cfg, log)

		nowMs := time.Now().UnixMilli()
		var summary gardener.TickSummary
		switch args[0] {
		case "light":
			summary = eng.LightTick(userID, nowMs)
		case "deep":
			summary = eng.DeepTick(context.Background(), userID, nowMs)
		case "sleep":
			summary = eng.SleepTick(context.Background(), userID, nowMs, force)
		default:
			return fmt.Errorf("unknown tick kind %q (want light, deep, or sleep)", args[0])
		}
		printJSON(summary)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run hybrid search for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		profileStr, _ := cmd.Flags().GetString("profile")
		topK, _ := cmd.Flags().GetInt("top-k")
		if userID == "" {
			return fmt.Errorf("--user is required")
		}

		st, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		log := cogmemlog.New("cogmemd", pretty)
		eng := search.New(st, buildEmbedder(), buildLLM(log), log)

		results, err := eng.Search(context.Background(), args[0], search.Options{
			UserID: userID, TopK: topK, Profile: search.Profile(profileStr),
		})
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		printJSON(results)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run maintenance ticks and the scheduler on their configured intervals for one user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			return fmt.Errorf("--user is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		log := cogmemlog.New("cogmemd", pretty)
		llm := buildLLM(log)
		gardenerEng := gardener.New(st, llm, nil, "", cfg, log)
		schedulerEng := scheduler.New(st, noopSender{log: log}, nil, log)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		light := time.NewTicker(cfg.Gardener.LightTickInterval)
		deep := time.NewTicker(cfg.Gardener.DeepTickInterval)
		sleep := time.NewTicker(cfg.Gardener.SleepTickInterval)
		schedulerTick := time.NewTicker(time.Minute)
		defer light.Stop()
		defer deep.Stop()
		defer sleep.Stop()
		defer schedulerTick.Stop()

		log.Info().Str("user", userID).Msg("cogmemd serving")
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-light.C:
				gardenerEng.LightTick(userID, time.Now().UnixMilli())
			case <-deep.C:
				gardenerEng.DeepTick(ctx, userID, time.Now().UnixMilli())
			case <-sleep.C:
				gardenerEng.SleepTick(ctx, userID, time.Now().UnixMilli(), false)
			case <-schedulerTick.C:
				schedulerEng.Tick(ctx, time.Now().UnixMilli())
			}
		}
	},
}

// noopSender logs nudges it would have delivered; a real host wires its
// own provider.MessageSender (chat API, push notifications, email) at
// construction instead.
type noopSender struct{ log zerolog.Logger }

func (n noopSender) SendMessage(ctx context.Context, userID, text string) (bool, error) {
	n.log.Info().Str("userId", userID).Str("text", text).Msg("deliver scheduled item (no sender configured)")
	return true, nil
}

func init() {
	for _, c := range []*cobra.Command{tickCmd, searchCmd, serveCmd} {
		c.Flags().String("user", "", "user id to operate on")
	}
	tickCmd.Flags().Bool("force", false, "force a sleep tick even outside quiet hours")
	searchCmd.Flags().String("profile", string(search.ProfileBalancedProminence), "search scoring profile: lexical-heavy, balanced+prominence, or pure-vector")
	searchCmd.Flags().Int("top-k", 10, "maximum results to return")
}
