package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/roessland/gearsync/gs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gearsync",
	Short: "Keep a local cache of Strava activities and report gear mileage",
	Long: `Gearsync mirrors your Strava activities into a local cache and reports how far
each pair of shoes (and bike) has gone.

Only activities that are not cached yet are fetched, so repeated runs cost a single
API request when nothing changed.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new activities and print the gear summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		saveJSON, _ := cmd.Flags().GetBool("save-json")
		outputPath, _ := cmd.Flags().GetString("output")
		showAll, _ := cmd.Flags().GetBool("all")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		metricsFile, _ := cmd.Flags().GetString("metrics-textfile")

		config := gs.SyncConfig{
			Credential:      credentialFromConfig(),
			Cache:           cacheConfig(),
			NoCache:         noCache,
			PageSize:        viper.GetInt("page_size"),
			GearConcurrency: viper.GetInt("gear_concurrency"),
			ShowAll:         showAll,
			SaveJSON:        saveJSON,
			OutputPath:      outputPath,
			MetricsTextfile: metricsFile,
			JSONMode:        jsonMode,
			LogLevel:        viper.GetString("log_level"),
			Saver:           newConfigFileSaver(configFilePath()),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return gs.Sync(ctx, config)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		_, err := gs.Stats(cmd.Context(), cacheConfig(), jsonMode, viper.GetString("log_level"))
		return err
	},
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete all cached activities and gear",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		jsonMode, _ := cmd.Flags().GetBool("json")
		_, err := gs.ClearCache(cmd.Context(), cacheConfig(), yes, jsonMode, viper.GetString("log_level"))
		return err
	},
}

// credentialFromConfig reads the Strava identity and token pair from viper
func credentialFromConfig() gs.Credential {
	cred := gs.Credential{
		ClientID:     viper.GetString("client_id"),
		ClientSecret: viper.GetString("client_secret"),
		AccessToken:  viper.GetString("access_token"),
		RefreshToken: viper.GetString("refresh_token"),
	}
	if exp := viper.GetInt64("expires_at"); exp > 0 {
		cred.ExpiresAt = time.Unix(exp, 0).UTC()
	}
	return cred
}

func cacheConfig() gs.CacheConfig {
	return gs.CacheConfig{
		Backend:       viper.GetString("cache_backend"),
		RedisAddr:     viper.GetString("redis_addr"),
		RedisPassword: viper.GetString("redis_password"),
		RedisDB:       viper.GetInt("redis_db"),
		SQLitePath:    viper.GetString("sqlite_path"),
	}
}

// configFilePath is where refreshed tokens are written back
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gearsync", "gearsync.yaml")
}

func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Viper defaults
	viper.SetDefault("cache_backend", gs.BackendRedis)
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("redis_db", 0)
	viper.SetDefault("sqlite_path", "~/.gearsync/cache.db")
	viper.SetDefault("page_size", gs.DefaultPageSize)
	viper.SetDefault("gear_concurrency", gs.DefaultGearConcurrency)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gearsync/gearsync.yaml)")
	rootCmd.PersistentFlags().String("cache-backend", "", "Cache backend: redis, sqlite or memory (default: redis)")
	rootCmd.PersistentFlags().Bool("json", false, "Output structured JSON logs instead of interactive mode")
	viper.BindPFlag("cache_backend", rootCmd.PersistentFlags().Lookup("cache-backend"))

	// Sync command flags
	syncCmd.Flags().Bool("save-json", false, "Save the summary to a JSON file")
	syncCmd.Flags().String("output", "all_shoes.json", "Output JSON filename")
	syncCmd.Flags().Bool("all", false, "Include retired shoes and bikes in the summary")
	syncCmd.Flags().Bool("no-cache", false, "Use an in-memory cache for this run only")
	syncCmd.Flags().String("metrics-textfile", "", "Write Prometheus metrics to this file (node_exporter textfile format)")

	// Clear-cache command flags
	clearCacheCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	// Bind environment variables
	viper.BindEnv("client_id", "GS_STRAVA_CLIENT_ID")
	viper.BindEnv("client_secret", "GS_STRAVA_CLIENT_SECRET")
	viper.BindEnv("access_token", "GS_STRAVA_ACCESS_TOKEN")
	viper.BindEnv("refresh_token", "GS_STRAVA_REFRESH_TOKEN")
	viper.BindEnv("cache_backend", "GS_CACHE_BACKEND")
	viper.BindEnv("redis_addr", "GS_REDIS_ADDR")
	viper.BindEnv("redis_password", "GS_REDIS_PASSWORD")
	viper.BindEnv("redis_db", "GS_REDIS_DB")
	viper.BindEnv("sqlite_path", "GS_SQLITE_PATH")
	viper.BindEnv("log_level", "LOG_LEVEL")

	rootCmd.AddCommand(syncCmd, statsCmd, clearCacheCmd)
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in ~/.gearsync/ directory with name "gearsync" (without extension).
		viper.AddConfigPath(filepath.Join(home, ".gearsync"))
		viper.SetConfigName("gearsync")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in silently (logging is via LOG_LEVEL env var)
	viper.ReadInConfig()
}
