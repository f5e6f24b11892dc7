// callhub-bulk drives CallHub's contact APIs from the command line: bulk
// imports, field inspection, contact export, and do-not-call list upkeep.
package main

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dialops/callhub-client/pkg/batch"
	"github.com/dialops/callhub-client/pkg/callhub"
	"github.com/dialops/callhub-client/pkg/logging"
	"github.com/dialops/callhub-client/pkg/remote"
)

var (
	apiKey            string
	baseURL           string
	redisAddr         string
	rateConfigPath    string
	concurrency       int
	logLevel          string
	prettyLogs        bool
	disableRateLimits bool
)

var rootCmd = &cobra.Command{
	Use:   "callhub-bulk",
	Short: "Bulk operations for CallHub accounts",
	Long: `callhub-bulk drives CallHub's contact APIs from the command line:
bulk imports, field inspection, contact export, and do-not-call list upkeep.

Every call honors the account rate limits; CallHub locks accounts that
exceed them. The API key comes from --api-key or the CALLHUB_API_KEY
environment variable.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Config{
			Level:  logging.LogLevel(logLevel),
			Pretty: prettyLogs,
			Output: os.Stderr,
		})
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "CallHub API key (defaults to CALLHUB_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", remote.DefaultBaseURL, "CallHub API base URL")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address for rate-limit state shared across processes")
	rootCmd.PersistentFlags().StringVar(&rateConfigPath, "rate-config", "", "YAML file with rate limit overrides")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", batch.DefaultConcurrency, "parallel requests for batch operations")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", string(logging.LevelInfo), "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "human-readable log output")
	rootCmd.PersistentFlags().BoolVar(&disableRateLimits, "disable-rate-limits", false, "turn off every rate limiter (risks an account lockout)")
}

// newClient builds the CallHub client from the global flags.
func newClient() (*callhub.Client, error) {
	cfg := callhub.Config{
		APIKey:            apiKey,
		BaseURL:           baseURL,
		UserAgent:         "callhub-bulk/1.0",
		Concurrency:       concurrency,
		DisableRateLimits: disableRateLimits,
	}

	if rateConfigPath != "" {
		limits, err := loadRateConfig(rateConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load rate config: %w", err)
		}
		cfg.RateLimits = limits
	}

	if redisAddr != "" {
		cfg.Redis = redis.NewClient(&redis.Options{Addr: redisAddr})
	}

	return callhub.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
