package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	clearData  bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "hoa-reimbursement",
	Short:         "HOA Reimbursement",
	Long:          `Tracks volunteer work and purchases submitted to the HOA treasurer for reimbursement.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runningInContainer() bool {
	return os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true"
}

// loadConfig reads config.yml from dir, or the plain environment inside
// containers. ENV_-prefixed variables override file values, e.g.
// ENV_DATABASE_SOURCE for database.source.
func loadConfig(dir string) (*internal.Config, error) {
	var (
		cfg *internal.Config
		err error
	)
	if runningInContainer() {
		cfg = internal.LoadConfigFromEnv()
	} else if cfg, err = readConfigFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readConfigFile(dir string) (*internal.Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s/config.yml: %w", dir, err)
	}

	cfg := new(internal.Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "remove seeded users and their data before seeding")

	rootCmd.AddCommand(httpServerCmd, migrateCmd, seedCmd, versionCmd)
}
