package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "caravel",
	Short: "Caravel - build, publish and roll out container images",
	Long: `Caravel is a single-binary deployment pipeline: it builds a container
image from a build context, publishes it to a registry under a unique
build tag and "latest", rolls it out to a Kubernetes workload, waits
for the rollout to become healthy, and prunes stale local layers.`,
	SilenceUsage: true,
}

// Execute runs the CLI. Build metadata is injected by the linker.
func Execute(version, commit, date string) {
	setVersionInfo(version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./caravel.toml)")
}

func initConfig() {
	// Credentials may be provided through a .env next to the config.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("caravel")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		if userConfigDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(userConfigDir + "/caravel")
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(homeDir + "/.caravel")
		}
		viper.AddConfigPath("/etc/caravel")
	}

	viper.SetEnvPrefix("caravel")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
	}
}
