package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AndreyZakrevsky/btt/pkg/app"
	"github.com/AndreyZakrevsky/btt/utilities"
)

var (
	cfgFile string
	appCfg  utilities.AppConfig
	logger  *utilities.Logger
)

var rootCmd = &cobra.Command{
	Use:   "btt",
	Short: "Automated Binance spot trader with a Telegram control surface",
	Long: `btt polls a single spot pair on Binance, sells a fixed notional above the
average acquisition price of the inventory it has built, and buys the whole
position back once the price drops below it. The operator steers it over
Telegram; the position record survives restarts in a local JSON file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("json")
		viper.AutomaticEnv()

		// Secrets come from the environment (or .env), never the config file.
		_ = viper.BindEnv("binance.api_key", "BINANCE_API_KEY")
		_ = viper.BindEnv("binance.api_secret", "BINANCE_API_SECRET")
		_ = viper.BindEnv("telegram.token", "TELEGRAM_TOKEN")
		_ = viper.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file %q: %w", cfgFile, err)
		}
		if err := viper.Unmarshal(&appCfg); err != nil {
			return fmt.Errorf("could not unmarshal config: %w", err)
		}

		level, err := utilities.ParseLogLevel(appCfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("invalid logging.level in config: %w", err)
		}
		logger = utilities.NewLogger(level)
		logger.LogInfo("Configuration loaded from %s.", viper.ConfigFileUsed())
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			logger.LogWarn("Received signal %s, shutting down...", sig)
			cancel()
		}()

		if err := app.Run(ctx, &appCfg, logger); err != nil {
			return err
		}
		logger.LogInfo("Shutdown complete.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.json", "path to the JSON config file")
}

// Execute runs the root command. It is the only entry point main uses.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
