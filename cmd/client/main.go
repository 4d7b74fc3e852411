package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/paintress/paintress-sync/internal/client"
	"github.com/paintress/paintress-sync/internal/client/config"
	"github.com/paintress/paintress-sync/internal/utils"
	"github.com/paintress/paintress-sync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"

	// keys that may come from the environment alone
	envKeys = []string{"root", "server_url", "token", "encryption_key", "device_id", "sync_type", "sync_interval"}
)

var rootCmd = &cobra.Command{
	Use:     "paintress",
	Short:   "Paintress vault sync",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		showHeader(cmd)

		d, err := client.NewDaemon(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return d.Start(cmd.Context())
	},
}

func init() {
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().SortFlags = false
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Paintress config file")
	cmd.PersistentFlags().StringP("root", "r", "", "Folder to sync")
	cmd.PersistentFlags().StringP("server", "s", config.DefaultServerURL, "Paintress server")
}

func main() {
	logFile := &lumberjack.Logger{
		Filename:   config.DefaultLogFile,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	defer logFile.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".paintress"))
		viper.AddConfigPath(filepath.Join(home, ".config", "paintress"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("root", cmd.Flags().Lookup("root"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))

	viper.SetEnvPrefix("PAINTRESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		viper.BindEnv(key)
	}

	return nil
}

func showHeader(cmd *cobra.Command) {
	fmt.Fprintln(cmd.OutOrStdout(), cyan.Bold(true).Render(version.ShortWithApp()))
}
