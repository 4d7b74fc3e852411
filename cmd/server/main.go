package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/paintress/paintress-sync/internal/server"
	"github.com/paintress/paintress-sync/internal/server/auth"
	"github.com/paintress/paintress-sync/internal/server/blob"
	"github.com/paintress/paintress-sync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PAINTRESS"

// defaults double as the list of keys viper resolves from the environment
var defaults = map[string]any{
	"data_dir":                 "./data",
	"http.addr":                server.DefaultAddr,
	"http.cert_file":           "",
	"http.key_file":            "",
	"http.rate_limit":          server.DefaultRateLimit,
	"blob.backend":             blob.BackendLocal,
	"blob.local_root":          "",
	"blob.s3.bucket_name":      "",
	"blob.s3.region":           "",
	"blob.s3.access_key":       "",
	"blob.s3.secret_key":       "",
	"blob.s3.endpoint":         "",
	"blob.s3.use_accelerate":   false,
	"blob.s3.presign":          false,
	"auth.enabled":             true,
	"auth.token_issuer":        "paintress",
	"auth.access_token_secret": "",
	"auth.access_token_expiry": "0s",
	"auth.default_workspace":   "",
}

// legacyEnv maps the environment names of the first server release onto config keys.
var legacyEnv = map[string]string{
	"blob.local_root":     "LOCAL_FS_ROOT",
	"blob.s3.bucket_name": "S3_BUCKET_NAME",
	"blob.s3.region":      "S3_REGION",
	"blob.s3.access_key":  "S3_ACCESS_KEY",
	"blob.s3.secret_key":  "S3_SECRET_KEY",
	"blob.s3.endpoint":    "S3_ENDPOINT",
}

var rootCmd = &cobra.Command{
	Use:     "paintress-server",
	Short:   "Paintress sync server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <workspace>",
	Short: "Mint an access token for a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.Auth.Enabled {
			return errors.New("auth is disabled, tokens are not needed")
		}

		expiry, _ := cmd.Flags().GetDuration("expiry")
		token, err := auth.NewAuthService(&cfg.Auth).IssueToken(args[0], expiry)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "f", "", "Path to the config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a dotenv file")
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringP("cert", "c", "", "Path to the certificate file")
	rootCmd.Flags().StringP("key", "k", "", "Path to the key file")
	rootCmd.Flags().StringP("data-dir", "d", "./data", "Directory for the database and local blobs")

	tokenCmd.Flags().Duration("expiry", 0, "Token lifetime, 0 uses the configured expiry and a negative value never expires")
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	envFile := flagString(cmd, "env-file")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("env file '%s': %w", envFile, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configFile := flagString(cmd, "config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), env)
	}
	if os.Getenv("USE_S3_STORAGE") == "true" && !v.InConfig("blob.backend") && os.Getenv(envPrefix+"_BLOB_BACKEND") == "" {
		v.Set("blob.backend", blob.BackendS3)
	}

	bindFlag(v, cmd, "http.addr", "bind")
	bindFlag(v, cmd, "http.cert_file", "cert")
	bindFlag(v, cmd, "http.key_file", "key")
	bindFlag(v, cmd, "data_dir", "data-dir")

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindFlag binds a flag only on commands that define it.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flag(flag); f != nil {
		v.BindPFlag(key, f)
	}
}

func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
