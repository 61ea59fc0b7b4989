package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davshare/davshare/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the davshare server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		port := viper.GetString("port")
		if port == "" {
			port = "8080"
		}

		dataDir := viper.GetString("data_dir")
		if dataDir == "" {
			dataDir = "data"
		}
		absDataDir, err := filepath.Abs(dataDir)
		if err != nil {
			return fmt.Errorf("resolving data dir: %w", err)
		}

		mode := viper.GetString("mode")
		if mode != server.ModeProduction {
			mode = server.ModeDevelopment
		}

		corsOrigin := viper.GetString("cors_origin")
		if corsOrigin == "" {
			if mode == server.ModeProduction {
				return fmt.Errorf("cors_origin must be set in production mode (--cors-origin or DAVSHARE_CORS_ORIGIN)")
			}
			corsOrigin = "*"
		}

		store, err := getUserStore()
		if err != nil {
			return fmt.Errorf("failed to load user store: %w", err)
		}

		// Register the bootstrap account from configuration, replacing any
		// stored password for that user.
		if u, p := viper.GetString("auth_user"), viper.GetString("auth_password"); u != "" && p != "" {
			if err := store.Set(u, p); err != nil {
				return fmt.Errorf("registering bootstrap user: %w", err)
			}
			log.WithField("user", u).Info("bootstrap user registered")
		}

		if store.Len() == 0 {
			log.Warn("no users defined; all requests will be rejected. Use 'davshare user add' or set DAVSHARE_AUTH_USER/DAVSHARE_AUTH_PASSWORD")
		}

		srv, err := server.New(server.Config{
			Addr:       ":" + port,
			DataDir:    absDataDir,
			Prefix:     viper.GetString("prefix"),
			Mode:       mode,
			CORSOrigin: corsOrigin,
		}, store, log)
		if err != nil {
			return err
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-stop:
		}
		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		log.Info("server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serverCmd.Flags().StringP("data-dir", "d", "data", "Directory to store data files")
	serverCmd.Flags().String("prefix", "/api", "Mount prefix of the WebDAV namespace")
	serverCmd.Flags().String("mode", "development", "Runtime mode (development or production)")
	serverCmd.Flags().String("cors-origin", "", "Allowed CORS origin (defaults to * outside production)")
	serverCmd.Flags().String("auth-user", "", "Bootstrap username registered at startup")
	serverCmd.Flags().String("auth-password", "", "Password of the bootstrap user")

	viper.BindPFlag("port", serverCmd.Flags().Lookup("port"))
	viper.BindPFlag("data_dir", serverCmd.Flags().Lookup("data-dir"))
	viper.BindPFlag("prefix", serverCmd.Flags().Lookup("prefix"))
	viper.BindPFlag("mode", serverCmd.Flags().Lookup("mode"))
	viper.BindPFlag("cors_origin", serverCmd.Flags().Lookup("cors-origin"))
	viper.BindPFlag("auth_user", serverCmd.Flags().Lookup("auth-user"))
	viper.BindPFlag("auth_password", serverCmd.Flags().Lookup("auth-password"))
}

// newLogger builds the logger injected into the gateway from the log_level
// and log_format settings.
func newLogger() *logrus.Logger {
	log := logrus.New()

	if lvl, err := logrus.ParseLevel(viper.GetString("log_level")); err == nil {
		log.SetLevel(lvl)
	}
	switch viper.GetString("log_format") {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
