// Package cli assembles the service's command-line interface.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/app"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/config"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/version"
)

const defaultEnvPrefix = "SHOPSAAS"

// Options customizes the service command.
type Options struct {
	Name        string
	Description string
	EnvPrefix   string
	// App collaborators injected by the embedding process.
	Services app.Options
}

// NewServiceCommand creates the root command with serve, version and
// config subcommands.
func NewServiceCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "shopify-saas"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = defaultEnvPrefix
	}

	rootCmd := &cobra.Command{
		Use:   opts.Name,
		Short: opts.Description,
	}

	var cfgPath string
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config-file", "c", "", "config file path")

	loadConfig := func() (*config.Config, error) {
		return config.NewViperLoader(cfgPath, opts.EnvPrefix).Load()
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(opts.Name)
			fmt.Printf("Service:    %s\n", info.Service)
			fmt.Printf("Version:    %s\n", info.Version)
			fmt.Printf("Commit:     %s\n", info.Commit)
			fmt.Printf("Build Time: %s\n", info.BuildTime)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := app.New(cfg, opts.Services)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(runCtx)
		},
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = serveCmd.RunE

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			fmt.Println("configuration is valid")
			return nil
		},
	})
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

// Execute runs the command and exits non-zero on failure.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
