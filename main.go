package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"notechat/controller"
	"notechat/db"
	"notechat/ui"
	"notechat/utils"
)

var (
	version = "0.1.0"
)

// environment is everything a command needs, built from the config file
type environment struct {
	config     *utils.Config
	configPath string
	logger     *utils.Logger
	service    *db.Service
}

func (e *environment) Close() {
	if err := e.service.Close(); err != nil {
		e.logger.Error("Failed to close storage: %v", err)
	}
	e.logger.Close()
}

// openEnvironment loads (or creates) the config, then opens the logger and storage
func openEnvironment(configPath string, console io.Writer) (*environment, error) {
	var err error
	if configPath == "" {
		configPath, err = utils.EnsureDefaultConfig("")
		if err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	config, err := utils.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := utils.NewLogger(utils.GetLogPath(config.Log.Dir), console)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDebug(config.Log.Debug)
	logger.Debug("Using config file: %s", configPath)

	processor := utils.NewImageProcessor(config.Images.JPEGQuality, config.Images.MaxDimension)
	service, err := db.Open(config.Data.Dir, config.Data.Backend, processor, logger)
	if err != nil {
		logger.Error("Failed to open storage: %v", err)
		logger.Close()
		return nil, err
	}
	logger.Debug("Storage opened: %s", service.Location())

	return &environment{
		config:     config,
		configPath: configPath,
		logger:     logger,
		service:    service,
	}, nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "notechat",
		Short:        "Chats of text and image notes kept on this machine",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	cmd.AddCommand(newRunCmd(&configPath))
	cmd.AddCommand(newListCmd(&configPath))
	cmd.AddCommand(newStatsCmd(&configPath))
	cmd.AddCommand(newCheckCmd(&configPath))
	cmd.AddCommand(newExportCmd(&configPath))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the desktop app",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(*configPath)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notechat %s\n", version)
		},
	}
}

// runApp is the composition root of the desktop app
func runApp(configPath string) error {
	env, err := openEnvironment(configPath, os.Stdout)
	if err != nil {
		return err
	}
	defer env.Close()

	env.logger.Info("Starting Notechat v%s", version)

	chats := controller.NewChatList(env.service, env.logger, env.config.DebounceWindow())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := chats.Close(ctx); err != nil {
			env.logger.Error("Failed to save chats on exit: %v", err)
		}
	}()

	app := ui.NewApp(env.config, env.configPath, chats, env.logger)
	env.logger.Info("Application started")
	app.Run()
	env.logger.Info("Application stopped")
	return nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
