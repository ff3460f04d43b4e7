package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	route "github.com/bassista/go_refresh/internal/api/route"
	"github.com/bassista/go_refresh/internal/logger"
	"github.com/bassista/go_refresh/internal/orchestrator"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// NewRootCmd builds the go_refresh command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "go_refresh",
		Short:         "Keeps in-memory reference data fresh",
		Long:          "go_refresh loads CSV reference data into typed in-memory repositories and refreshes it with periodic update tasks.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return err
			}
			if dir != "" {
				return os.Setenv("GO_REFRESH_CONFIG_PATH", dir)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().String("config-dir", "", "Directory holding config.yaml (overrides GO_REFRESH_CONFIG_PATH)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newReloadCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the data, start the update trigger and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Start(); err != nil {
				return fmt.Errorf("cannot start app: %w", err)
			}

			gin.SetMode(app.Config.Misc.GinMode)
			gin.DefaultWriter = logger.Logger.Writer()
			gin.DefaultErrorWriter = logger.Logger.Writer()

			logger.WithComponent("main").Infof("App will run on port: %d", app.Config.Server.Port)
			r := route.SetupRoutes(app, logger.Logger)
			srv := createGraceHttpServer(app.BaseCtx, "main-server", app.Config.Server, r)
			if err := srv.ListenAndServe(fmt.Sprintf(":%d", app.Config.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Run one update cycle and exit",
		Long:  "Run every enabled update task once, or only the task named with --task. The command fails when any task fails.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := cmd.Flags().GetString("task")
			if err != nil {
				return err
			}

			app, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = app.UpdateOnce(ctx, name)
			var cycleErr *orchestrator.CycleError
			if errors.As(err, &cycleErr) {
				for _, res := range cycleErr.Results {
					logger.WithTask("update", res.Task).Error(res.Describe())
				}
			}
			if err != nil {
				return err
			}

			for _, t := range app.Orchestrator.Tasks() {
				if t.LastResult == nil {
					continue
				}
				logger.WithTask("update", t.Name).Infof("%s, next run after %s", t.LastResult.Describe(), t.RunAfter.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().String("task", "", "Run only the named task")
	return cmd
}

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload [type...]",
		Short: "Load the configured files and print the item counts",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Configure(false); err != nil {
				return err
			}
			if err := app.Orchestrator.Reload(cmd.Context(), args...); err != nil {
				return err
			}

			stores := app.Orchestrator.Stores()
			names := make([]string, 0, len(stores))
			for name := range stores {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, stores[name].Len())
			}
			return nil
		},
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{
				Version:   version,
				Commit:    commit,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("format version info: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "go_refresh %s (commit %s, %s, %s)\n", info.Version, info.Commit, info.GoVersion, info.Platform)
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
