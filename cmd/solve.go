package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/transitionlab/fleetpath/app"
	"github.com/transitionlab/fleetpath/config"
	"github.com/transitionlab/fleetpath/core/model"
	"github.com/transitionlab/fleetpath/infra/logger"
)

var scenarioPath string

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a scenario file and print the result",
	RunE:  solveScenario,
}

func init() {
	solveCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario definition file (json)")
	_ = solveCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(solveCmd)
}

func solveScenario(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("solve-command").Errorf("service close: %v", err)
		}
	}()

	data, err := os.ReadFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}
	var sc model.ScenarioDefinition
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("parse scenario: %w", err)
	}

	res, err := svc.Solve(ctx, sc)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if res.Status != model.StatusComplete {
		return fmt.Errorf("run %s finished with status %s", res.RunID, res.Status)
	}
	return nil
}
