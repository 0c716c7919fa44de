package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sgfractal/eigen-workflow/internal/config"
	"github.com/sgfractal/eigen-workflow/internal/engine"
	"github.com/sgfractal/eigen-workflow/internal/logging"
	"github.com/sgfractal/eigen-workflow/internal/repository"
	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// seedDefinitions are the canonical workflows created on a fresh deployment,
// keyed by name so reruns skip names already stored as active workflows.
var seedDefinitions = []struct {
	Name   string
	Phases []models.PhaseDefinition
}{
	{
		Name: "incident-response",
		Phases: []models.PhaseDefinition{
			{
				Name:          "notify-on-call",
				Type:          models.PhaseImmediate,
				Timeout:       5 * time.Minute,
				OperatorSetID: "on-call",
			},
			{
				Name:               "triage-consensus",
				Type:               models.PhaseCoordination,
				Timeout:            30 * time.Minute,
				Dependencies:       []int{0},
				OperatorSetID:      "incident-responders",
				ConsensusThreshold: 6000,
			},
			{
				Name:          "postmortem",
				Type:          models.PhaseAggregation,
				Timeout:       24 * time.Hour,
				Dependencies:  []int{1},
				OperatorSetID: "incident-responders",
			},
		},
	},
	{
		Name: "deployment-rollout",
		Phases: []models.PhaseDefinition{
			{
				Name:          "canary-monitor",
				Type:          models.PhaseContinuous,
				Timeout:       2 * time.Hour,
				OperatorSetID: "sre",
				Metadata:      []byte(`{"update_interval_secs":300,"required_updates":6}`),
			},
			{
				Name:               "rollout-approval",
				Type:               models.PhaseCoordination,
				Timeout:            1 * time.Hour,
				Dependencies:       []int{0},
				OperatorSetID:      "release-managers",
				ConsensusThreshold: 5000,
			},
		},
	},
	{
		Name: "manual-trigger-audit",
		Phases: []models.PhaseDefinition{
			{
				Name:             "await-audit-signal",
				Type:             models.PhaseConditional,
				Timeout:          7 * 24 * time.Hour,
				OperatorSetID:    "compliance",
				TriggerCondition: []byte(`{"event":"audit_signal"}`),
			},
			{
				Name:          "record-findings",
				Type:          models.PhaseAggregation,
				Timeout:       1 * time.Hour,
				Dependencies:  []int{0},
				OperatorSetID: "compliance",
			},
		},
	},
}

func newSeedCommand(logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Register the canonical starter workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			pool, err := initDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			admin, err := models.ParsePrincipal(cfg.Admin.Principal)
			if err != nil {
				return err
			}

			store := repository.New(pool)
			stored, err := store.LoadActiveWorkflows(ctx)
			if err != nil {
				return err
			}
			eng := engine.New(engine.Config{
				Persister:      store,
				Logger:         logger,
				Events:         logging.NewEventLogger(logger),
				AdminPrincipal: admin,
				FeeAmounts:     engine.Fees{CreationFee: cfg.Fees.CreationFee, ExecutionFee: cfg.Fees.ExecutionFee},
			})
			eng.Restore(stored, nil)

			seeder := admin
			if err := eng.AuthorizeWorkflowCreator(admin, seeder); err != nil {
				return err
			}

			existing := make(map[string]bool)
			for _, wf := range eng.ListWorkflows() {
				existing[wf.Name] = true
			}

			for _, def := range seedDefinitions {
				if existing[def.Name] {
					logger.Info("skipping existing workflow", "name", def.Name)
					continue
				}
				id, err := eng.RegisterWorkflow(ctx, seeder, def.Name, def.Phases, nil, cfg.Fees.CreationFee)
				if err != nil {
					logger.Error("failed to seed workflow", "name", def.Name, "error", err)
					continue
				}
				logger.Info("seeded workflow", "name", def.Name, "id", id)
			}

			logger.Info("seeding complete")
			return nil
		},
	}
}
