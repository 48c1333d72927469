package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/internal/orchestrator"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/logger"
	"github.com/paiban/roster/pkg/model"
)

func newRunCmd() *cobra.Command {
	var configPath, outPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one assignment and emit the schedule and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssignment(cmd.Context(), configPath, outPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the run definition YAML file (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file path (defaults to stdout)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// periodSpec is one worker's availability window in the run
// definition file.
type periodSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// workerSpec is one worker's entry in the run definition file.
type workerSpec struct {
	ID                     string       `yaml:"id"`
	Name                   string       `yaml:"name"`
	TargetShifts           int          `yaml:"target_shifts"`
	WorkPercentage         int          `yaml:"work_percentage"`
	WorkPeriods            []periodSpec `yaml:"work_periods"`
	DaysOff                []string     `yaml:"days_off"`
	MandatoryDays          []string     `yaml:"mandatory_days"`
	IncompatibleWith       []string     `yaml:"incompatible_with"`
	GapBetweenShifts       int          `yaml:"gap_between_shifts"`
	MaxConsecutiveWeekends int          `yaml:"max_consecutive_weekends"`
}

// policySpec overrides the engine's tolerance and seed defaults.
type policySpec struct {
	TolerancePercent          float64 `yaml:"tolerance_percent"`
	EmergencyTolerancePercent float64 `yaml:"emergency_tolerance_percent"`
	CriticalTolerancePercent  float64 `yaml:"critical_tolerance_percent"`
	Phase2TolerancePercent    float64 `yaml:"phase2_tolerance_percent"`
	Seed                      int64   `yaml:"seed"`
}

// runDefinition is the full shape of a --config YAML file (spec §6
// Inputs).
type runDefinition struct {
	Start    string       `yaml:"start"`
	End      string       `yaml:"end"`
	NumPosts int          `yaml:"num_posts"`
	Holidays []string     `yaml:"holidays"`
	Workers  []workerSpec `yaml:"workers"`
	Policy   policySpec   `yaml:"policy"`
}

func runAssignment(ctx context.Context, configPath, outPath string) error {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfiguration, "could not read run definition file")
	}

	var def runDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfiguration, "could not parse run definition file")
	}

	cfg, err := config.Load()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfiguration, "could not load environment configuration")
	}
	logger.Init(logger.Config{Level: cfg.App.LogLevel, Format: "console", Output: "stderr"})

	input, err := toInput(def)
	if err != nil {
		return err
	}

	output, err := orchestrator.Run(ctx, input)
	if err != nil {
		return err
	}

	doc := renderDocument(output)
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfiguration, "could not encode output document")
	}

	if outPath == "" {
		fmt.Println(string(encoded))
	} else {
		if err := os.WriteFile(outPath, encoded, 0644); err != nil {
			return apperrors.Wrap(err, apperrors.ErrConfiguration, "could not write output file")
		}
	}

	os.Exit(output.Report.ExitCode)
	return nil
}

func toInput(def runDefinition) (orchestrator.Input, error) {
	start, err := time.Parse("2006-01-02", def.Start)
	if err != nil {
		return orchestrator.Input{}, apperrors.Configuration("start must be a YYYY-MM-DD date")
	}
	end, err := time.Parse("2006-01-02", def.End)
	if err != nil {
		return orchestrator.Input{}, apperrors.Configuration("end must be a YYYY-MM-DD date")
	}

	policy := model.DefaultPolicy()
	policy.NumPosts = def.NumPosts
	if def.Policy.TolerancePercent != 0 {
		policy.TolerancePercent = def.Policy.TolerancePercent
	}
	if def.Policy.EmergencyTolerancePercent != 0 {
		policy.EmergencyTolerancePercent = def.Policy.EmergencyTolerancePercent
	}
	if def.Policy.CriticalTolerancePercent != 0 {
		policy.CriticalTolerancePercent = def.Policy.CriticalTolerancePercent
	}
	if def.Policy.Phase2TolerancePercent != 0 {
		policy.Phase2TolerancePercent = def.Policy.Phase2TolerancePercent
	}
	if def.Policy.Seed != 0 {
		policy.Seed = def.Policy.Seed
	}

	workers := make([]*model.Worker, 0, len(def.Workers))
	for _, ws := range def.Workers {
		w, err := toWorker(ws)
		if err != nil {
			return orchestrator.Input{}, err
		}
		workers = append(workers, w)
	}

	return orchestrator.Input{
		Workers:  workers,
		Start:    start,
		End:      end,
		NumPosts: def.NumPosts,
		Holidays: def.Holidays,
		Policy:   policy,
	}, nil
}

func toWorker(ws workerSpec) (*model.Worker, error) {
	w := &model.Worker{
		ID:                     model.WorkerID(ws.ID),
		Name:                   ws.Name,
		TargetShifts:           ws.TargetShifts,
		WorkPercentage:         ws.WorkPercentage,
		DaysOff:                make(map[string]bool),
		MandatoryDays:          make(map[string]bool),
		IncompatibleWith:       make(map[model.WorkerID]bool),
		GapBetweenShifts:       ws.GapBetweenShifts,
		MaxConsecutiveWeekends: ws.MaxConsecutiveWeekends,
	}
	if w.WorkPercentage == 0 {
		w.WorkPercentage = 100
	}

	for _, p := range ws.WorkPeriods {
		start, err := time.Parse("2006-01-02", p.Start)
		if err != nil {
			return nil, apperrors.Configuration(fmt.Sprintf("worker %s has an invalid work period start date", ws.ID))
		}
		end, err := time.Parse("2006-01-02", p.End)
		if err != nil {
			return nil, apperrors.Configuration(fmt.Sprintf("worker %s has an invalid work period end date", ws.ID))
		}
		w.WorkPeriods = append(w.WorkPeriods, model.DateRange{Start: start, End: end})
	}
	for _, d := range ws.DaysOff {
		w.DaysOff[d] = true
	}
	for _, d := range ws.MandatoryDays {
		w.MandatoryDays[d] = true
	}
	for _, id := range ws.IncompatibleWith {
		w.IncompatibleWith[model.WorkerID(id)] = true
	}

	return w, nil
}

// document is the output document of spec §6 Outputs: the schedule
// grid, per-worker statistics, and the termination metadata. It has no
// per-kind violations summary.
type document struct {
	RunID        string              `json:"run_id"`
	Mode         string              `json:"final_mode"`
	Schedule     map[string][]string `json:"schedule"`
	Workers      []workerStat        `json:"workers"`
	Coverage     float64             `json:"coverage_percent"`
	ModeHistory  []string            `json:"mode_history"`
	Attempts     []attemptStat       `json:"attempts"`
	Iterations   int                 `json:"iterations_run"`
	Converged    bool                `json:"converged"`
	Stagnation   int                 `json:"stagnation_final"`
	Distribution distStat            `json:"advanced_distribution"`
	ExitCode     int                 `json:"exit_code"`
	ConfigErrors []string            `json:"config_errors,omitempty"`
}

type workerStat struct {
	WorkerID         string  `json:"worker_id"`
	Target           int     `json:"target"`
	Assigned         int     `json:"assigned"`
	DeviationPercent float64 `json:"deviation_percent"`
	Classification   string  `json:"classification"`
}

type attemptStat struct {
	Index            int     `json:"index"`
	Strategy         string  `json:"strategy"`
	Score            float64 `json:"score"`
	EmptySlots       int     `json:"empty_slots"`
	WorkImbalance    float64 `json:"work_imbalance"`
	WeekendImbalance float64 `json:"weekend_imbalance"`
}

type distStat struct {
	FilledByChunk      int `json:"filled_by_chunk"`
	FilledByBacktrack  int `json:"filled_by_backtrack"`
	FilledBySwapChain  int `json:"filled_by_swap_chain"`
	FilledByRelaxation int `json:"filled_by_relaxation"`
	RemainingEmpty     int `json:"remaining_empty"`
}

func renderDocument(out orchestrator.Output) document {
	b := out.Builder
	doc := document{
		RunID:       out.RunID,
		Mode:        b.Mode.String(),
		Schedule:    make(map[string][]string),
		Coverage:    out.Report.CoveragePercent,
		ModeHistory: out.Report.ModeHistory,
		Iterations:  out.Report.IterationsRun,
		Converged:   out.Report.Converged,
		Stagnation:  out.Report.StagnationFinal,
		ExitCode:    out.Report.ExitCode,
		ConfigErrors: out.ConfigErrors,
		Distribution: distStat{
			FilledByChunk:      out.Distribution.FilledByChunk,
			FilledByBacktrack:  out.Distribution.FilledByBacktrack,
			FilledBySwapChain:  out.Distribution.FilledBySwapChain,
			FilledByRelaxation: out.Distribution.FilledByRelaxation,
			RemainingEmpty:     out.Distribution.RemainingEmpty,
		},
	}

	for _, date := range b.Schedule.Dates() {
		row := make([]string, b.Schedule.NumPosts)
		for p := 0; p < b.Schedule.NumPosts; p++ {
			if w := b.Schedule.At(date, p); w != nil {
				row[p] = string(*w)
			} else {
				row[p] = ""
			}
		}
		doc.Schedule[date] = row
	}

	for _, d := range out.Report.Balance.Deviations {
		doc.Workers = append(doc.Workers, workerStat{
			WorkerID:         string(d.Worker),
			Target:           d.Target,
			Assigned:         d.Assigned,
			DeviationPercent: d.DeviationPercent,
			Classification:   d.Classification.String(),
		})
	}

	for _, a := range out.Report.Attempts {
		doc.Attempts = append(doc.Attempts, attemptStat{
			Index:            a.Index,
			Strategy:         a.Strategy,
			Score:            a.Score,
			EmptySlots:       a.EmptySlots,
			WorkImbalance:    a.WorkImbalance,
			WeekendImbalance: a.WeekendImbalance,
		})
	}

	return doc
}
