package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aristath/allocator/internal/modules/allocation"
	"github.com/aristath/allocator/internal/modules/rebalancing"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// env is shared by every command
type env struct {
	out io.Writer
	log zerolog.Logger
}

// Commands returns every allocate command writing results to out
func Commands(out io.Writer, log zerolog.Logger) []subcommands.Command {
	e := &env{out: out, log: log}
	return []subcommands.Command{
		&planCmd{env: e},
		&deployCmd{env: e},
		&validateCmd{env: e},
		&normalizeCmd{env: e},
	}
}

func (e *env) write(format string, v interface{}) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(e.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q", format)
}

func (e *env) fail(format string, args ...interface{}) subcommands.ExitStatus {
	e.log.Error().Msgf(format, args...)
	return subcommands.ExitFailure
}

// --- planCmd ---

type planCmd struct {
	*env
	file    string
	format  string
	summary bool
}

func (*planCmd) Name() string     { return "plan" }
func (*planCmd) Synopsis() string { return "computes the rebalancing plan of a scenario" }
func (*planCmd) Usage() string {
	return `plan -f <scenario.yaml> [-format json|yaml] [-summary]

Runs aggregation, target allocation and type constraints over the scenario's
rows, config and rules, and prints the resulting plan.
`
}
func (c *planCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "The scenario file.")
	f.StringVar(&c.format, "format", FormatJSON, "Output format: json or yaml.")
	f.BoolVar(&c.summary, "summary", false, "Print only the plan summary.")
}

func (c *planCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		c.log.Error().Msg("-f is required")
		return subcommands.ExitUsageError
	}

	s, err := LoadScenario(c.file)
	if err != nil {
		return c.fail("%v", err)
	}

	rules := s.AllocationRules()
	if err := allocation.ValidateRules(rules); err != nil {
		return c.fail("%v", err)
	}
	if err := allocation.ValidateTargetConfig(s.Config); err != nil {
		return c.fail("%v", err)
	}

	plan := allocation.NewEngine(c.log).Calculate(s.Rows, s.Config, rules)

	var result interface{} = plan
	if c.summary {
		result = plan.Summary
	}
	if err := c.write(c.format, result); err != nil {
		return c.fail("failed to write plan: %v", err)
	}
	return subcommands.ExitSuccess
}

// --- deployCmd ---

type deployCmd struct {
	*env
	file   string
	format string
	mode   string
	amount string
}

func (*deployCmd) Name() string     { return "deploy" }
func (*deployCmd) Synopsis() string { return "recommends purchases for new cash" }
func (*deployCmd) Usage() string {
	return `deploy -f <scenario.yaml> -amount <cash> [-mode proportional|target_weights|equal_weight] [-format json|yaml]

Splits the amount over the scenario's priced holdings. Target percentages come
from the scenario's targets, or from the plan of its rows and config when no
targets are given.
`
}
func (c *deployCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "The scenario file.")
	f.StringVar(&c.format, "format", FormatJSON, "Output format: json or yaml.")
	f.StringVar(&c.mode, "mode", string(rebalancing.ModeProportional), "Deployment mode.")
	f.StringVar(&c.amount, "amount", "", "Cash amount to deploy.")
}

func (c *deployCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" || c.amount == "" {
		c.log.Error().Msg("-f and -amount are required")
		return subcommands.ExitUsageError
	}

	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		c.log.Error().Err(err).Str("amount", c.amount).Msg("Invalid amount")
		return subcommands.ExitUsageError
	}

	s, err := LoadScenario(c.file)
	if err != nil {
		return c.fail("%v", err)
	}

	holdings := s.DeploymentHoldings()
	mode := rebalancing.Mode(c.mode)

	targets := s.Targets
	if len(targets) == 0 && mode != rebalancing.ModeEqualWeight && len(s.Rows) > 0 {
		plan := allocation.NewEngine(c.log).Calculate(s.Rows, s.Config, s.AllocationRules())
		targets = rebalancing.TargetsFromPlan(plan, holdings)
	}

	service := rebalancing.NewService(rebalancing.NewCalculator(c.log), nil, nil, nil, c.log)
	result, err := service.Calculate(holdings, rebalancing.DeployRequest{
		Amount:  amount,
		Mode:    mode,
		Targets: targets,
	})
	if err != nil {
		return c.fail("%v", err)
	}

	if err := c.write(c.format, result); err != nil {
		return c.fail("failed to write recommendations: %v", err)
	}
	return subcommands.ExitSuccess
}

// --- validateCmd ---

type validateCmd struct {
	*env
	file   string
	maxPct float64
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "checks that allocations sum to 100%" }
func (*validateCmd) Usage() string {
	return `validate -f <allocations.yaml> [-max <pct>]

Exits non-zero when the scenario's allocations do not sum to 100%, or when one
of them is above -max.
`
}
func (c *validateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "The scenario file.")
	f.Float64Var(&c.maxPct, "max", 0, "Largest allowed single allocation; 0 disables the check.")
}

func (c *validateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		c.log.Error().Msg("-f is required")
		return subcommands.ExitUsageError
	}

	s, err := LoadScenario(c.file)
	if err != nil {
		return c.fail("%v", err)
	}

	err = allocation.ValidateAllocations(s.Allocations)
	if err == nil && c.maxPct > 0 {
		err = allocation.CheckAllocationCaps(s.Allocations, c.maxPct)
	}
	if err != nil {
		fmt.Fprintf(c.out, "invalid: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Fprintln(c.out, "valid")
	return subcommands.ExitSuccess
}

// --- normalizeCmd ---

type normalizeCmd struct {
	*env
	file   string
	format string
}

func (*normalizeCmd) Name() string     { return "normalize" }
func (*normalizeCmd) Synopsis() string { return "scales allocations to sum to 100%" }
func (*normalizeCmd) Usage() string {
	return `normalize -f <allocations.yaml> [-format json|yaml]
`
}
func (c *normalizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "The scenario file.")
	f.StringVar(&c.format, "format", FormatYAML, "Output format: json or yaml.")
}

func (c *normalizeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		c.log.Error().Msg("-f is required")
		return subcommands.ExitUsageError
	}

	s, err := LoadScenario(c.file)
	if err != nil {
		return c.fail("%v", err)
	}

	if err := c.write(c.format, allocation.NormalizeAllocations(s.Allocations)); err != nil {
		return c.fail("failed to write allocations: %v", err)
	}
	return subcommands.ExitSuccess
}
