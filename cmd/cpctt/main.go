package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cpctt "github.com/tunnuz/cpctt"
)

type options struct {
	model   string
	timeMs  int
	seed    uint64
	workers int
	policy  string
	json    bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:           "cpctt <config-file>",
		Short:         "Curriculum-based course timetabling via CP-driven large neighborhood search",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return solve(args[0], opts)
		},
	}
	addFlags(root.PersistentFlags(), opts)

	check := &cobra.Command{
		Use:   "check <config-file> <solution-file>",
		Short: "Validate a solution file against its instance and print the cost breakdown",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkSolution(args[0], args[1])
		},
	}

	stats := &cobra.Command{
		Use:   "stats <config-file>",
		Short: "Print the aggregate features of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStats(args[0])
		},
	}

	root.AddCommand(check, stats)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(&opts.model, "model", "experiments", "output model: debug (verbose) or experiments (compact)")
	fs.IntVar(&opts.timeMs, "time", 60000, "wall-clock budget in milliseconds")
	fs.Uint64Var(&opts.seed, "seed", 1, "random seed")
	fs.IntVar(&opts.workers, "workers", 1, "worker threads per inner search")
	fs.StringVar(&opts.policy, "policy", "sa", "constrain policy: loose, strict, sa or none")
	fs.BoolVar(&opts.json, "json", false, "emit the JSON cost summary")
}

func solve(configPath string, opts *options) error {
	cfg, err := cpctt.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Seed = opts.seed
	cfg.Workers = opts.workers
	if cfg.Policy, err = parsePolicy(opts.policy); err != nil {
		return err
	}

	in, err := cpctt.LoadInstance(cfg.Instance)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if opts.model == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opts.timeMs)*time.Millisecond)
	defer cancel()

	engine := cpctt.NewEngine(in, cfg, logrus.NewEntry(log).WithField("instance", in.Name))
	assignment, err := engine.Solve(ctx)
	if err == cpctt.ErrNoSolution {
		fmt.Fprintln(os.Stderr, "no solution found")
		return nil
	}
	if err != nil {
		return err
	}

	if err := assignment.Write(os.Stdout); err != nil {
		return err
	}
	if opts.model == "debug" {
		assignment.WriteDebug(os.Stderr)
	}
	if opts.json {
		return assignment.WriteJSON(os.Stdout)
	}
	return nil
}

func checkSolution(configPath, solutionPath string) error {
	cfg, err := cpctt.LoadConfig(configPath)
	if err != nil {
		return err
	}
	in, err := cpctt.LoadInstance(cfg.Instance)
	if err != nil {
		return err
	}
	f, err := os.Open(solutionPath)
	if err != nil {
		return err
	}
	defer f.Close()

	t, err := cpctt.ReadTimetable(in, f)
	if err != nil {
		return err
	}
	if err := t.CheckFeasibility(); err != nil {
		return err
	}
	t.Assignment().WriteDebug(os.Stdout)
	return nil
}

func printStats(configPath string) error {
	cfg, err := cpctt.LoadConfig(configPath)
	if err != nil {
		return err
	}
	in, err := cpctt.LoadInstance(cfg.Instance)
	if err != nil {
		return err
	}
	in.Statistics(os.Stdout)
	return nil
}

func parsePolicy(name string) (cpctt.ConstrainPolicy, error) {
	switch name {
	case "loose":
		return cpctt.POLICY_LOOSE, nil
	case "strict":
		return cpctt.POLICY_STRICT, nil
	case "sa":
		return cpctt.POLICY_SA, nil
	case "none":
		return cpctt.POLICY_NONE, nil
	}
	return 0, fmt.Errorf("unknown policy %q", name)
}
