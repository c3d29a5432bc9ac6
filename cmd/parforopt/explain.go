package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sif/parfor/cluster"
	"github.com/go-sif/parfor/cost"
	"github.com/go-sif/parfor/internal/metrics"
	"github.com/go-sif/parfor/internal/scenario"
	"github.com/go-sif/parfor/internal/util"
	"github.com/go-sif/parfor/logging"
	"github.com/go-sif/parfor/optimizer"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// result is the outcome of optimizing every root loop of one scenario
type result struct {
	scenario *scenario.Scenario
	cluster  *cluster.Options
	loops    []loopResult
}

type loopResult struct {
	loop   *program.ParForBlock
	tree   *plan.Tree
	report *optimizer.Report
}

func newExplainCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <scenario.yaml>...",
		Short: "Optimize scenario files and print the resulting plans and loop configurations.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readSettings(v)
			if err != nil {
				return err
			}
			m := metrics.New()
			reg := prometheus.NewRegistry()
			if err := m.Register(reg); err != nil {
				return err
			}
			results, err := optimizeAll(cmd.Context(), cfg, m, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				printResult(out, r)
			}
			if cfg.metrics {
				return printMetrics(out, reg)
			}
			return nil
		},
	}
}

// optimizeAll optimizes independent scenario files concurrently. Results keep the order of
// paths, and the first failure cancels every scenario not yet started.
func optimizeAll(ctx context.Context, cfg *settings, m *metrics.Metrics, paths []string) ([]*result, error) {
	results := make([]*result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.parallelism)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := optimizeScenario(cfg, m, path)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// optimizeScenario runs one optimization pass over every root loop of the scenario at path,
// in program order
func optimizeScenario(cfg *settings, m *metrics.Metrics, path string) (*result, error) {
	s, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	infra, err := cfg.cluster(s.Cluster)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: invalid cluster", s.Name)
	}
	opts := append([]optimizer.Option{optimizer.WithMetrics(m)}, cfg.optimizer...)
	o := optimizer.New(infra, cost.NewEstimator(), nil, opts...)
	res := &result{scenario: s, cluster: infra}
	for _, root := range s.Roots() {
		tree, err := plan.Build(s.Program, root.Host, root.Loop, s.Variables)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: parfor over %s", s.Name, root.Loop.Predicate.Var)
		}
		if err := tree.Validate(); err != nil {
			if merr, ok := err.(*multierror.Error); ok {
				logging.Errorf("invalid plan of %s:\n%s", s.Name, util.FormatMultiError(merr.Errors))
			}
			return nil, errors.Wrapf(err, "%s: parfor over %s", s.Name, root.Loop.Predicate.Var)
		}
		report, err := o.Optimize(tree, s.Variables)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: parfor over %s", s.Name, root.Loop.Predicate.Var)
		}
		logging.Infof("optimized %s: parfor over %s in %d plans", s.Name, root.Loop.Predicate.Var, report.NumEvaluatedPlans())
		res.loops = append(res.loops, loopResult{loop: root.Loop, tree: tree, report: report})
	}
	return res, nil
}

func printResult(w io.Writer, r *result) {
	c := r.cluster
	fmt.Fprintf(w, "== %s\n", r.scenario.Name)
	fmt.Fprintf(w, "cluster: %d threads, %s local; %d nodes, %d slots, %s per worker\n",
		c.LocalThreads, util.FormatBytes(c.LocalMemory), c.RemoteNodes, c.RemoteSlots, util.FormatBytes(c.RemoteMemory))
	for _, l := range r.loops {
		changed := "unchanged"
		if l.report.Changed() {
			changed = "changed"
		}
		fmt.Fprintf(w, "\n-- parfor over %s (run %s, %d plans, %s)\n", l.loop.Predicate.Var,
			l.report.RunID, l.report.NumEvaluatedPlans(), changed)
		fmt.Fprint(w, l.tree.Explain())
		printLoopConfig(w, l.loop)
		printRewrites(w, l.report)
	}
	fmt.Fprintln(w)
}

func printLoopConfig(w io.Writer, pf *program.ParForBlock) {
	c := pf.Config
	table := newTable(w, "Setting", "Value")
	table.AppendBulk([][]string{
		{"data partitioner", string(c.DataPartitioner)},
		{"exec mode", string(c.ExecMode)},
		{"degree of parallelism", strconv.Itoa(c.DegreeOfParallelism)},
		{"task partitioner", string(c.TaskPartitioner)},
		{"task size", strconv.FormatInt(c.TaskSize, 10)},
		{"worker reuse", strconv.FormatBool(c.WorkerReuse)},
		{"result merge", string(c.ResultMerge)},
		{"partition replication", strconv.Itoa(c.PartitionReplication)},
		{"export replication", strconv.Itoa(c.ExportReplication)},
		{"recompile memory budget", util.FormatBytes(c.RecompileMemoryBudget)},
		{"colocated matrix", c.ColocatedMatrix},
	})
	table.Render()
}

func printRewrites(w io.Writer, report *optimizer.Report) {
	if len(report.Rewrites) == 0 {
		return
	}
	table := newTable(w, "Rewrite", "Result", "Duration")
	for _, r := range report.Rewrites {
		table.Append([]string{r.Name, r.Result, r.Duration.String()})
	}
	table.Render()
}

// printMetrics prints every optimizer counter, sorted by name and labels
func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	rows := make([][]string, 0)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			rows = append(rows, []string{
				mf.GetName(),
				strings.Join(labels, ","),
				strconv.FormatFloat(metric.GetCounter().GetValue(), 'f', -1, 64),
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})
	fmt.Fprintln(w, "== metrics")
	table := newTable(w, "Counter", "Labels", "Value")
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}
