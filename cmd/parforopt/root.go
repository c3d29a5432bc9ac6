package main

import (
	"flag"
	"os"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/go-sif/parfor/cluster"
	"github.com/go-sif/parfor/optimizer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

const envPrefix = "PARFOR"

func newRootCommand() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "parforopt",
		Short: "parforopt optimizes the parallel-for loops of scenario programs.",
		Long: "`parforopt` applies the rule-based parfor optimizer to programs described in scenario files.\n\n" +
			"Every flag may also be set in a config file, or through an environment variable prefixed with " +
			envPrefix + "_ (e.g. " + envPrefix + "_REMOTE_NODES).",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cmd.Flags())
		},
	}
	registerFlags(root.PersistentFlags())

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(newExplainCommand(v))
	return root
}

func registerFlags(flags *pflag.FlagSet) {
	d := optimizer.DefaultOptions()
	flags.String("config", "", "Path to a config file holding any of these flags.")
	flags.Int("parallelism", 4, "Number of scenario files optimized concurrently.")
	flags.Bool("metrics", false, "Print the optimizer counters after all scenarios are optimized.")

	flags.Int("local-threads", 0, "Hardware threads of the coordinating machine, overrides the scenario.")
	flags.String("local-memory", "", "Memory of the coordinating process (e.g. 8GiB), overrides the scenario.")
	flags.Int("remote-nodes", 0, "Number of cluster nodes, overrides the scenario.")
	flags.Int("remote-slots", 0, "Total number of cluster worker slots, overrides the scenario.")
	flags.String("remote-memory", "", "Memory of a single remote worker (e.g. 2GiB), overrides the scenario.")
	flags.String("cluster-status", "", "Cluster metrics document of a YARN resource manager to read the remote capacity from.")

	flags.Float64("parallelism-factor", d.ParallelismFactor, "Multiplier from hardware threads to the maximum degree of parallelism.")
	flags.Float64("memory-utilization", d.MemoryUtilization, "Fraction of the memory budgets the optimizer may plan with.")
	flags.Bool("distributed-platform", d.DistributedPlatform, "Whether read-only inputs may be partitioned with distributed jobs.")
	flags.Bool("nested-parallelism", d.NestedParallelism, "Whether flat remote loops may be split into nested loops.")
	flags.Bool("parallel-result-merge", d.ParallelResultMerge, "Whether partial results are merged in parallel.")
	flags.Bool("allow-copy-cell-files", d.AllowCopyCellFiles, "Whether empty cell-format results may be merged by copying files.")
	flags.Int64("cp-threshold", d.CPThreshold, "Dimension threshold of in-memory parallel result merges.")
}

// loadConfig binds flags, environment and config file, in decreasing order of precedence
func loadConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "unable to read config %s", path)
		}
	}
	return nil
}

// settings are the resolved flags of one invocation, safe to share between goroutines
type settings struct {
	parallelism int
	metrics     bool
	status      []byte
	overrides   []func(*cluster.Options)
	optimizer   []optimizer.Option
}

func readSettings(v *viper.Viper) (*settings, error) {
	s := &settings{
		parallelism: v.GetInt("parallelism"),
		metrics:     v.GetBool("metrics"),
		optimizer: []optimizer.Option{
			optimizer.WithParallelismFactor(v.GetFloat64("parallelism-factor")),
			optimizer.WithMemoryUtilization(v.GetFloat64("memory-utilization")),
			optimizer.WithDistributedPlatform(v.GetBool("distributed-platform")),
			optimizer.WithNestedParallelism(v.GetBool("nested-parallelism")),
			optimizer.WithParallelResultMerge(v.GetBool("parallel-result-merge")),
			optimizer.WithAllowCopyCellFiles(v.GetBool("allow-copy-cell-files")),
			optimizer.WithCPThreshold(v.GetInt64("cp-threshold")),
		},
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	if path := v.GetString("cluster-status"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read cluster status %s", path)
		}
		s.status = data
	}
	for _, key := range []string{"local-threads", "remote-nodes", "remote-slots"} {
		if !v.IsSet(key) {
			continue
		}
		value := v.GetInt(key)
		switch key {
		case "local-threads":
			s.overrides = append(s.overrides, func(o *cluster.Options) { o.LocalThreads = value })
		case "remote-nodes":
			s.overrides = append(s.overrides, func(o *cluster.Options) { o.RemoteNodes = value })
		case "remote-slots":
			s.overrides = append(s.overrides, func(o *cluster.Options) { o.RemoteSlots = value })
		}
	}
	for _, key := range []string{"local-memory", "remote-memory"} {
		if !v.IsSet(key) || v.GetString(key) == "" {
			continue
		}
		b, err := humanize.ParseBytes(v.GetString(key))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", key)
		}
		value := float64(b)
		if key == "local-memory" {
			s.overrides = append(s.overrides, func(o *cluster.Options) { o.LocalMemory = value })
		} else {
			s.overrides = append(s.overrides, func(o *cluster.Options) { o.RemoteMemory = value })
		}
	}
	return s, nil
}

// cluster resolves the capacity a scenario is optimized for: the scenario's own description,
// then the cluster status document, then explicit flags, then the host
func (s *settings) cluster(base *cluster.Options) (*cluster.Options, error) {
	opts := cluster.CloneOptions(base)
	if s.status != nil {
		if err := cluster.ParseStatus(s.status, opts); err != nil {
			return nil, err
		}
	}
	for _, override := range s.overrides {
		override(opts)
	}
	if err := cluster.EnsureDefaultOptionsValues(opts); err != nil {
		return nil, err
	}
	return opts, nil
}
