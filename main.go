package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"bitbucket.org/dtolpin/salzberg/config"
	"bitbucket.org/dtolpin/salzberg/estimate"
	"bitbucket.org/dtolpin/salzberg/features"
	"bitbucket.org/dtolpin/salzberg/kernel"
	"bitbucket.org/dtolpin/salzberg/model"
	"bitbucket.org/dtolpin/salzberg/priors"
)

var (
	verbose    bool
	configPath string
	flags      config.Config
	priorPos   float64
	priorNeg   float64

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "salzberg",
	Short: "Salzberg word-string kernel over fixed-length sequences",
	Long: `Computes the Salzberg word-string kernel of fixed-length symbol
sequences, reweighting positional matches by a plugin estimate, and
uses it for Gaussian process prediction.

Sequences are read from CSV files of 'sequence,label' records. The
estimate is a YAML table of per-class positional probabilities.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Write the kernel matrix as CSV",
	Long: `Writes the normalized kernel matrix between the training and the
test sequences, or of the training sequences with themselves when no
test set is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := configure(cmd, false)
		if err != nil {
			return err
		}
		in, err := load(c)
		if err != nil {
			return err
		}
		return writeMatrix(cmd.Context(), cmd.OutOrStdout(), c, in)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict test labels with a Gaussian process",
	Long: `Fits a Gaussian process with the kernel as covariance to the
training labels and writes 'sequence,label,mean,sigma' for every test
sequence.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := configure(cmd, true)
		if err != nil {
			return err
		}
		in, err := load(c)
		if err != nil {
			return err
		}
		return predict(cmd.OutOrStdout(), c, in)
	},
}

var selfcheckCmd = &cobra.Command{
	Use:   "selfcheck",
	Short: "Run prediction on built-in data",
	Long: `In 'selfcheck' mode, the data hard-coded into the program is used,
to demonstrate basic functionality.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config.Default()
		in, err := parse(c,
			strings.NewReader(selfCheckEstimate),
			strings.NewReader(selfCheckTrain),
			strings.NewReader(selfCheckTest))
		if err != nil {
			return err
		}
		return predict(cmd.OutOrStdout(), c, in)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	for _, cmd := range []*cobra.Command{matrixCmd, predictCmd} {
		fs := cmd.Flags()
		fs.StringVarP(&configPath, "config", "c", "", "YAML run configuration")
		fs.StringVarP(&flags.Estimate, "estimate", "e", "", "estimate table (YAML)")
		fs.StringVarP(&flags.Train, "train", "t", "", "training sequences (CSV)")
		fs.StringVarP(&flags.Test, "test", "s", "", "test sequences (CSV)")
		fs.StringVar(&flags.Alphabet, "alphabet", "", "symbols in order, default ACGT")
		fs.IntVarP(&flags.Workers, "workers", "j", 0, "parallel rows, default GOMAXPROCS")
		fs.Float64Var(&flags.Noise, "noise", 0, "GP observation noise, default 0.01")
		fs.Float64Var(&priorPos, "pos", 0, "positive class prior")
		fs.Float64Var(&priorNeg, "neg", 0, "negative class prior")
	}
	rootCmd.AddCommand(matrixCmd, predictCmd, selfcheckCmd)
}

// configure merges the configuration file with the flags that
// were set on the command line.
func configure(cmd *cobra.Command, requireTest bool) (config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return c, err
	}
	fs := cmd.Flags()
	if fs.Changed("estimate") {
		c.Estimate = flags.Estimate
	}
	if fs.Changed("train") {
		c.Train = flags.Train
	}
	if fs.Changed("test") {
		c.Test = flags.Test
	}
	if fs.Changed("alphabet") {
		c.Alphabet = flags.Alphabet
	}
	if fs.Changed("workers") {
		c.Workers = flags.Workers
	}
	if fs.Changed("noise") {
		c.Noise = flags.Noise
	}
	if fs.Changed("pos") || fs.Changed("neg") {
		c.Priors = &priors.Priors{Pos: priorPos, Neg: priorNeg}
	}
	return c, c.Validate(requireTest)
}

// inputs are the loaded data of a run.
type inputs struct {
	est        *estimate.Table
	train      *features.Strings
	labels     []float64
	test       *features.Strings // nil if absent
	testLabels []float64
}

func load(c config.Config) (*inputs, error) {
	var closers []io.Closer
	defer func() {
		for _, f := range closers {
			f.Close()
		}
	}()
	open := func(path string) (io.Reader, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		closers = append(closers, f)
		return f, nil
	}

	est, err := open(c.Estimate)
	if err != nil {
		return nil, err
	}
	train, err := open(c.Train)
	if err != nil {
		return nil, err
	}
	test, err := open(c.Test)
	if err != nil {
		return nil, err
	}
	return parse(c, est, train, test)
}

// parse reads the estimate, the training set and, if test is not
// nil, the test set.
func parse(c config.Config, est, train, test io.Reader) (*inputs, error) {
	var (
		in  inputs
		err error
	)
	fmt.Fprint(os.Stderr, "loading...")
	in.est, err = estimate.Load(est)
	if err != nil {
		return nil, err
	}
	alphabet := features.Alphabet(c.Alphabet)
	in.train, in.labels, err = features.ReadCSV(train, alphabet)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if test != nil {
		in.test, in.testLabels, err = features.ReadCSV(test, alphabet)
		if err != nil {
			return nil, fmt.Errorf("test: %w", err)
		}
	}
	fmt.Fprintln(os.Stderr, "done")
	logger.Debug("loaded",
		zap.Int("train", in.train.NumVectors()),
		zap.Int("length", in.train.Length()),
		zap.Int("symbols", in.train.NumSymbols()))
	return &in, nil
}

// kernelOptions chooses the priors: configured ones, otherwise the
// label frequencies, otherwise uniform.
func kernelOptions(c config.Config, in *inputs) []kernel.Option {
	opts := []kernel.Option{kernel.WithLogger(logger)}
	switch _, _, err := priors.FromLabels(in.labels); {
	case c.Priors != nil:
		opts = append(opts, kernel.WithPriors(*c.Priors))
	case err == nil:
		opts = append(opts, kernel.WithLabels(in.labels))
	case errors.Is(err, priors.ErrNoLabels):
		logger.Warn("no class labels, uniform priors")
	}
	return opts
}

func writeMatrix(ctx context.Context, w io.Writer, c config.Config, in *inputs) error {
	if ctx == nil {
		ctx = context.Background()
	}
	k, err := kernel.New(in.est, kernelOptions(c, in)...)
	if err != nil {
		return err
	}
	defer k.Cleanup()

	var m mat.Matrix
	if in.test == nil {
		if err := k.Init(in.train, in.train); err != nil {
			return err
		}
		m, err = kernel.Gram(ctx, k, kernel.WithWorkers(c.Workers))
	} else {
		if err := k.Init(in.train, in.test); err != nil {
			return err
		}
		m, err = kernel.Matrix(ctx, k, kernel.WithWorkers(c.Workers))
	}
	if err != nil {
		return err
	}

	out := csv.NewWriter(w)
	r, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i != r; i++ {
		for j := range record {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func predict(w io.Writer, c config.Config, in *inputs) error {
	m := model.New(in.est, c.Noise, kernelOptions(c, in)...)
	fmt.Fprint(os.Stderr, "fitting...")
	if err := m.Fit(in.train, in.labels); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "done")

	mu, sigma, err := m.Predict(in.test)
	if err != nil {
		return err
	}
	meanmu, stdmu := stat.MeanStdDev(mu, nil)
	logger.Info("predicted",
		zap.Int("test", len(mu)),
		zap.Float64("mean", meanmu),
		zap.Float64("std", stdmu))

	alphabet := features.Alphabet(c.Alphabet)
	out := csv.NewWriter(w)
	if err := out.Write([]string{"sequence", "label", "mean", "sigma"}); err != nil {
		return err
	}
	for i := range mu {
		seq, err := alphabet.Decode(in.test.Vector(i))
		if err != nil {
			return err
		}
		if err := out.Write([]string{
			seq,
			strconv.FormatFloat(in.testLabels[i], 'g', -1, 64),
			strconv.FormatFloat(mu[i], 'f', 6, 64),
			strconv.FormatFloat(sigma[i], 'f', 6, 64),
		}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Positives prefer A and C, negatives G and T.
var selfCheckEstimate = `length: 6
symbols: 4
pos:
  - [0.4, 0.4, 0.1, 0.1]
  - [0.4, 0.4, 0.1, 0.1]
  - [0.25, 0.25, 0.25, 0.25]
  - [0.4, 0.4, 0.1, 0.1]
  - [0.4, 0.4, 0.1, 0.1]
  - [0.25, 0.25, 0.25, 0.25]
neg:
  - [0.1, 0.1, 0.4, 0.4]
  - [0.1, 0.1, 0.4, 0.4]
  - [0.25, 0.25, 0.25, 0.25]
  - [0.1, 0.1, 0.4, 0.4]
  - [0.1, 0.1, 0.4, 0.4]
  - [0.25, 0.25, 0.25, 0.25]
`

var selfCheckTrain = `ACGACT,1
CAACCA,1
AAGCAT,1
CCTACG,1
ACAAAC,1
GTAGTT,-1
TGCTGA,-1
GGATTC,-1
TTGGGT,-1
GTCTTA,-1
`

var selfCheckTest = `ACAACG,1
CAGCAT,1
TGGTGC,-1
GTTGTA,-1
`
