package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"bitbucket.org/dtolpin/salzberg/estimate"
	"bitbucket.org/dtolpin/salzberg/features"
)

var (
	LENGTH        = 8
	N             = 100
	SEED          = int64(0)
	ALPHABET      = string(features.DNA)
	CONCENTRATION = 0.5
	POSITIVE      = 0.5
	ESTIMATE      = ""
)

// Probabilities are kept away from 0 so that every symbol is
// possible in both classes.
const minProb = 1e-6

var rootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate test data",
	Long: `Generates a random estimate table and labelled sequences sampled
from it. Sequences are written to stdout as 'sequence,label' records,
the table to the --estimate file. Invocation:
	gen [OPTIONS] --estimate est.yaml > train.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()

		seed := SEED
		if seed == 0 {
			seed = time.Now().UTC().UnixNano()
		}
		src := rand.NewSource(uint64(seed))
		alphabet := features.Alphabet(ALPHABET)

		t := table(src, LENGTH, alphabet.Size(), CONCENTRATION)
		f, err := os.Create(ESTIMATE)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := t.Save(f); err != nil {
			return err
		}

		if err := sample(cmd.OutOrStdout(), src, t, alphabet, N, POSITIVE); err != nil {
			return err
		}
		logger.Info("generated",
			zap.Int64("seed", seed),
			zap.Int("length", LENGTH),
			zap.Int("n", N),
			zap.String("estimate", ESTIMATE))
		return nil
	},
}

func init() {
	fs := rootCmd.Flags()
	fs.IntVar(&LENGTH, "length", LENGTH, "sequence length")
	fs.IntVarP(&N, "n", "n", N, "number of sequences")
	fs.Int64Var(&SEED, "seed", SEED, "random seed, 0 for time")
	fs.StringVar(&ALPHABET, "alphabet", ALPHABET, "symbols in order")
	fs.Float64Var(&CONCENTRATION, "concentration", CONCENTRATION,
		"Dirichlet concentration of positional distributions")
	fs.Float64Var(&POSITIVE, "positive", POSITIVE, "fraction of positive sequences")
	fs.StringVarP(&ESTIMATE, "estimate", "e", ESTIMATE, "estimate table output (YAML)")
	rootCmd.MarkFlagRequired("estimate")
}

// dirichlet samples a probability vector by normalizing gammas.
func dirichlet(src rand.Source, n int, alpha float64) []float64 {
	g := distuv.Gamma{Alpha: alpha, Beta: 1, Src: src}
	p := make([]float64, n)
	sum := 0.
	for i := range p {
		p[i] = g.Rand() + minProb
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}

func table(src rand.Source, length, nsym int, alpha float64) *estimate.Table {
	t := &estimate.Table{Length: length, NumSymbols: nsym}
	for j := 0; j != length; j++ {
		t.Pos = append(t.Pos, dirichlet(src, nsym, alpha))
		t.Neg = append(t.Neg, dirichlet(src, nsym, alpha))
	}
	return t
}

// sample draws n labelled sequences, a sequence is positive with
// probability positive.
func sample(
	w io.Writer,
	src rand.Source,
	t *estimate.Table,
	alphabet features.Alphabet,
	n int,
	positive float64,
) error {
	label := distuv.Bernoulli{P: positive, Src: src}
	out := csv.NewWriter(w)
	seq := make([]features.Symbol, t.Length)
	for i := 0; i != n; i++ {
		y, probs := -1, t.Neg
		if label.Rand() == 1 {
			y, probs = 1, t.Pos
		}
		for j := range seq {
			seq[j] = features.Symbol(distuv.NewCategorical(probs[j], src).Rand())
		}
		s, err := alphabet.Decode(seq)
		if err != nil {
			return err
		}
		if err := out.Write([]string{s, strconv.Itoa(y)}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
