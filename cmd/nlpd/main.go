package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"bitbucket.org/dtolpin/infergo/dist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	COMMA = ","
	SKIP  = 0
	NOISE = 0.
)

var rootCmd = &cobra.Command{
	Use:   "nlpd",
	Short: "Average negative log predictive density",
	Long: `Computes average negative log predictive density of the output
of 'salzberg predict'. Invocation:
	nlpd [OPTIONS] < predictions.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()

		mean, n, err := average(cmd.InOrStdin(), rune(COMMA[0]), SKIP, NOISE)
		if err != nil {
			return err
		}
		logger.Info("nlpd", zap.Int("records", n), zap.Float64("mean", mean))
		fmt.Fprintf(cmd.OutOrStdout(), "%f\n", mean)
		return nil
	},
}

func init() {
	fs := rootCmd.Flags()
	fs.StringVar(&COMMA, "comma", COMMA, "field separator")
	fs.IntVarP(&SKIP, "skip", "s", SKIP, "initial records to skip")
	fs.Float64Var(&NOISE, "noise", NOISE, "observation noise added to predicted error")
}

// nlpd is the negative log predictive density of y under a normal
// predictive distribution.
func nlpd(y, mean, std float64) float64 {
	return -dist.Normal.Logp(mean, std, y)
}

// average reads 'sequence,label,mean,sigma' records after the
// header and returns the mean nlpd and the number of records used.
func average(rdr io.Reader, comma rune, skip int, noise float64) (float64, int, error) {
	r := csv.NewReader(rdr)
	r.Comma = comma

	if _, err := r.Read(); err != nil { // skip the header
		return 0, 0, err
	}
	sum := 0.
	n := 0
	for i := 0; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		if i < skip {
			continue
		}

		var x [3]float64
		for j := range x {
			x[j], err = strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return 0, 0, fmt.Errorf("record %d: %w", i, err)
			}
		}
		y, mean, std := x[0], x[1], x[2]
		if noise > 0 {
			std = math.Sqrt(std*std + noise*noise)
		}
		sum += nlpd(y, mean, std)
		n++
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("no records")
	}
	return sum / float64(n), n, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
