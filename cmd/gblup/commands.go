package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/breedkit/gblup"
	"github.com/breedkit/gblup/codec"
	"github.com/breedkit/gblup/crossval"
	"github.com/breedkit/gblup/genotype"
)

func newGRMCommand(cfg *Config) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "grm",
		Short: "Build a genomic relationship matrix from marker dosages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req gblup.GRMRequest
			if err := readJSON(input, &req); err != nil {
				return err
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.BuildGRM(context.Background(), req)
			if err != nil {
				return err
			}

			if isSnapshotPath(output) {
				if err := writeSnapshot(output, res.Matrix, cfg.Compression); err != nil {
					return err
				}
				// The matrix lives in the snapshot; the JSON summary
				// stays small.
				res.Matrix = nil
				return writeJSON(cmd, "", res)
			}
			return writeJSON(cmd, output, res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "dosage request JSON ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path; .bin/.grm writes a binary snapshot (default stdout JSON)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newSolveCommand(cfg *Config) *cobra.Command {
	var input, output, grmPath string
	var heritability float64

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve the GBLUP mixed model against a relationship matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req gblup.SolveRequest
			if err := readJSON(input, &req); err != nil {
				return err
			}
			if cmd.Flags().Changed("heritability") {
				req.Heritability = heritability
			}
			if grmPath != "" {
				rows, err := readSnapshot(grmPath)
				if err != nil {
					return err
				}
				req.GMatrix = rows
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Solve(context.Background(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd, output, res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "solve request JSON ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")
	cmd.Flags().StringVarP(&grmPath, "grm", "g", "", "relationship matrix snapshot (overrides g_matrix in the request)")
	cmd.Flags().Float64Var(&heritability, "heritability", 0, "heritability override in (0, 1)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newRunCommand(cfg *Config) *cobra.Command {
	var input, output string
	var heritability float64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the GRM and solve GBLUP in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req gblup.RunRequest
			if err := readJSON(input, &req); err != nil {
				return err
			}
			if cmd.Flags().Changed("heritability") {
				req.Heritability = heritability
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Run(context.Background(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd, output, res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "combined request JSON ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")
	cmd.Flags().Float64Var(&heritability, "heritability", 0, "heritability override in (0, 1)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newCVCommand(cfg *Config) *cobra.Command {
	var input, output, method string
	var folds, repeats int
	var seed int64
	var heritability float64

	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Estimate predictive ability by repeated k-fold cross-validation",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cvCfg crossval.Config
			if err := readJSON(input, &cvCfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("method") {
				cvCfg.Method = crossval.Method(method)
			}
			if cmd.Flags().Changed("folds") {
				cvCfg.Folds = folds
			}
			if cmd.Flags().Changed("repeats") {
				cvCfg.Repeats = repeats
			}
			if cmd.Flags().Changed("seed") {
				cvCfg.Seed = seed
			}
			if cmd.Flags().Changed("heritability") {
				cvCfg.Heritability = heritability
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.CrossValidate(context.Background(), cvCfg)
			if err != nil {
				return err
			}
			return writeJSON(cmd, output, res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "cross-validation config JSON ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")
	cmd.Flags().StringVar(&method, "method", string(crossval.MethodGBLUP), "model: gblup or rrblup")
	cmd.Flags().IntVar(&folds, "folds", crossval.DefaultFolds, "number of folds")
	cmd.Flags().IntVar(&repeats, "repeats", crossval.DefaultRepeats, "number of shuffled repeats")
	cmd.Flags().Int64Var(&seed, "seed", crossval.DefaultSeed, "shuffle seed")
	cmd.Flags().Float64Var(&heritability, "heritability", 0, "heritability override in (0, 1)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newFreqCommand(cfg *Config) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "freq",
		Short: "Report per-marker allele frequencies and exclusions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req gblup.GRMRequest
			if err := readJSON(input, &req); err != nil {
				return err
			}

			ploidy := req.Ploidy
			if ploidy == 0 {
				ploidy = genotype.Ploidy
			}
			mx, err := genotype.Encode(req.Markers, ploidy)
			if err != nil {
				return err
			}
			ft, err := mx.Frequencies()
			if err != nil {
				return err
			}
			return writeJSON(cmd, output, ft.Report())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "dosage request JSON ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func readJSON(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func isSnapshotPath(path string) bool {
	return strings.HasSuffix(path, ".bin") || strings.HasSuffix(path, ".grm")
}

func parseCompression(s string) (codec.Compression, error) {
	switch strings.ToLower(s) {
	case "", "zstd":
		return codec.CompressionZSTD, nil
	case "lz4":
		return codec.CompressionLZ4, nil
	case "none":
		return codec.CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

func writeSnapshot(path string, rows [][]float64, compression string) error {
	comp, err := parseCompression(compression)
	if err != nil {
		return err
	}

	n := len(rows)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, rows[i][j])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := codec.WriteSym(f, sym, comp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readSnapshot(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sym, err := codec.ReadSym(f)
	if err != nil {
		return nil, err
	}

	n := sym.SymmetricDim()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = sym.At(i, j)
		}
	}
	return rows, nil
}
