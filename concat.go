// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
)

var ErrMissingRegulatorList = errors.New("matrix-form folds need the full regulator list (-p_in_reg)")

const defaultFoldSuffix = "_pred_test.tsv"

type ConcatConfig struct {
	DataDir string // holds fold{i}_test_reg files
	PredDir string // holds fold{i}{Suffix} files
	Suffix  string
	Folds   int
	Format  Format
	// Regulators is the full ordered regulator list. Required for
	// matrix-form folds.
	Regulators []string
	Threads    int
}

type foldTable struct {
	format     Format
	rows       [][]string
	regulators []string // row labels, matrix form only
}

func (cfg *ConcatConfig) predPath(fold int) string {
	suffix := cfg.Suffix
	if suffix == "" {
		suffix = defaultFoldSuffix
	}
	return fmt.Sprintf("%sfold%d%s", cfg.PredDir, fold, suffix)
}

func (cfg *ConcatConfig) regPath(fold int) string {
	return fmt.Sprintf("%sfold%d_test_reg", cfg.DataDir, fold)
}

func (cfg *ConcatConfig) loadFold(fold int) (*foldTable, error) {
	fnm := cfg.predPath(fold)
	rows, err := readTSVFile(fnm)
	if err != nil {
		return nil, err
	}
	format, err := detectFormat(rows, cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	ft := &foldTable{format: format, rows: rows}
	if format == FormatMatrix {
		ft.regulators, err = readList(cfg.regPath(fold))
		if err != nil {
			return nil, err
		}
		if len(ft.regulators) != len(rows) {
			return nil, fmt.Errorf("%s has %d rows but %s lists %d regulators: %w", fnm, len(rows), cfg.regPath(fold), len(ft.regulators), ErrShapeMismatch)
		}
	}
	log.Infof("fold %d: %d rows, %s form", fold, len(rows), format)
	return ft, nil
}

// ConcatFolds stacks the per-fold prediction tables in fold order.
// Matrix-form results are reindexed against cfg.Regulators: one row
// per regulator, empty where no fold predicted that regulator.
func ConcatFolds(cfg ConcatConfig) ([][]string, error) {
	if cfg.Folds < 1 {
		return nil, fmt.Errorf("invalid number of folds %d", cfg.Folds)
	}
	folds := make([]*foldTable, cfg.Folds)
	th := throttle{Max: cfg.Threads}
	for i := range folds {
		i := i
		th.Go(func() (err error) {
			folds[i], err = cfg.loadFold(i)
			return
		})
	}
	if err := th.Wait(); err != nil {
		return nil, err
	}

	var rows [][]string
	var index []string
	ncols := -1
	for i, ft := range folds {
		if ft.format != folds[0].format {
			return nil, fmt.Errorf("fold %d is %s form but fold 0 is %s form: %w", i, ft.format, folds[0].format, ErrShapeMismatch)
		}
		for _, row := range ft.rows {
			if ncols < 0 {
				ncols = len(row)
			} else if len(row) != ncols {
				return nil, fmt.Errorf("%s: %d columns, expected %d: %w", cfg.predPath(i), len(row), ncols, ErrShapeMismatch)
			}
		}
		rows = append(rows, ft.rows...)
		index = append(index, ft.regulators...)
	}
	if folds[0].format != FormatMatrix {
		return rows, nil
	}
	if len(cfg.Regulators) == 0 {
		return nil, ErrMissingRegulatorList
	}
	return reindexRows(rows, index, cfg.Regulators)
}

// reindexRows returns one row per entry in want, taken from the row
// of rows whose label in index matches. Missing rows are filled with
// empty cells. Labels not in want are dropped.
func reindexRows(rows [][]string, index, want []string) ([][]string, error) {
	if len(rows) != len(index) {
		return nil, fmt.Errorf("%d rows, %d row labels: %w", len(rows), len(index), ErrShapeMismatch)
	}
	ncols := 0
	if len(rows) > 0 {
		ncols = len(rows[0])
	}
	byLabel := make(map[string]int, len(index))
	for i, label := range index {
		if _, dup := byLabel[label]; dup {
			return nil, fmt.Errorf("regulator %q appears in more than one fold, cannot reindex", label)
		}
		byLabel[label] = i
	}
	out := make([][]string, len(want))
	used, missing := 0, 0
	for i, label := range want {
		if row, ok := byLabel[label]; ok {
			out[i] = rows[row]
			used++
		} else {
			out[i] = make([]string, ncols)
			missing++
		}
	}
	if missing > 0 {
		log.Warnf("%d of %d regulators have no predictions in any fold", missing, len(want))
	}
	if dropped := len(index) - used; dropped > 0 {
		log.Warnf("dropping %d predicted regulators that are not in the regulator list", dropped)
	}
	return out, nil
}

// throttle runs funcs in goroutines, at most Max at a time, and
// remembers the first error.
type throttle struct {
	Max int
	ch  chan struct{}
	wg  WaitGroup
}

func (t *throttle) Go(fn func() error) {
	if t.ch == nil {
		max := t.Max
		if max < 1 {
			max = runtime.NumCPU()
		}
		t.ch = make(chan struct{}, max)
	}
	t.wg.Add(1)
	t.ch <- struct{}{}
	go func() {
		defer func() {
			<-t.ch
			t.wg.Done()
		}()
		t.wg.Error(fn())
	}()
}

func (t *throttle) Wait() error {
	return t.wg.Wait()
}

// WaitGroup is a sync.WaitGroup that also records the first non-nil
// error passed to Error.
type WaitGroup struct {
	sync.WaitGroup
	err     error
	errOnce sync.Once
}

func (wg *WaitGroup) Error(err error) {
	if err != nil {
		wg.errOnce.Do(func() { wg.err = err })
	}
}

func (wg *WaitGroup) Wait() error {
	wg.WaitGroup.Wait()
	return wg.err
}

type concatNetworks struct{}

func (cmd *concatNetworks) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return exitCode(cmd.run(prog, args, stdin, stdout, stderr), stderr)
}

func (cmd *concatNetworks) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var cfg ConcatConfig
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	flags.StringVar(&cfg.DataDir, "p_in_dir_data", "", "input `directory` of training/testing files (prefix for fold{i}_test_reg)")
	flags.StringVar(&cfg.PredDir, "p_in_dir_pred", "", "input `directory` of predictions (prefix for fold{i}{suffix})")
	outputFilename := flags.String("p_out_file", "-", "output `file`")
	flags.StringVar(&cfg.Suffix, "file_suffix", defaultFoldSuffix, "`suffix` of prediction files")
	regFilename := flags.String("p_in_reg", "", "full regulator list `file` (required for matrix-form folds)")
	flags.IntVar(&cfg.Folds, "folds", 10, "number of cross-validation folds")
	flags.IntVar(&cfg.Threads, "threads", 0, "number of folds to read at once (0 = number of CPUs)")
	cfg.Format = FormatAuto
	flags.Var(&cfg.Format, "format", "prediction `format`: auto, long, or matrix")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return err
	} else if err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	} else if flags.NArg() > 0 {
		return fmt.Errorf("%w: errant command line arguments after parsed flags: %v", errUsage, flags.Args())
	}
	if cfg.PredDir == "" {
		return fmt.Errorf("%w: missing required flag -p_in_dir_pred", errUsage)
	}
	servePprof(*pprof)

	if *regFilename != "" {
		cfg.Regulators, err = readList(*regFilename)
		if err != nil {
			return err
		}
	}
	rows, err := ConcatFolds(cfg)
	if err != nil {
		return err
	}

	output, err := create(*outputFilename, stdout)
	if err != nil {
		return err
	}
	defer output.Close()
	log.Infof("writing %d rows to %s", len(rows), *outputFilename)
	err = writeTSV(output, rows)
	if err != nil {
		return err
	}
	return output.Close()
}
