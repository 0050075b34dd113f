// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/check.v1"
)

type concatSuite struct{}

var _ = check.Suite(&concatSuite{})

func writeFiles(c *check.C, dir string, files map[string]string) {
	for fnm, content := range files {
		err := ioutil.WriteFile(dir+"/"+fnm, []byte(content), 0644)
		c.Assert(err, check.IsNil)
	}
}

func (s *concatSuite) TestLongFolds(c *check.C) {
	tmpdir := c.MkDir()
	const rowsPerFold = 3
	for i := 0; i < 10; i++ {
		var content string
		for j := 0; j < rowsPerFold; j++ {
			content += fmt.Sprintf("reg%d\ttarget%d\t%d.5\n", i, j, i*rowsPerFold+j)
		}
		writeFiles(c, tmpdir, map[string]string{fmt.Sprintf("fold%d_pred_test.tsv", i): content})
	}
	rows, err := ConcatFolds(ConcatConfig{PredDir: tmpdir + "/", Folds: 10})
	c.Assert(err, check.IsNil)
	c.Assert(rows, check.HasLen, 10*rowsPerFold)
	for n, row := range rows {
		c.Check(row, check.DeepEquals, []string{
			fmt.Sprintf("reg%d", n/rowsPerFold),
			fmt.Sprintf("target%d", n%rowsPerFold),
			fmt.Sprintf("%d.5", n),
		})
	}
}

func (s *concatSuite) TestSuffix(c *check.C) {
	tmpdir := c.MkDir()
	writeFiles(c, tmpdir, map[string]string{
		"fold0.net": "A\tX\t1\n",
		"fold1.net": "B\tY\t2\n",
	})
	rows, err := ConcatFolds(ConcatConfig{PredDir: tmpdir + "/", Suffix: ".net", Folds: 2, Threads: 1})
	c.Assert(err, check.IsNil)
	c.Check(rows, check.DeepEquals, [][]string{{"A", "X", "1"}, {"B", "Y", "2"}})
}

func (s *concatSuite) TestMatrixReindex(c *check.C) {
	datadir, preddir := c.MkDir(), c.MkDir()
	writeFiles(c, datadir, map[string]string{
		"fold0_test_reg": "A\nC\n",
		"fold1_test_reg": "B\nE\n",
	})
	writeFiles(c, preddir, map[string]string{
		"fold0_pred_test.tsv": "0.1\t0.2\t0.3\t0.4\n0.5\t0.6\t0.7\t0.8\n",
		"fold1_pred_test.tsv": "0.9\t1.0\t1.1\t1.2\n9\t9\t9\t9\n",
	})
	cfg := ConcatConfig{
		DataDir: datadir + "/",
		PredDir: preddir + "/",
		Folds:   2,
	}
	_, err := ConcatFolds(cfg)
	c.Check(errors.Is(err, ErrMissingRegulatorList), check.Equals, true)

	cfg.Regulators = []string{"A", "B", "D", "C"}
	rows, err := ConcatFolds(cfg)
	c.Assert(err, check.IsNil)
	c.Check(rows, check.DeepEquals, [][]string{
		{"0.1", "0.2", "0.3", "0.4"},
		{"0.9", "1.0", "1.1", "1.2"},
		{"", "", "", ""},
		{"0.5", "0.6", "0.7", "0.8"},
	})
}

func (s *concatSuite) TestErrors(c *check.C) {
	datadir, preddir := c.MkDir(), c.MkDir()
	cfg := ConcatConfig{DataDir: datadir + "/", PredDir: preddir + "/", Folds: 2, Regulators: []string{"A", "B"}}

	writeFiles(c, preddir, map[string]string{"fold0_pred_test.tsv": "A\tX\t1\n"})
	_, err := ConcatFolds(cfg)
	c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true, check.Commentf("%v", err))

	// long form fold followed by matrix form fold
	writeFiles(c, preddir, map[string]string{"fold1_pred_test.tsv": "1\t2\t3\t4\n"})
	writeFiles(c, datadir, map[string]string{"fold1_test_reg": "B\n"})
	_, err = ConcatFolds(cfg)
	c.Check(errors.Is(err, ErrShapeMismatch), check.Equals, true, check.Commentf("%v", err))

	// same format, different column counts
	writeFiles(c, preddir, map[string]string{
		"fold0_pred_test.tsv": "1\t2\t3\t4\t5\n",
		"fold1_pred_test.tsv": "1\t2\t3\t4\n",
	})
	writeFiles(c, datadir, map[string]string{"fold0_test_reg": "A\n"})
	_, err = ConcatFolds(cfg)
	c.Check(errors.Is(err, ErrShapeMismatch), check.Equals, true, check.Commentf("%v", err))

	// regulator list does not match matrix rows
	writeFiles(c, preddir, map[string]string{"fold0_pred_test.tsv": "1\t2\t3\t4\n"})
	writeFiles(c, datadir, map[string]string{"fold0_test_reg": "A\nC\n"})
	_, err = ConcatFolds(cfg)
	c.Check(errors.Is(err, ErrShapeMismatch), check.Equals, true, check.Commentf("%v", err))

	// same regulator predicted in two folds
	writeFiles(c, datadir, map[string]string{"fold0_test_reg": "B\n"})
	_, err = ConcatFolds(cfg)
	c.Check(err, check.ErrorMatches, `regulator "B" appears in more than one fold.*`)

	_, err = ConcatFolds(ConcatConfig{PredDir: preddir + "/"})
	c.Check(err, check.ErrorMatches, `invalid number of folds 0`)
}

func (s *concatSuite) TestConcatThenEvaluate(c *check.C) {
	datadir, preddir, outdir := c.MkDir(), c.MkDir(), c.MkDir()
	writeFiles(c, datadir, map[string]string{
		"fold0_test_reg": "A\nC\n",
		"fold1_test_reg": "B\n",
	})
	writeFiles(c, preddir, map[string]string{
		"fold0.tsv": "0.4\t0.3\t-0.2\t0.1\n0.5\t0.6\t0.7\t0.8\n",
		"fold1.tsv": "0.9\t1.0\t1.1\t-1.2\n",
	})
	writeFiles(c, outdir, map[string]string{
		"reg":         "A\nB\nD\nC\n",
		"target":      "X\nY\nZ\nW\n",
		"binding.tsv": "REGULATOR\tTARGET\tVALUE\nA\tX\t1\nB\tY\t1\n",
	})

	exited := (&concatNetworks{}).RunCommand("concat-networks", []string{
		"--p_in_dir_data", datadir + "/",
		"--p_in_dir_pred", preddir + "/",
		"--p_out_file", outdir + "/net.tsv",
		"--file_suffix", ".tsv",
		"--p_in_reg", outdir + "/reg",
		"--folds", "2",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	buf, err := ioutil.ReadFile(outdir + "/net.tsv")
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Equals, ""+
		"0.4\t0.3\t-0.2\t0.1\n"+
		"0.9\t1.0\t1.1\t-1.2\n"+
		"\t\t\t\n"+
		"0.5\t0.6\t0.7\t0.8\n")

	exited = (&evaluateNetwork{}).RunCommand("evaluate-network", []string{
		"--p_in_net", outdir + "/net.tsv",
		"--p_out_eval", outdir + "/eval.tsv",
		"--fname_net", "cv",
		"--p_in_reg", outdir + "/reg",
		"--p_in_target", outdir + "/target",
		"--p_in_binding_event", outdir + "/binding.tsv",
		"--nbr_cutoff", "2",
		"--nbr_edges_per_reg", "1",
	}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	buf, err = ioutil.ReadFile(outdir + "/eval.tsv")
	c.Assert(err, check.IsNil)
	fields := strings.Split(strings.TrimSuffix(string(buf), "\n"), "\t")
	c.Assert(fields, check.HasLen, 4)
	// top 2 edges are B-W and B-Z (0 supported), top 4 add B-Y
	// (supported) and B-X.
	c.Check(fields[:3], check.DeepEquals, []string{"cv", "0", "25"})
	auc, err := strconv.ParseFloat(fields[3], 64)
	c.Assert(err, check.IsNil)
	c.Check(math.Abs(auc-0.55) < 1e-9, check.Equals, true, check.Commentf("auc=%v", auc))
}

func (s *concatSuite) TestRunCommandUsage(c *check.C) {
	exited := (&concatNetworks{}).RunCommand("concat-networks", []string{"-p_out_file", "/dev/null"}, nil, os.Stderr, os.Stderr)
	c.Check(exited, check.Equals, 2)
	exited = (&concatNetworks{}).RunCommand("concat-networks", []string{"-no-such-flag"}, nil, os.Stderr, os.Stderr)
	c.Check(exited, check.Equals, 2)
}
