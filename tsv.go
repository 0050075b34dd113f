// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// readTSV returns the tab-separated cells of each non-empty line. A
// line of tabs only is a row of empty cells, not a blank line.
func readTSV(rdr io.Reader) ([][]string, error) {
	var rows [][]string
	scanner := bufio.NewScanner(rdr)
	// Matrix-form networks have one cell per target gene, so a
	// single line can be several megabytes.
	scanner.Buffer(make([]byte, 1<<20), 1<<30)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows, scanner.Err()
}

func readTSVFile(fnm string) ([][]string, error) {
	f, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := readTSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return rows, nil
}

// readList returns the first column of a single-column file
// (regulator and target lists).
func readList(fnm string) ([]string, error) {
	rows, err := readTSVFile(fnm)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(rows))
	for _, row := range rows {
		list = append(list, strings.TrimSpace(row[0]))
	}
	return list, nil
}

func writeTSV(w io.Writer, rows [][]string) error {
	bufw := bufio.NewWriter(w)
	for _, row := range rows {
		_, err := bufw.WriteString(strings.Join(row, "\t") + "\n")
		if err != nil {
			return err
		}
	}
	return bufw.Flush()
}

// parseValue parses a score cell. Empty cells and the usual NA
// spellings are missing values (NaN).
func parseValue(s string) (float64, error) {
	switch strings.TrimSpace(s) {
	case "", "NA", "NaN", "nan", "NULL":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// formatValue renders NaN as "NaN" so missing values survive a
// round trip through parseValue.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
