// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrShapeMismatch   = errors.New("shape mismatch")
	ErrAmbiguousFormat = errors.New("cannot tell long form from matrix form (specify -format=long or -format=matrix)")
)

// Format is the layout of a network or prediction table.
type Format int

const (
	// FormatAuto means >3 columns is a matrix, exactly 3 is long
	// form, anything else is ErrAmbiguousFormat.
	FormatAuto Format = iota
	FormatLong
	FormatMatrix
)

func (f Format) String() string {
	switch f {
	case FormatLong:
		return "long"
	case FormatMatrix:
		return "matrix"
	default:
		return "auto"
	}
}

// Set implements flag.Value.
func (f *Format) Set(s string) error {
	switch s {
	case "auto":
		*f = FormatAuto
	case "long":
		*f = FormatLong
	case "matrix":
		*f = FormatMatrix
	default:
		return fmt.Errorf("invalid format %q (expected auto, long, or matrix)", s)
	}
	return nil
}

// detectFormat resolves FormatAuto using the column count of the
// first row.
func detectFormat(rows [][]string, format Format) (Format, error) {
	if format != FormatAuto {
		return format, nil
	}
	if len(rows) == 0 {
		return FormatAuto, fmt.Errorf("empty table: %w", ErrAmbiguousFormat)
	}
	switch ncols := len(rows[0]); {
	case ncols > 3:
		return FormatMatrix, nil
	case ncols == 3:
		return FormatLong, nil
	default:
		return FormatAuto, fmt.Errorf("%d columns: %w", ncols, ErrAmbiguousFormat)
	}
}

// Edge is one (regulator, target, score) row of a long-form network.
type Edge struct {
	Regulator string
	Target    string
	Value     float64
}

type edgeKey struct {
	regulator string
	target    string
}

func (e Edge) key() edgeKey {
	return edgeKey{e.Regulator, e.Target}
}

// Network holds either a long-form edge list or a regulator×target
// score matrix, depending on Format. Matrix rows and columns are
// unlabeled until LongForm assigns regulator and target names.
type Network struct {
	Format Format
	Edges  []Edge
	Matrix *mat.Dense
}

// ParseNetwork converts tab-separated cells into a Network.
func ParseNetwork(rows [][]string, format Format) (*Network, error) {
	format, err := detectFormat(rows, format)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatLong:
		edges := make([]Edge, 0, len(rows))
		for i, row := range rows {
			if len(row) != 3 {
				return nil, fmt.Errorf("line %d: %d columns in long-form network, expected 3: %w", i+1, len(row), ErrShapeMismatch)
			}
			v, err := parseValue(row[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			edges = append(edges, Edge{Regulator: row[0], Target: row[1], Value: v})
		}
		return &Network{Format: FormatLong, Edges: edges}, nil
	case FormatMatrix:
		if len(rows) == 0 || len(rows[0]) == 0 {
			return nil, fmt.Errorf("empty matrix: %w", ErrShapeMismatch)
		}
		ncols := len(rows[0])
		data := make([]float64, 0, len(rows)*ncols)
		for i, row := range rows {
			if len(row) != ncols {
				return nil, fmt.Errorf("line %d: %d columns, expected %d: %w", i+1, len(row), ncols, ErrShapeMismatch)
			}
			for j, cell := range row {
				v, err := parseValue(cell)
				if err != nil {
					return nil, fmt.Errorf("line %d column %d: %w", i+1, j+1, err)
				}
				data = append(data, v)
			}
		}
		return &Network{Format: FormatMatrix, Matrix: mat.NewDense(len(rows), ncols, data)}, nil
	}
	return nil, fmt.Errorf("unsupported format %v", format)
}

// ReadNetwork loads a tab-separated network file without header.
func ReadNetwork(fnm string, format Format) (*Network, error) {
	rows, err := readTSVFile(fnm)
	if err != nil {
		return nil, err
	}
	net, err := ParseNetwork(rows, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return net, nil
}

// LongForm returns the network as an edge list. For a matrix,
// regulators label the rows and targets label the columns.
func (net *Network) LongForm(regulators, targets []string) ([]Edge, error) {
	if net.Format == FormatMatrix {
		return Melt(net.Matrix, regulators, targets)
	}
	return net.Edges, nil
}

// Melt reshapes a regulator×target matrix to long form. Edges are
// emitted column by column (all regulators for the first target,
// then the second target, and so on), so ties in a later stable
// sort keep that order.
func Melt(m mat.Matrix, regulators, targets []string) ([]Edge, error) {
	r, c := m.Dims()
	if r != len(regulators) || c != len(targets) {
		return nil, fmt.Errorf("matrix is %d×%d but there are %d regulators and %d targets: %w", r, c, len(regulators), len(targets), ErrShapeMismatch)
	}
	edges := make([]Edge, 0, r*c)
	for j, target := range targets {
		for i, regulator := range regulators {
			edges = append(edges, Edge{Regulator: regulator, Target: target, Value: m.At(i, j)})
		}
	}
	return edges, nil
}

// Pivot is the inverse of Melt. Cells with no corresponding edge are
// NaN; edges naming an unknown regulator or target are ignored.
func Pivot(edges []Edge, regulators, targets []string) (*mat.Dense, error) {
	if len(regulators) == 0 || len(targets) == 0 {
		return nil, fmt.Errorf("cannot pivot onto %d regulators and %d targets: %w", len(regulators), len(targets), ErrShapeMismatch)
	}
	row := make(map[string]int, len(regulators))
	for i, reg := range regulators {
		row[reg] = i
	}
	col := make(map[string]int, len(targets))
	for j, target := range targets {
		col[target] = j
	}
	data := make([]float64, len(regulators)*len(targets))
	for i := range data {
		data[i] = math.NaN()
	}
	m := mat.NewDense(len(regulators), len(targets), data)
	for _, e := range edges {
		i, ok := row[e.Regulator]
		if !ok {
			continue
		}
		j, ok := col[e.Target]
		if !ok {
			continue
		}
		m.Set(i, j, e.Value)
	}
	return m, nil
}
