// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"fmt"
	"strings"
)

// BindingEvents is the ground-truth set of regulator-target pairs.
type BindingEvents struct {
	edges      map[edgeKey]bool
	regulators map[string]bool
}

// ParseBindingEvents reads a table whose first row is a header with
// (at least) REGULATOR and TARGET columns, in any position.
func ParseBindingEvents(rows [][]string) (*BindingEvents, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("binding events: missing header row")
	}
	regCol, targetCol := -1, -1
	for col, name := range rows[0] {
		switch strings.TrimSpace(name) {
		case "REGULATOR":
			regCol = col
		case "TARGET":
			targetCol = col
		}
	}
	if regCol < 0 || targetCol < 0 {
		return nil, fmt.Errorf("binding events: header row %q must have REGULATOR and TARGET columns", rows[0])
	}
	be := &BindingEvents{
		edges:      map[edgeKey]bool{},
		regulators: map[string]bool{},
	}
	for i, row := range rows[1:] {
		if len(row) <= regCol || len(row) <= targetCol {
			return nil, fmt.Errorf("binding events: line %d: %d columns: %w", i+2, len(row), ErrShapeMismatch)
		}
		be.Add(row[regCol], row[targetCol])
	}
	return be, nil
}

// ReadBindingEvents loads a tab-separated binding event file.
func ReadBindingEvents(fnm string) (*BindingEvents, error) {
	rows, err := readTSVFile(fnm)
	if err != nil {
		return nil, err
	}
	be, err := ParseBindingEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return be, nil
}

func (be *BindingEvents) Add(regulator, target string) {
	be.edges[edgeKey{regulator, target}] = true
	be.regulators[regulator] = true
}

func (be *BindingEvents) Supports(e Edge) bool {
	return be.edges[e.key()]
}

func (be *BindingEvents) HasRegulator(regulator string) bool {
	return be.regulators[regulator]
}

// Len returns the number of distinct binding events.
func (be *BindingEvents) Len() int {
	return len(be.edges)
}
