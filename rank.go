// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"math"
	"sort"
)

// Rank returns a copy of edges with missing scores dropped and each
// score replaced by its absolute value, sorted by descending score.
// Ties keep their input order.
func Rank(edges []Edge) []Edge {
	ranked := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if math.IsNaN(e.Value) {
			continue
		}
		e.Value = math.Abs(e.Value)
		ranked = append(ranked, e)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	return ranked
}

// LabeledEdge is a ranked edge marked against the binding events.
// Predicted means the regulator has at least one binding event, so
// the edge can be evaluated at all; Supported means the edge itself
// is a binding event.
type LabeledEdge struct {
	Edge
	Predicted bool
	Supported bool
}

// Label marks each ranked edge against ref, preserving rank order.
func Label(ranked []Edge, ref *BindingEvents) []LabeledEdge {
	labeled := make([]LabeledEdge, len(ranked))
	for i, e := range ranked {
		labeled[i] = LabeledEdge{
			Edge:      e,
			Predicted: ref.HasRegulator(e.Regulator),
			Supported: ref.Supports(e),
		}
	}
	return labeled
}
