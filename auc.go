// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC returns the area under the ROC curve obtained by using each
// edge's score to predict whether it is supported. All distinct
// scores are used as thresholds. The result is NaN if there are no
// supported edges or no unsupported edges.
func AUC(labeled []LabeledEdge) float64 {
	y := make([]float64, len(labeled))
	classes := make([]bool, len(labeled))
	var pos, neg int
	for i, e := range labeled {
		y[i] = e.Value
		classes[i] = e.Supported
		if e.Supported {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return math.NaN()
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
