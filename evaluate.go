// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

const (
	MethodPercentage = "per"
	MethodAUC        = "auc"
)

var (
	ErrNoMethod       = errors.New("no evaluation method requested (expected per and/or auc)")
	ErrUnknownMethod  = errors.New("unknown evaluation method")
	ErrAUCRequiresPer = errors.New("method auc requires method per: supported edges are labeled by the percentage-at-rank step")
	ErrBinSize        = errors.New("rank bin size is zero")
)

// RankCurve is the percentage of supported edges among the edges
// ranked above each cutoff. Percentage is NaN where no edge above
// the cutoff has a regulator with binding events.
type RankCurve struct {
	Rank       []int
	Percentage []float64
	Supported  []int
}

// PercentageAtRank computes the rank curve over
// nbrCutoff bins spanning the top nRegulators*edgesPerRegulator
// edges of the labeled (already ranked) network.
func PercentageAtRank(labeled []LabeledEdge, nRegulators, nbrCutoff, edgesPerRegulator int) (*RankCurve, error) {
	if nbrCutoff < 1 {
		return nil, fmt.Errorf("nbr_cutoff %d: %w", nbrCutoff, ErrBinSize)
	}
	lastRank := nRegulators * edgesPerRegulator
	binSize := lastRank / nbrCutoff
	if binSize < 1 {
		return nil, fmt.Errorf("%d regulators × %d edges per regulator / %d cutoffs: %w", nRegulators, edgesPerRegulator, nbrCutoff, ErrBinSize)
	}
	curve := &RankCurve{}
	var predicted, supported, n int
	for i := 0; i < lastRank; i += binSize {
		end := i + binSize
		for ; n < end && n < len(labeled); n++ {
			if labeled[n].Predicted {
				predicted++
			}
			if labeled[n].Supported {
				supported++
			}
		}
		pct := math.NaN()
		if predicted > 0 {
			pct = float64(supported) / float64(predicted) * 100
		}
		curve.Rank = append(curve.Rank, end)
		curve.Percentage = append(curve.Percentage, pct)
		curve.Supported = append(curve.Supported, supported)
	}
	return curve, nil
}

// validateMethods reports which methods were requested, rejecting
// combinations that cannot be computed.
func validateMethods(methods []string) (per, auc bool, err error) {
	for _, m := range methods {
		switch m {
		case MethodPercentage:
			per = true
		case MethodAUC:
			auc = true
		default:
			return false, false, fmt.Errorf("%q: %w", m, ErrUnknownMethod)
		}
	}
	if !per && !auc {
		return false, false, ErrNoMethod
	}
	if auc && !per {
		return false, false, ErrAUCRequiresPer
	}
	return per, auc, nil
}

type EvalConfig struct {
	Name              string
	Regulators        []string
	Targets           []string
	NbrCutoff         int
	EdgesPerRegulator int
	Methods           []string
}

// Summary is one row of the evaluation output: the rank curve
// percentages (if requested) followed by the AUC (if requested).
type Summary struct {
	Name   string
	Values []float64
}

// WriteTo writes the summary as a single tab-separated line,
// labeled with the network name.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	cells := make([]string, 0, len(s.Values)+1)
	cells = append(cells, s.Name)
	for _, v := range s.Values {
		cells = append(cells, formatValue(v))
	}
	n, err := io.WriteString(w, strings.Join(cells, "\t")+"\n")
	return int64(n), err
}

// Evaluate ranks net and scores it against ref. The returned curve is
// nil unless the percentage method was requested.
func Evaluate(net *Network, ref *BindingEvents, cfg EvalConfig) (*Summary, *RankCurve, error) {
	per, auc, err := validateMethods(cfg.Methods)
	if err != nil {
		return nil, nil, err
	}
	if ref == nil {
		return nil, nil, errors.New("binding events are required for method per")
	}
	edges, err := net.LongForm(cfg.Regulators, cfg.Targets)
	if err != nil {
		return nil, nil, err
	}
	ranked := Rank(edges)
	log.Infof("ranked %d edges (%d missing values dropped)", len(ranked), len(edges)-len(ranked))

	summary := &Summary{Name: cfg.Name}
	var curve *RankCurve
	var labeled []LabeledEdge
	if per {
		labeled = Label(ranked, ref)
		curve, err = PercentageAtRank(labeled, len(cfg.Regulators), cfg.NbrCutoff, cfg.EdgesPerRegulator)
		if err != nil {
			return nil, nil, err
		}
		for i, pct := range curve.Percentage {
			if math.IsNaN(pct) {
				log.Warnf("no predicted edges in the top %d: percentage supported is NaN", curve.Rank[i])
			}
		}
		summary.Values = append(summary.Values, curve.Percentage...)
	}
	if auc {
		a := AUC(labeled)
		if math.IsNaN(a) {
			log.Warn("AUC is undefined (need both supported and unsupported edges)")
		}
		log.Infof("AUC %v", a)
		summary.Values = append(summary.Values, a)
	}
	return summary, curve, nil
}

// appendSummary appends s to the file fnm, creating it if needed.
func appendSummary(fnm string, s *Summary) error {
	f, err := os.OpenFile(fnm, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = s.WriteTo(f)
	if err != nil {
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	return f.Close()
}

// writeCurveNumpy writes the rank curve as a 3×n float64 array: rank
// cutoffs, percentages, and supported counts.
func writeCurveNumpy(fnm string, curve *RankCurve) error {
	output, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer output.Close()
	cols := len(curve.Rank)
	out := make([]float64, 3*cols)
	for i := 0; i < cols; i++ {
		out[i] = float64(curve.Rank[i])
		out[cols+i] = curve.Percentage[i]
		out[2*cols+i] = float64(curve.Supported[i])
	}
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"filename": fnm,
		"rows":     3,
		"cols":     cols,
	}).Infof("writing numpy: %s", fnm)
	npw.Shape = []int{3, cols}
	err = npw.WriteFloat64(out)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return output.Close()
}

// methodList is a flag.Value accepting comma-separated methods. The
// first Set replaces the default; later ones append.
type methodList struct {
	methods []string
	set     bool
}

func (ml *methodList) String() string {
	return strings.Join(ml.methods, ",")
}

func (ml *methodList) Set(s string) error {
	if !ml.set {
		ml.methods = nil
		ml.set = true
	}
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			ml.methods = append(ml.methods, m)
		}
	}
	return nil
}

type evaluateNetwork struct{}

func (cmd *evaluateNetwork) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return exitCode(cmd.run(prog, args, stdin, stdout, stderr), stderr)
}

func (cmd *evaluateNetwork) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	netFilename := flags.String("p_in_net", "", "network `file` (tab-separated, long or matrix form)")
	evalFilename := flags.String("p_out_eval", "", "append evaluation row to `file` (default: print to stdout)")
	netName := flags.String("fname_net", "", "network `name` used as the row label")
	regFilename := flags.String("p_in_reg", "", "regulator list `file`")
	targetFilename := flags.String("p_in_target", "", "target gene list `file`")
	nbrCutoff := flags.Int("nbr_cutoff", 20, "number of rank cutoffs")
	edgesPerReg := flags.Int("nbr_edges_per_reg", 100, "number of edges per regulator in total")
	bindingFilename := flags.String("p_in_binding_event", "", "binding event `file` with header |REGULATOR|TARGET|VALUE|")
	curveFilename := flags.String("curve-npy", "", "also write the rank curve to numpy `file`")
	methods := &methodList{methods: []string{MethodPercentage, MethodAUC}}
	flags.Var(methods, "method", "comma-separated evaluation `methods` (per, auc)")
	format := FormatAuto
	flags.Var(&format, "format", "network `format`: auto, long, or matrix")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return err
	} else if err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	} else if flags.NArg() > 0 {
		return fmt.Errorf("%w: errant command line arguments after parsed flags: %v", errUsage, flags.Args())
	}
	for _, req := range []struct{ name, val string }{
		{"p_in_net", *netFilename},
		{"p_in_reg", *regFilename},
		{"p_in_target", *targetFilename},
		{"p_in_binding_event", *bindingFilename},
	} {
		if req.val == "" {
			return fmt.Errorf("%w: missing required flag -%s", errUsage, req.name)
		}
	}
	// Fail before reading any input.
	if _, _, err = validateMethods(methods.methods); err != nil {
		return err
	}
	servePprof(*pprof)

	log.Infof("reading regulators %s", *regFilename)
	regulators, err := readList(*regFilename)
	if err != nil {
		return err
	}
	log.Infof("reading targets %s", *targetFilename)
	targets, err := readList(*targetFilename)
	if err != nil {
		return err
	}
	log.Infof("reading network %s", *netFilename)
	net, err := ReadNetwork(*netFilename, format)
	if err != nil {
		return err
	}
	log.Infof("reading binding events %s", *bindingFilename)
	ref, err := ReadBindingEvents(*bindingFilename)
	if err != nil {
		return err
	}
	log.Infof("%d regulators, %d targets, %s network, %d binding events", len(regulators), len(targets), net.Format, ref.Len())

	summary, curve, err := Evaluate(net, ref, EvalConfig{
		Name:              *netName,
		Regulators:        regulators,
		Targets:           targets,
		NbrCutoff:         *nbrCutoff,
		EdgesPerRegulator: *edgesPerReg,
		Methods:           methods.methods,
	})
	if err != nil {
		return err
	}
	if *evalFilename != "" {
		log.Infof("appending evaluation to %s", *evalFilename)
		err = appendSummary(*evalFilename, summary)
	} else {
		_, err = summary.WriteTo(stdout)
	}
	if err != nil {
		return err
	}
	if *curveFilename != "" && curve != nil {
		err = writeCurveNumpy(*curveFilename, curve)
		if err != nil {
			return err
		}
	}
	return nil
}
