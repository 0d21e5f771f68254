package vad

import "testing"

func TestEnergyClassify(t *testing.T) {
	e := Energy{Threshold: 0.01}

	loud := make([]float32, 160)
	for i := range loud {
		loud[i] = 0.1
	}
	if !e.Classify(loud) {
		t.Error("loud window classified as silence")
	}

	quiet := make([]float32, 160)
	for i := range quiet {
		quiet[i] = 0.001
	}
	if e.Classify(quiet) {
		t.Error("quiet window classified as speech")
	}

	if e.Classify(nil) {
		t.Error("empty window classified as speech")
	}
}

func TestEnergyThresholdBoundary(t *testing.T) {
	e := Energy{Threshold: 0.01}

	// RMS ровно на пороге считается речью.
	exact := make([]float32, 160)
	for i := range exact {
		exact[i] = 0.01
	}
	if !e.Classify(exact) {
		t.Error("window at threshold classified as silence")
	}
}
