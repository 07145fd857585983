package ui

import (
	"strings"
	"testing"
)

func TestBannerContainsContent(t *testing.T) {
	out := Banner("OMRON FINS simulator", []Row{
		{Label: "Listen", Value: "0.0.0.0:9600"},
		{Label: "Simulator", Value: "motor, 500ms", Active: true},
	})

	for _, want := range []string{"OMRON FINS simulator", "Listen", "0.0.0.0:9600", "Simulator", "motor, 500ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q", want)
		}
	}
	if !strings.Contains(out, "\n") {
		t.Error("banner should span multiple lines")
	}
}
