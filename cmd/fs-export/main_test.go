package main

import (
	"flag"
	"testing"
	"time"

	"FlowSpectra/internal/config"
)

func TestInputName(t *testing.T) {
	tests := map[string]string{
		"":                           "stdin",
		"-":                          "stdin",
		"/data/trace.ipfix":          "trace",
		"/data/trace-2014.ipfix.bz2": "trace-2014",
	}
	for in, want := range tests {
		if got := inputName(in); got != want {
			t.Errorf("inputName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNewGrouper(t *testing.T) {
	cfg := config.Default()

	g, err := newGrouper(cfg, "", "", -1)
	if err != nil {
		t.Fatalf("newGrouper failed: %v", err)
	}
	if g.Timeout != 15*time.Second || g.TimeField != "flowStartMilliseconds" || g.KeyFields[0] != "sourceIPv4Address" {
		t.Errorf("Expected configured defaults, got %+v", g)
	}

	g, err = newGrouper(cfg, "sourceIPv4Address,destinationIPv4Address", "flowEndMilliseconds", time.Minute)
	if err != nil {
		t.Fatalf("newGrouper failed: %v", err)
	}
	if len(g.KeyFields) != 2 || g.TimeField != "flowEndMilliseconds" || g.Timeout != time.Minute {
		t.Errorf("Expected flag values, got %+v", g)
	}
}

func TestGroupFlags_TimeoutSeconds(t *testing.T) {
	cfg := config.Default()

	// 1. No grouping flags, no grouper
	var gf groupFlags
	fs := flag.NewFlagSet("fs-export", flag.ContinueOnError)
	gf.register(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if g, err := gf.grouper(cfg); err != nil || g != nil {
		t.Fatalf("Expected no grouper, got %+v, %v", g, err)
	}

	// 2. A plain integer timeout is taken as seconds
	gf = groupFlags{}
	fs = flag.NewFlagSet("fs-export", flag.ContinueOnError)
	gf.register(fs)
	if err := fs.Parse([]string{"-key", "sourceIPv4Address,destinationIPv4Address", "-timeout", "15"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	g, err := gf.grouper(cfg)
	if err != nil {
		t.Fatalf("grouper failed: %v", err)
	}
	if g.Timeout != 15*time.Second {
		t.Errorf("Expected timeout 15s, got %s", g.Timeout)
	}
	if len(g.KeyFields) != 2 {
		t.Errorf("Expected 2 key fields, got %v", g.KeyFields)
	}

	// 3. A zero timeout is kept
	gf = groupFlags{}
	fs = flag.NewFlagSet("fs-export", flag.ContinueOnError)
	gf.register(fs)
	if err := fs.Parse([]string{"-group", "-timeout", "0"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	g, err = gf.grouper(cfg)
	if err != nil {
		t.Fatalf("grouper failed: %v", err)
	}
	if g.Timeout != 0 {
		t.Errorf("Expected timeout 0, got %s", g.Timeout)
	}
}
