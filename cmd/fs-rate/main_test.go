package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/filter"
	"FlowSpectra/internal/table"
)

func TestCheckDropLossy(t *testing.T) {
	tests := []struct {
		opts    config.Options
		drop    bool
		wantErr bool
	}{
		{config.Options{}, false, false},
		{config.Options{ObsLoss: true}, true, false},
		{config.Options{}, true, true},
		{config.Options{ObsLoss: true, Uniflow: true}, true, true},
		{config.Options{Uniflow: true}, false, false},
	}
	for _, tt := range tests {
		err := checkDropLossy(&tt.opts, tt.drop)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkDropLossy(%+v, %v): expected error %v, got %v", tt.opts, tt.drop, tt.wantErr, err)
		}
	}
}

func TestDropLossyFlows(t *testing.T) {
	log, hook := test.NewNullLogger()

	// 1. Without the reverse loss column nothing is dropped and a warning is logged
	tbl := table.New(filter.ColSequenceLoss)
	_ = tbl.Append(uint64(3))
	if n := dropLossyFlows(tbl, log); n != 0 || tbl.Len() != 1 {
		t.Errorf("Expected no rows dropped, got %d (len %d)", n, tbl.Len())
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Fatalf("Expected a warning, got %v", e)
	}

	// 2. With both columns the lossy flow is removed
	hook.Reset()
	tbl = table.New(filter.ColSequenceLoss, filter.ColReverseSequenceLoss)
	_ = tbl.Append(uint64(0), uint64(0))
	_ = tbl.Append(uint64(0), uint64(2))
	if n := dropLossyFlows(tbl, log); n != 1 || tbl.Len() != 1 {
		t.Errorf("Expected 1 row dropped, got %d (len %d)", n, tbl.Len())
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.InfoLevel {
		t.Errorf("Expected an info entry, got %v", e)
	}
}
