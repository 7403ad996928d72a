package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	// Network traversal caps. MaxTerminals bounds the size of a discovered
	// network; VisitBudget bounds the BFS visited set so a pure-conduit
	// flood still terminates inside one tick.
	NetworkMaxTerminals int `yaml:"network_max_terminals"`
	NetworkVisitBudget  int `yaml:"network_visit_budget"`

	// Scheduling cadences, in ticks.
	ItemRouteEveryTicks int `yaml:"item_route_every_ticks"`
	RescanEveryTicks    int `yaml:"rescan_every_ticks"`
	StatusEveryTicks    int `yaml:"status_every_ticks"`

	// Fill fraction is scaled by this much and subtracted from a
	// receiver's base priority when ranking energy receivers.
	FillPenaltyScale int `yaml:"fill_penalty_scale"`
}

func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func (t *Tuning) applyDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 20
	}
	if t.NetworkMaxTerminals <= 0 {
		t.NetworkMaxTerminals = 64
	}
	if t.NetworkVisitBudget <= 0 {
		t.NetworkVisitBudget = 1024
	}
	if t.ItemRouteEveryTicks <= 0 {
		t.ItemRouteEveryTicks = 8
	}
	if t.RescanEveryTicks <= 0 {
		t.RescanEveryTicks = 600
	}
	if t.StatusEveryTicks <= 0 {
		t.StatusEveryTicks = 20
	}
	if t.FillPenaltyScale <= 0 {
		t.FillPenaltyScale = 10
	}
}
