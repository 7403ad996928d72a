package world

type WorldConfig struct {
	ID         string
	TickRateHz int
	Height     int
	Seed       int64
	BoundaryR  int

	// Network traversal caps (see discoverNetwork).
	NetworkMaxTerminals int
	NetworkVisitBudget  int

	// Cadences, in ticks.
	ItemRouteEveryTicks int
	RescanEveryTicks    int
	StatusEveryTicks    int

	FillPenaltyScale int
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 4000
	}
	if c.NetworkMaxTerminals <= 0 {
		c.NetworkMaxTerminals = 64
	}
	if c.NetworkVisitBudget <= 0 {
		c.NetworkVisitBudget = 1024
	}
	if c.ItemRouteEveryTicks <= 0 {
		c.ItemRouteEveryTicks = 8
	}
	if c.RescanEveryTicks <= 0 {
		c.RescanEveryTicks = 600
	}
	if c.StatusEveryTicks <= 0 {
		c.StatusEveryTicks = 20
	}
	if c.FillPenaltyScale <= 0 {
		c.FillPenaltyScale = 10
	}
}
