package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"preppertrack/internal/inventory"
)

// Sink receives an applied import. Each write replaces a whole section.
type Sink interface {
	SaveInventory(ctx context.Context, items []inventory.Item) error
	SaveHousehold(ctx context.Context, members []inventory.HouseholdMember) error
	SaveGroups(ctx context.Context, groups []inventory.HouseholdGroup) error
	SaveSettings(ctx context.Context, s inventory.Settings) error
	SaveScenarios(ctx context.Context, sc []inventory.RationingScenario) error
	SaveSelectedScenario(ctx context.Context, id string) error
}

// ApplyReport is the best-effort outcome of an import. Entities are checked
// one by one, so a report can carry failures next to successful counts.
type ApplyReport struct {
	Inventory int
	Household int
	Groups    int
	Scenarios int
	Settings  bool
	Failures  []string
}

func (r ApplyReport) OK() bool { return len(r.Failures) == 0 }

func (r ApplyReport) String() string {
	s := fmt.Sprintf("inventory=%d household=%d groups=%d scenarios=%d settings=%t",
		r.Inventory, r.Household, r.Groups, r.Scenarios, r.Settings)
	if len(r.Failures) > 0 {
		s += fmt.Sprintf(" failures=%d", len(r.Failures))
	}
	return s
}

// Apply replaces the stored inventory, household, groups, settings and
// scenarios with p. Entities without a name are skipped and reported;
// entities without an id (or with a duplicate id) get a fresh one.
func Apply(ctx context.Context, sink Sink, p *Payload) ApplyReport {
	var rep ApplyReport
	fail := func(format string, args ...any) {
		rep.Failures = append(rep.Failures, fmt.Sprintf(format, args...))
	}

	items := make([]inventory.Item, 0, len(p.Inventory))
	seen := map[string]bool{}
	for i, it := range p.Inventory {
		if strings.TrimSpace(it.Name) == "" {
			fail("inventory[%d]: name is required", i)
			continue
		}
		it.ID = uniqueID(it.ID, seen)
		items = append(items, it)
	}
	if err := sink.SaveInventory(ctx, items); err != nil {
		fail("inventory: %v", err)
	} else {
		rep.Inventory = len(items)
	}

	members := make([]inventory.HouseholdMember, 0, len(p.Household))
	seen = map[string]bool{}
	for i, m := range p.Household {
		if strings.TrimSpace(m.Name) == "" {
			fail("household[%d]: name is required", i)
			continue
		}
		m.ID = uniqueID(m.ID, seen)
		members = append(members, m)
	}
	if err := sink.SaveHousehold(ctx, members); err != nil {
		fail("household: %v", err)
	} else {
		rep.Household = len(members)
	}

	groups := make([]inventory.HouseholdGroup, 0, len(p.Groups))
	seen = map[string]bool{}
	for i, g := range p.Groups {
		if strings.TrimSpace(g.Name) == "" {
			fail("householdGroups[%d]: name is required", i)
			continue
		}
		g.ID = uniqueID(g.ID, seen)
		groups = append(groups, g)
	}
	if err := sink.SaveGroups(ctx, groups); err != nil {
		fail("householdGroups: %v", err)
	} else {
		rep.Groups = len(groups)
	}

	if err := sink.SaveSettings(ctx, p.Settings); err != nil {
		fail("settings: %v", err)
	} else {
		rep.Settings = true
	}

	scenarios := make([]inventory.RationingScenario, 0, len(p.Scenarios))
	seen = map[string]bool{}
	for i, sc := range p.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			fail("rationingScenarios[%d]: name is required", i)
			continue
		}
		sc.ID = uniqueID(sc.ID, seen)
		scenarios = append(scenarios, sc)
	}
	if err := sink.SaveScenarios(ctx, scenarios); err != nil {
		fail("rationingScenarios: %v", err)
	} else {
		rep.Scenarios = len(scenarios)
	}
	if err := sink.SaveSelectedScenario(ctx, p.SelectedScenario); err != nil {
		fail("selectedRationingScenario: %v", err)
	}
	return rep
}

func uniqueID(id string, seen map[string]bool) string {
	id = strings.TrimSpace(id)
	if id == "" || seen[id] {
		id = uuid.NewString()
	}
	seen[id] = true
	return id
}
