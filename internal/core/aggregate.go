package core

import "github.com/shopspring/decimal"

// Summary is the net worth view over a collection of sections.
type Summary struct {
	Assets      Amount `json:"Assets"`
	Liabilities Amount `json:"Liabilities"`
	NetWorth    Amount `json:"NetWorth"`
}

// Recalculate returns a deep copy of sections in which every group total is
// the sum of its category values and every section total is the sum of its
// group totals. Names, ordering and category values are left as they are, and
// running it on its own output changes nothing.
//
// Every total is recomputed on each call. That is fine for tens of groups; a
// large tree would want incremental updates.
func Recalculate(sections []Section) []Section {
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = RecalculateSection(s)
	}
	return out
}

// RecalculateSection is Recalculate for a single section.
func RecalculateSection(s Section) Section {
	out := s.Clone()
	sectionTotal := decimal.Zero
	for j := range out.Groups {
		g := &out.Groups[j]
		groupTotal := decimal.Zero
		for _, c := range g.Categories {
			groupTotal = groupTotal.Add(c.Value.Decimal())
		}
		g.TotalValue = NewAmount(groupTotal)
		sectionTotal = sectionTotal.Add(groupTotal)
	}
	out.TotalValue = NewAmount(sectionTotal)
	return out
}

// Consistent reports whether the stored totals already match the values.
func Consistent(sections []Section) bool {
	for _, s := range sections {
		sectionTotal := decimal.Zero
		for _, g := range s.Groups {
			groupTotal := decimal.Zero
			for _, c := range g.Categories {
				groupTotal = groupTotal.Add(c.Value.Decimal())
			}
			if !g.TotalValue.IsNumeric() || !g.TotalValue.Decimal().Equal(groupTotal) {
				return false
			}
			sectionTotal = sectionTotal.Add(groupTotal)
		}
		if !s.TotalValue.IsNumeric() || !s.TotalValue.Decimal().Equal(sectionTotal) {
			return false
		}
	}
	return true
}

// NetWorth subtracts the liabilities total from the assets total.
//
// Sides are picked by Role: the first section tagged RoleAssets and the first
// tagged RoleLiabilities. When no section carries a role, index 0 is assets
// and index 1 is liabilities. A side that cannot be found counts as zero.
func NetWorth(sections []Section) Summary {
	assets, liabilities := -1, -1
	tagged := false
	for i, s := range sections {
		switch s.Role {
		case RoleAssets:
			tagged = true
			if assets < 0 {
				assets = i
			}
		case RoleLiabilities:
			tagged = true
			if liabilities < 0 {
				liabilities = i
			}
		}
	}
	if !tagged {
		if len(sections) > 0 {
			assets = 0
		}
		if len(sections) > 1 {
			liabilities = 1
		}
	}

	var sum Summary
	if assets >= 0 {
		sum.Assets = RecalculateSection(sections[assets]).TotalValue
	}
	if liabilities >= 0 {
		sum.Liabilities = RecalculateSection(sections[liabilities]).TotalValue
	}
	sum.NetWorth = sum.Assets.Sub(sum.Liabilities)
	return sum
}
