package session

import (
	"sort"

	"tenant-admin/internal/tenant"
)

// MergeCompanies concatenates the lists and de-duplicates by company id.
// A later entry replaces an earlier one with the same id but keeps the
// earlier entry's position.
func MergeCompanies(lists ...[]tenant.CompanyAccess) []tenant.CompanyAccess {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]tenant.CompanyAccess, 0, n)
	pos := make(map[string]int, n)
	for _, l := range lists {
		for _, c := range l {
			if i, ok := pos[c.ID]; ok {
				out[i] = c
				continue
			}
			pos[c.ID] = len(out)
			out = append(out, c)
		}
	}
	return out
}

func readOnlyAll(companies []tenant.Company) []tenant.CompanyAccess {
	out := make([]tenant.CompanyAccess, 0, len(companies))
	for _, c := range companies {
		out = append(out, tenant.ReadOnlyAccess(c))
	}
	return out
}

// topLevelFirst moves parentless companies to the front, keeping the
// relative order otherwise.
func topLevelFirst(list []tenant.CompanyAccess) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].TopLevel() && !list[j].TopLevel()
	})
}
