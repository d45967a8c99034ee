package ordering

import (
	"sort"

	"budget/internal/core"
)

// sortBySortOrder orders categories by SortOrder then ID. When incoming is set
// the dragged category is a newcomer to the group and is placed last.
func sortBySortOrder(cats []core.Category, dragged int64, incoming bool) {
	sort.SliceStable(cats, func(i, j int) bool {
		if incoming {
			if cats[i].ID == dragged {
				return false
			}
			if cats[j].ID == dragged {
				return true
			}
		}
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].ID < cats[j].ID
	})
}

func sortGroups(groups []core.CategoryGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].SortOrder != groups[j].SortOrder {
			return groups[i].SortOrder < groups[j].SortOrder
		}
		return groups[i].ID < groups[j].ID
	})
}
