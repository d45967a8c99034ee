// Package ordering implements the drag-and-drop list operations used for
// categories and category groups.
package ordering

import (
	"fmt"
	"slices"

	"budget/internal/core"
)

// Reorder moves the item identified by dragged to the position currently held
// by target and returns the new slice. The input is not modified. Dropping an
// item onto itself is a no-op; unknown ids yield core.ErrNotFound and the
// original order.
func Reorder[T any](items []T, id func(T) int64, dragged, target int64) ([]T, error) {
	from := slices.IndexFunc(items, func(it T) bool { return id(it) == dragged })
	if from < 0 {
		return items, fmt.Errorf("dragged item %d: %w", dragged, core.ErrNotFound)
	}
	to := slices.IndexFunc(items, func(it T) bool { return id(it) == target })
	if to < 0 {
		return items, fmt.Errorf("target item %d: %w", target, core.ErrNotFound)
	}

	out := slices.Clone(items)
	if from == to {
		return out, nil
	}
	moved := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, moved), nil
}

// CategoryID and GroupID adapt domain types to the id accessor Reorder expects.
func CategoryID(c core.Category) int64    { return c.ID }
func GroupID(g core.CategoryGroup) int64 { return g.ID }

// ReorderCategories reorders categories by dragging dragged onto target.
// Categories are reordered within the target's group: when the dragged
// category sits in another group it is moved into the target's group first.
// The returned slice holds the target group's categories in their new order
// with SortOrder renumbered.
func ReorderCategories(all []core.Category, dragged, target int64) ([]core.Category, error) {
	var draggedCat, targetCat *core.Category
	for i := range all {
		switch all[i].ID {
		case dragged:
			draggedCat = &all[i]
		case target:
			targetCat = &all[i]
		}
	}
	if draggedCat == nil {
		return nil, fmt.Errorf("category %d: %w", dragged, core.ErrNotFound)
	}
	if dragged == target {
		targetCat = draggedCat
	}
	if targetCat == nil {
		return nil, fmt.Errorf("category %d: %w", target, core.ErrNotFound)
	}

	groupID := targetCat.GroupID
	incoming := !draggedCat.InGroup(groupID)
	siblings := make([]core.Category, 0, len(all))
	for _, c := range all {
		if c.ID == dragged {
			if incoming {
				c.GroupID = copyID(groupID)
			}
			siblings = append(siblings, c)
			continue
		}
		if c.InGroup(groupID) {
			siblings = append(siblings, c)
		}
	}
	sortBySortOrder(siblings, dragged, incoming)

	ordered, err := Reorder(siblings, CategoryID, dragged, target)
	if err != nil {
		return nil, err
	}
	for i := range ordered {
		ordered[i].SortOrder = i
	}
	return ordered, nil
}

// ReorderGroups reorders groups by dragging dragged onto target and renumbers SortOrder.
func ReorderGroups(groups []core.CategoryGroup, dragged, target int64) ([]core.CategoryGroup, error) {
	sorted := append([]core.CategoryGroup(nil), groups...)
	sortGroups(sorted)
	ordered, err := Reorder(sorted, GroupID, dragged, target)
	if err != nil {
		return nil, err
	}
	for i := range ordered {
		ordered[i].SortOrder = i
	}
	return ordered, nil
}

// MoveToGroup assigns the category to groupID, appending it at the end of the
// destination group. A nil groupID makes the category ungrouped; a group id not
// present in groups yields core.ErrNotFound.
func MoveToGroup(c core.Category, groupID *int64, groups []core.CategoryGroup, all []core.Category) (core.Category, error) {
	if groupID != nil {
		found := false
		for _, g := range groups {
			if g.ID == *groupID {
				found = true
				break
			}
		}
		if !found {
			return c, fmt.Errorf("group %d: %w", *groupID, core.ErrNotFound)
		}
	}
	if c.InGroup(groupID) {
		return c, nil
	}
	next := 0
	for _, other := range all {
		if other.ID != c.ID && other.InGroup(groupID) && other.SortOrder >= next {
			next = other.SortOrder + 1
		}
	}
	c.GroupID = copyID(groupID)
	c.SortOrder = next
	return c, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
