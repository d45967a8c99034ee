package storage

import (
	"context"
	"database/sql"
	"fmt"

	"budget/internal/core"
	"budget/internal/store"
)

func (r *Repository) ListGroups(ctx context.Context) ([]core.CategoryGroup, error) {
	rows, err := r.query(ctx, `SELECT id, name, collapsed, sort_order FROM category_groups ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]core.CategoryGroup, 0)
	for rows.Next() {
		var g core.CategoryGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Collapsed, &g.SortOrder); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *Repository) GetGroup(ctx context.Context, id int64) (core.CategoryGroup, error) {
	var g core.CategoryGroup
	err := r.queryRow(ctx, `SELECT id, name, collapsed, sort_order FROM category_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.Collapsed, &g.SortOrder)
	if err != nil {
		return core.CategoryGroup{}, notFoundOr(err, "group", id)
	}
	return g, nil
}

func (r *Repository) CreateGroup(ctx context.Context, g core.CategoryGroup) (core.CategoryGroup, error) {
	id, err := r.insert(ctx, `INSERT INTO category_groups (name, collapsed, sort_order) VALUES (?, ?, ?)`,
		g.Name, g.Collapsed, g.SortOrder)
	if err != nil {
		return core.CategoryGroup{}, fmt.Errorf("create group: %w", err)
	}
	g.ID = id
	return g, nil
}

func (r *Repository) UpdateGroup(ctx context.Context, g core.CategoryGroup) error {
	res, err := r.exec(ctx, `UPDATE category_groups SET name = ?, collapsed = ?, sort_order = ? WHERE id = ?`,
		g.Name, g.Collapsed, g.SortOrder, g.ID)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return mustAffect(res, "group", g.ID)
}

func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	// ON DELETE SET NULL ungroups the categories.
	res, err := r.exec(ctx, `DELETE FROM category_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return mustAffect(res, "group", id)
}

const categoryColumns = `id, name, budget, group_id, sort_order`

func scanCategory(sc interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c       core.Category
		groupID sql.NullInt64
	)
	if err := sc.Scan(&c.ID, &c.Name, &c.Budget, &groupID, &c.SortOrder); err != nil {
		return core.Category{}, err
	}
	c.GroupID = idPtr(groupID)
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, notFoundOr(err, "category", id)
	}
	return c, nil
}

func (r *Repository) checkGroup(ctx context.Context, groupID *int64) error {
	if groupID == nil {
		return nil
	}
	_, err := r.GetGroup(ctx, *groupID)
	return err
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := r.checkGroup(ctx, c.GroupID); err != nil {
		return core.Category{}, err
	}
	id, err := r.insert(ctx, `INSERT INTO categories (name, budget, group_id, sort_order) VALUES (?, ?, ?, ?)`,
		c.Name, c.Budget, nullID(c.GroupID), c.SortOrder)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := r.checkGroup(ctx, c.GroupID); err != nil {
		return err
	}
	res, err := r.exec(ctx, `UPDATE categories SET name = ?, budget = ?, group_id = ?, sort_order = ? WHERE id = ?`,
		c.Name, c.Budget, nullID(c.GroupID), c.SortOrder, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return mustAffect(res, "category", c.ID)
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.CountTransactions(ctx, store.TransactionFilter{CategoryID: &id})
	if err != nil {
		return err
	}
	if n > 0 {
		return core.ErrCategoryInUse
	}
	res, err := r.exec(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return mustAffect(res, "category", id)
}

func (r *Repository) ListAssignments(ctx context.Context, year, month int) ([]core.BudgetAssignment, error) {
	rows, err := r.query(ctx, `SELECT category_id, year, month, amount FROM budget_assignments
		WHERE year = ? AND month = ? ORDER BY category_id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	out := make([]core.BudgetAssignment, 0)
	for rows.Next() {
		var a core.BudgetAssignment
		if err := rows.Scan(&a.CategoryID, &a.Year, &a.Month, &a.Amount); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) SetAssignment(ctx context.Context, a core.BudgetAssignment) error {
	if _, err := r.GetCategory(ctx, a.CategoryID); err != nil {
		return err
	}
	_, err := r.exec(ctx, `INSERT INTO budget_assignments (category_id, year, month, amount) VALUES (?, ?, ?, ?)
		ON CONFLICT (category_id, year, month) DO UPDATE SET amount = excluded.amount`,
		a.CategoryID, a.Year, a.Month, a.Amount)
	if err != nil {
		return fmt.Errorf("set assignment: %w", err)
	}
	return nil
}

func (r *Repository) DeleteAssignment(ctx context.Context, categoryID int64, year, month int) error {
	res, err := r.exec(ctx, `DELETE FROM budget_assignments WHERE category_id = ? AND year = ? AND month = ?`,
		categoryID, year, month)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return mustAffect(res, "assignment for category", categoryID)
}
