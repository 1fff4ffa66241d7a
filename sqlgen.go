package gdr

import (
	"fmt"
	"strings"
)

// =====================================
// SQL Rendering
// =====================================

// sqlRenderer renders query plans into dialect-specific SQL. Argument
// values travel exclusively through parameter markers; no value is
// ever interpolated into the text.
type sqlRenderer struct {
	reg     *Registry
	dialect Dialect
}

func newSQLRenderer(reg *Registry, dialect Dialect) *sqlRenderer {
	return &sqlRenderer{reg: reg, dialect: dialect}
}

// renderState accumulates the argument list and placeholder counter
// of one rendering pass.
type renderState struct {
	args []interface{}
	n    int
}

// placeholder appends a value and returns its dialect marker.
func (s *renderState) placeholder(d Dialect, value interface{}) string {
	s.n++
	s.args = append(s.args, value)
	return d.Placeholder(s.n)
}

// resolvedOrder pairs a resolved sort property with its direction.
type resolvedOrder struct {
	prop ResolvedProperty
	dir  OrderDirection
}

// Render renders the plan's main statement.
func (r *sqlRenderer) Render(plan *QueryPlan, binds *BoundArguments) (string, []interface{}, error) {
	if plan.Origin == OriginTemplated {
		return r.renderTemplated(plan, binds)
	}
	return r.renderDerived(plan, binds, plan.Projection, true)
}

// RenderCount renders the total-count probe of a page-shaped
// invocation: the same filter with the projection replaced by a count
// and ordering and pagination stripped.
func (r *sqlRenderer) RenderCount(plan *QueryPlan, binds *BoundArguments) (string, []interface{}, error) {
	if plan.Origin == OriginTemplated {
		core, args, err := r.renderTemplateCore(plan, binds)
		if err != nil {
			return "", nil, err
		}
		return "SELECT COUNT(*) FROM (" + core + ") AS " + r.dialect.QuoteIdent("count_query"), args, nil
	}
	return r.renderDerived(plan, binds, ProjectionCount, false)
}

// =====================================
// Derived Plans
// =====================================

func (r *sqlRenderer) renderDerived(plan *QueryPlan, binds *BoundArguments, projection Projection, withWindow bool) (string, []interface{}, error) {
	orders, err := r.effectiveOrders(plan, binds)
	if err != nil {
		return "", nil, err
	}
	if !withWindow {
		orders = nil
	}

	joins, err := r.collectJoins(plan, orders)
	if err != nil {
		return "", nil, err
	}

	if projection == ProjectionDelete {
		return r.renderDelete(plan, binds, joins)
	}

	state := &renderState{}
	base := r.dialect.QuoteIdent(plan.Entity.TableName)

	var sql strings.Builder
	switch projection {
	case ProjectionCount:
		sql.WriteString("SELECT COUNT(*) FROM " + base)
	case ProjectionExists:
		if r.dialect == DialectMsSQL {
			sql.WriteString("SELECT TOP 1 1 FROM " + base)
		} else {
			sql.WriteString("SELECT 1 FROM " + base)
		}
	default:
		top := ""
		if r.dialect == DialectMsSQL && plan.Shape == ShapeSingle && binds.Page == nil {
			top = "TOP 2 "
		}
		sql.WriteString("SELECT " + top + base + ".* FROM " + base)
	}

	if err := r.writeJoins(&sql, plan, joins); err != nil {
		return "", nil, err
	}
	if plan.Filter != nil {
		sql.WriteString(" WHERE ")
		if err := r.writeFilter(&sql, state, plan.Filter, binds); err != nil {
			return "", nil, err
		}
	}
	if projection == ProjectionEntity {
		r.writeOrders(&sql, orders)
		r.writeWindow(&sql, state, plan, binds, len(orders) > 0)
	}
	if projection == ProjectionExists && r.dialect != DialectMsSQL {
		sql.WriteString(" LIMIT 1")
	}
	return sql.String(), state.args, nil
}

// renderDelete renders a delete-by-filter statement. Predicates that
// traverse a relationship go through an identifier subquery, since
// DELETE itself cannot join portably; MySQL additionally requires the
// subquery to be wrapped so the target table is not referenced
// directly in the FROM clause.
func (r *sqlRenderer) renderDelete(plan *QueryPlan, binds *BoundArguments, joins []RelationDescriptor) (string, []interface{}, error) {
	state := &renderState{}
	base := r.dialect.QuoteIdent(plan.Entity.TableName)

	var sql strings.Builder
	sql.WriteString("DELETE FROM " + base)

	if len(joins) == 0 {
		if plan.Filter != nil {
			sql.WriteString(" WHERE ")
			if err := r.writeFilter(&sql, state, plan.Filter, binds); err != nil {
				return "", nil, err
			}
		}
		return sql.String(), state.args, nil
	}

	idCol := r.dialect.QuoteIdent(plan.Entity.Identifier().Column)
	var sub strings.Builder
	sub.WriteString("SELECT " + base + "." + idCol + " FROM " + base)
	if err := r.writeJoins(&sub, plan, joins); err != nil {
		return "", nil, err
	}
	if plan.Filter != nil {
		sub.WriteString(" WHERE ")
		if err := r.writeFilter(&sub, state, plan.Filter, binds); err != nil {
			return "", nil, err
		}
	}

	inner := sub.String()
	if r.dialect == DialectMySQL {
		inner = "SELECT " + idCol + " FROM (" + inner + ") AS " + r.dialect.QuoteIdent("delete_targets")
	}
	sql.WriteString(" WHERE " + base + "." + idCol + " IN (" + inner + ")")
	return sql.String(), state.args, nil
}

// effectiveOrders resolves the invocation's sort keys: the page
// request's sort overrides the plan's own ordering when present.
func (r *sqlRenderer) effectiveOrders(plan *QueryPlan, binds *BoundArguments) ([]resolvedOrder, error) {
	orders := plan.Orders
	if binds.Page != nil && len(binds.Page.Sort) > 0 {
		orders = binds.Page.Sort
	}
	resolved := make([]resolvedOrder, 0, len(orders))
	for _, o := range orders {
		prop, err := resolvePropertyPath(r.reg, plan.Entity, o.Property)
		if err != nil {
			return nil, err
		}
		dir := o.Direction
		if dir == "" {
			dir = OrderAsc
		}
		resolved = append(resolved, resolvedOrder{prop: prop, dir: dir})
	}
	return resolved, nil
}

// collectJoins gathers the relationships the filter and sort keys
// traverse, in first-use order, deduplicated by property.
func (r *sqlRenderer) collectJoins(plan *QueryPlan, orders []resolvedOrder) ([]RelationDescriptor, error) {
	seen := make(map[string]struct{})
	var joins []RelationDescriptor
	add := func(rel *RelationDescriptor) {
		if rel == nil {
			return
		}
		if _, ok := seen[rel.Property]; ok {
			return
		}
		seen[rel.Property] = struct{}{}
		joins = append(joins, *rel)
	}
	walkComparisons(plan.Filter, func(c *Comparison) {
		add(c.Property.Relation)
	})
	for i := range orders {
		add(orders[i].prop.Relation)
	}
	return joins, nil
}

func (r *sqlRenderer) writeJoins(sql *strings.Builder, plan *QueryPlan, joins []RelationDescriptor) error {
	base := r.dialect.QuoteIdent(plan.Entity.TableName)
	for _, rel := range joins {
		target, err := r.reg.Resolve(rel.Target)
		if err != nil {
			return err
		}
		alias := r.dialect.QuoteIdent(rel.Property)
		sql.WriteString(" LEFT JOIN " + r.dialect.QuoteIdent(target.TableName) + " AS " + alias + " ON ")
		switch rel.Kind {
		case RelationOneToMany:
			sql.WriteString(alias + "." + r.dialect.QuoteIdent(rel.ForeignKey) +
				" = " + base + "." + r.dialect.QuoteIdent(rel.References))
		default:
			sql.WriteString(base + "." + r.dialect.QuoteIdent(rel.ForeignKey) +
				" = " + alias + "." + r.dialect.QuoteIdent(rel.References))
		}
	}
	return nil
}

// column renders the qualified column of a resolved property: through
// the join alias for traversals, through the owning table otherwise.
func (r *sqlRenderer) column(prop ResolvedProperty) string {
	if prop.Relation != nil {
		return r.dialect.QuoteIdent(prop.Relation.Property) + "." + r.dialect.QuoteIdent(prop.Field.Column)
	}
	return r.dialect.QuoteIdent(prop.Owner.TableName) + "." + r.dialect.QuoteIdent(prop.Field.Column)
}

// writeFilter renders a filter node, preserving clause order and
// wrapping every group in parentheses so combinator precedence
// survives textually.
func (r *sqlRenderer) writeFilter(sql *strings.Builder, state *renderState, node FilterNode, binds *BoundArguments) error {
	switch n := node.(type) {
	case Comparison:
		return r.writeComparison(sql, state, n, binds)
	case AndGroup:
		return r.writeGroup(sql, state, n.Nodes, " AND ", binds)
	case OrGroup:
		return r.writeGroup(sql, state, n.Nodes, " OR ", binds)
	default:
		return NewErrorf(ErrorKindConfiguration, "unknown filter node %T", node)
	}
}

func (r *sqlRenderer) writeGroup(sql *strings.Builder, state *renderState, nodes []FilterNode, sep string, binds *BoundArguments) error {
	sql.WriteString("(")
	for i, child := range nodes {
		if i > 0 {
			sql.WriteString(sep)
		}
		if err := r.writeFilter(sql, state, child, binds); err != nil {
			return err
		}
	}
	sql.WriteString(")")
	return nil
}

func (r *sqlRenderer) writeComparison(sql *strings.Builder, state *renderState, c Comparison, binds *BoundArguments) error {
	col := r.column(c.Property)
	value := func(i int) interface{} { return binds.Values[c.Params[i]] }

	switch c.Comparator {
	case CompEquals:
		sql.WriteString(col + " = " + state.placeholder(r.dialect, value(0)))
	case CompNot:
		sql.WriteString(col + " <> " + state.placeholder(r.dialect, value(0)))
	case CompGreaterThan:
		sql.WriteString(col + " > " + state.placeholder(r.dialect, value(0)))
	case CompLessThan:
		sql.WriteString(col + " < " + state.placeholder(r.dialect, value(0)))
	case CompBetween:
		sql.WriteString(col + " BETWEEN " + state.placeholder(r.dialect, value(0)) +
			" AND " + state.placeholder(r.dialect, value(1)))
	case CompLike, CompStartingWith, CompEndingWith:
		sql.WriteString(col + " LIKE " + state.placeholder(r.dialect, likePattern(c.Comparator, value(0))))
	case CompIn:
		elems := expandIn(value(0))
		if len(elems) == 0 {
			// Empty membership is vacuously false.
			sql.WriteString("1 = 0")
			return nil
		}
		markers := make([]string, len(elems))
		for i, e := range elems {
			markers[i] = state.placeholder(r.dialect, e)
		}
		sql.WriteString(col + " IN (" + strings.Join(markers, ", ") + ")")
	case CompIsNull:
		sql.WriteString(col + " IS NULL")
	case CompIsNotNull:
		sql.WriteString(col + " IS NOT NULL")
	case CompTrue:
		sql.WriteString(col + " = " + r.dialect.BooleanLiteral(true))
	case CompFalse:
		sql.WriteString(col + " = " + r.dialect.BooleanLiteral(false))
	default:
		return NewErrorf(ErrorKindConfiguration, "unknown comparator %s", c.Comparator)
	}
	return nil
}

// likePattern decorates the argument of a pattern comparator.
// StartingWith and EndingWith anchor the caller's value; Like passes
// the pattern through as supplied.
func likePattern(comp Comparator, value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	switch comp {
	case CompStartingWith:
		return s + "%"
	case CompEndingWith:
		return "%" + s
	default:
		return value
	}
}

func (r *sqlRenderer) writeOrders(sql *strings.Builder, orders []resolvedOrder) {
	if len(orders) == 0 {
		return
	}
	sql.WriteString(" ORDER BY ")
	for i, o := range orders {
		if i > 0 {
			sql.WriteString(", ")
		}
		sql.WriteString(r.column(o.prop) + " " + string(o.dir))
	}
}

// writeWindow renders the page window and the single-shape row cap.
// SQL Server pages through OFFSET/FETCH, which requires an ORDER BY;
// the other dialects use parameterized LIMIT/OFFSET.
func (r *sqlRenderer) writeWindow(sql *strings.Builder, state *renderState, plan *QueryPlan, binds *BoundArguments, hasOrders bool) {
	page := binds.Page
	if page != nil && page.Limit > 0 {
		if r.dialect == DialectMsSQL {
			if !hasOrders {
				sql.WriteString(" ORDER BY (SELECT NULL)")
			}
			sql.WriteString(" OFFSET " + state.placeholder(r.dialect, page.Offset) + " ROWS")
			sql.WriteString(" FETCH NEXT " + state.placeholder(r.dialect, page.Limit) + " ROWS ONLY")
			return
		}
		sql.WriteString(" LIMIT " + state.placeholder(r.dialect, page.Limit))
		sql.WriteString(" OFFSET " + state.placeholder(r.dialect, page.Offset))
		return
	}
	if plan.Shape == ShapeSingle && r.dialect != DialectMsSQL {
		// Fetch up to two rows so a non-unique result is detectable
		// without draining the cursor.
		sql.WriteString(" LIMIT 2")
	}
}

// =====================================
// Templated Plans
// =====================================

func (r *sqlRenderer) renderTemplated(plan *QueryPlan, binds *BoundArguments) (string, []interface{}, error) {
	core, args, err := r.renderTemplateCore(plan, binds)
	if err != nil {
		return "", nil, err
	}

	if plan.Shape == ShapeExists {
		return "SELECT COUNT(*) FROM (" + core + ") AS " + r.dialect.QuoteIdent("exists_query"), args, nil
	}

	page := binds.Page
	if page != nil && page.Limit > 0 && plan.Projection == ProjectionEntity {
		state := &renderState{args: args, n: len(args)}
		var sql strings.Builder
		sql.WriteString(core)
		if r.dialect == DialectMsSQL {
			if !strings.Contains(strings.ToUpper(core), "ORDER BY") {
				sql.WriteString(" ORDER BY (SELECT NULL)")
			}
			sql.WriteString(" OFFSET " + state.placeholder(r.dialect, page.Offset) + " ROWS")
			sql.WriteString(" FETCH NEXT " + state.placeholder(r.dialect, page.Limit) + " ROWS ONLY")
		} else {
			sql.WriteString(" LIMIT " + state.placeholder(r.dialect, page.Limit))
			sql.WriteString(" OFFSET " + state.placeholder(r.dialect, page.Offset))
		}
		return sql.String(), state.args, nil
	}
	return core, args, nil
}

// renderTemplateCore renders the template text with dialect markers
// spliced at placeholder positions. Native templates pass through
// verbatim with their arguments in declaration order.
func (r *sqlRenderer) renderTemplateCore(plan *QueryPlan, binds *BoundArguments) (string, []interface{}, error) {
	tpl := plan.Template
	if tpl.Native {
		return tpl.Raw, append([]interface{}{}, binds.Values...), nil
	}

	state := &renderState{}
	var sql strings.Builder
	for i, frag := range tpl.Fragments {
		sql.WriteString(frag)
		if i >= len(tpl.Placeholders) {
			continue
		}
		ph := tpl.Placeholders[i]
		var value interface{}
		switch tpl.Style {
		case StyleNamed:
			value = binds.Named[ph.Name]
		default:
			if ph.Ordinal < 1 || ph.Ordinal > len(binds.Values) {
				return "", nil, NewErrorf(ErrorKindArityMismatch,
					"template placeholder ?%d has no bound argument", ph.Ordinal)
			}
			value = binds.Values[ph.Ordinal-1]
		}
		sql.WriteString(state.placeholder(r.dialect, value))
	}
	return sql.String(), state.args, nil
}
