package gdr

import (
	"reflect"
	"testing"
)

func renderSQL(t *testing.T, dialect Dialect, op Operation, args ...interface{}) (string, []interface{}) {
	t.Helper()
	reg, desc := newEmployeeRegistry(t)
	c, err := compileOperation(reg, desc, op)
	if err != nil {
		t.Fatalf("Expected %q to compile, got %v", op.Name, err)
	}
	bound, err := bindArguments(&c, args)
	if err != nil {
		t.Fatalf("Expected arguments to bind, got %v", err)
	}
	sql, values, err := newSQLRenderer(reg, dialect).Render(c.plan, bound)
	if err != nil {
		t.Fatalf("Expected render to succeed, got %v", err)
	}
	return sql, values
}

func TestRenderSimpleFind(t *testing.T) {
	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "findByLastName"}, "Lovelace")

	expected := `SELECT "employees".* FROM "employees" WHERE "employees"."last_name" = ?`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 1 || args[0] != "Lovelace" {
		t.Errorf("Expected args [Lovelace], got %v", args)
	}
}

func TestRenderConjunctionPostgres(t *testing.T) {
	sql, args := renderSQL(t, DialectPgSQL, Operation{Name: "getByFirstNameAndLastName"}, "Ada", "Lovelace")

	expected := `SELECT "employees".* FROM "employees" WHERE ("employees"."first_name" = $1 AND "employees"."last_name" = $2) LIMIT 2`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 2 {
		t.Errorf("Expected 2 args, got %v", args)
	}
}

func TestRenderSingleProbeMsSQL(t *testing.T) {
	sql, _ := renderSQL(t, DialectMsSQL, Operation{Name: "getByLastName"}, "Lovelace")

	expected := `SELECT TOP 2 [employees].* FROM [employees] WHERE [employees].[last_name] = @p1`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRenderDisjunction(t *testing.T) {
	sql, _ := renderSQL(t, DialectSQLite, Operation{Name: "findByFirstNameOrLastNameAndAge"}, "Ada", "Lovelace", 36)

	expected := `SELECT "employees".* FROM "employees" WHERE ("employees"."first_name" = ? OR ("employees"."last_name" = ? AND "employees"."age" = ?))`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRenderOrderBy(t *testing.T) {
	sql, _ := renderSQL(t, DialectSQLite, Operation{Name: "findByActiveTrueOrderByLastNameDescFirstNameAsc"})

	expected := `SELECT "employees".* FROM "employees" WHERE "employees"."active" = TRUE ORDER BY "employees"."last_name" DESC, "employees"."first_name" ASC`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRenderExists(t *testing.T) {
	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "existsByEmailIsNotNull"})

	expected := `SELECT 1 FROM "employees" WHERE "employees"."email" IS NOT NULL LIMIT 1`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 0 {
		t.Errorf("Expected no args, got %v", args)
	}

	sql, _ = renderSQL(t, DialectMsSQL, Operation{Name: "existsByLastName"}, "Lovelace")
	expected = `SELECT TOP 1 1 FROM [employees] WHERE [employees].[last_name] = @p1`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRenderCountAction(t *testing.T) {
	sql, _ := renderSQL(t, DialectSQLite, Operation{Name: "countByActiveTrue"})

	expected := `SELECT COUNT(*) FROM "employees" WHERE "employees"."active" = TRUE`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRenderDelete(t *testing.T) {
	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "deleteByLastName"}, "Lovelace")

	expected := `DELETE FROM "employees" WHERE "employees"."last_name" = ?`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 1 {
		t.Errorf("Expected 1 arg, got %v", args)
	}
}

func TestRenderTraversalJoin(t *testing.T) {
	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "findByDepartmentName"}, "Engineering")

	expected := `SELECT "employees".* FROM "employees" LEFT JOIN "departments" AS "department" ON "employees"."department_id" = "department"."id" WHERE "department"."name" = ?`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 1 || args[0] != "Engineering" {
		t.Errorf("Expected args [Engineering], got %v", args)
	}
}

func TestRenderDeleteWithTraversal(t *testing.T) {
	sql, _ := renderSQL(t, DialectSQLite, Operation{Name: "deleteByDepartmentName"}, "Engineering")

	expected := `DELETE FROM "employees" WHERE "employees"."id" IN (SELECT "employees"."id" FROM "employees" LEFT JOIN "departments" AS "department" ON "employees"."department_id" = "department"."id" WHERE "department"."name" = ?)`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRenderDeleteWithTraversalMySQL(t *testing.T) {
	sql, _ := renderSQL(t, DialectMySQL, Operation{Name: "deleteByDepartmentName"}, "Engineering")

	expected := "DELETE FROM `employees` WHERE `employees`.`id` IN (SELECT `id` FROM (SELECT `employees`.`id` FROM `employees` LEFT JOIN `departments` AS `department` ON `employees`.`department_id` = `department`.`id` WHERE `department`.`name` = ?) AS `delete_targets`)"
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRenderIn(t *testing.T) {
	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "findByLastNameIn"}, []string{"Lovelace", "Hopper"})

	expected := `SELECT "employees".* FROM "employees" WHERE "employees"."last_name" IN (?, ?)`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 2 || args[0] != "Lovelace" || args[1] != "Hopper" {
		t.Errorf("Expected the collection expanded into args, got %v", args)
	}
}

func TestRenderEmptyIn(t *testing.T) {
	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "findByLastNameIn"}, []string{})

	expected := `SELECT "employees".* FROM "employees" WHERE 1 = 0`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 0 {
		t.Errorf("Expected no args, got %v", args)
	}
}

func TestRenderBetween(t *testing.T) {
	sql, args := renderSQL(t, DialectPgSQL, Operation{Name: "findByAgeBetween"}, 30, 40)

	expected := `SELECT "employees".* FROM "employees" WHERE "employees"."age" BETWEEN $1 AND $2`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 2 || args[0] != 30 || args[1] != 40 {
		t.Errorf("Expected args [30 40], got %v", args)
	}
}

func TestRenderLikePatterns(t *testing.T) {
	_, args := renderSQL(t, DialectSQLite, Operation{Name: "findByFirstNameStartingWith"}, "Ad")
	if args[0] != "Ad%" {
		t.Errorf("Expected starting-with pattern 'Ad%%', got %v", args[0])
	}

	_, args = renderSQL(t, DialectSQLite, Operation{Name: "findByFirstNameEndingWith"}, "da")
	if args[0] != "%da" {
		t.Errorf("Expected ending-with pattern '%%da', got %v", args[0])
	}

	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "findByFirstNameLike"}, "%d%")
	expected := `SELECT "employees".* FROM "employees" WHERE "employees"."first_name" LIKE ?`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if args[0] != "%d%" {
		t.Errorf("Expected the like pattern passed through, got %v", args[0])
	}
}

func TestRenderPageWindow(t *testing.T) {
	sql, args := renderSQL(t, DialectSQLite, Operation{Name: "findByActiveTrue"}, PageOf(2, 10))

	expected := `SELECT "employees".* FROM "employees" WHERE "employees"."active" = TRUE LIMIT ? OFFSET ?`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 2 || args[0] != 10 || args[1] != 20 {
		t.Errorf("Expected args [10 20], got %v", args)
	}
}

func TestRenderPageWindowMsSQL(t *testing.T) {
	sql, args := renderSQL(t, DialectMsSQL, Operation{Name: "findByActiveTrue"}, PageOf(1, 5))

	expected := `SELECT [employees].* FROM [employees] WHERE [employees].[active] = 1 ORDER BY (SELECT NULL) OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 2 || args[0] != 5 || args[1] != 5 {
		t.Errorf("Expected args [5 5], got %v", args)
	}
}

func TestRenderPageSortOverride(t *testing.T) {
	req := OffsetLimit(0, 5).WithSort(Order{Property: "firstName", Direction: OrderAsc})
	sql, _ := renderSQL(t, DialectSQLite, Operation{Name: "findByActiveTrueOrderByLastNameDesc"}, req)

	expected := `SELECT "employees".* FROM "employees" WHERE "employees"."active" = TRUE ORDER BY "employees"."first_name" ASC LIMIT ? OFFSET ?`
	if sql != expected {
		t.Errorf("Expected the page sort to override the plan ordering, got %q", sql)
	}
}

func TestRenderTraversalOrder(t *testing.T) {
	req := OffsetLimit(0, 5).WithSort(Order{Property: "department.name", Direction: OrderDesc})
	sql, _ := renderSQL(t, DialectSQLite, Operation{Name: "findByActiveTrue"}, req)

	expected := `SELECT "employees".* FROM "employees" LEFT JOIN "departments" AS "department" ON "employees"."department_id" = "department"."id" WHERE "employees"."active" = TRUE ORDER BY "department"."name" DESC LIMIT ? OFFSET ?`
	if sql != expected {
		t.Errorf("Expected a join for the sort traversal, got %q", sql)
	}
}

func TestRenderCountProbe(t *testing.T) {
	reg, desc := newEmployeeRegistry(t)
	c, err := compileOperation(reg, desc, Operation{Name: "findByActiveTrue", Returns: ShapePage})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	bound, err := bindArguments(&c, []interface{}{PageOf(2, 10)})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	sql, args, err := newSQLRenderer(reg, DialectSQLite).RenderCount(c.plan, bound)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := `SELECT COUNT(*) FROM "employees" WHERE "employees"."active" = TRUE`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 0 {
		t.Errorf("Expected the count probe to drop the window args, got %v", args)
	}
}

func TestRenderTemplatedNamed(t *testing.T) {
	op := Operation{
		Name:   "findBefore",
		Query:  "SELECT * FROM employees WHERE hired_at < :cutoff",
		Params: []Param{{Name: "cutoff"}},
	}
	sql, args := renderSQL(t, DialectPgSQL, op, "2020-01-01")

	expected := `SELECT * FROM employees WHERE hired_at < $1`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 1 || args[0] != "2020-01-01" {
		t.Errorf("Expected args [2020-01-01], got %v", args)
	}
}

func TestRenderTemplatedOrdinalReuse(t *testing.T) {
	op := Operation{
		Name:  "findByEitherName",
		Query: "SELECT * FROM employees WHERE first_name = ?1 OR last_name = ?1",
	}
	sql, args := renderSQL(t, DialectPgSQL, op, "Ada")

	expected := `SELECT * FROM employees WHERE first_name = $1 OR last_name = $2`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 2 || args[0] != "Ada" || args[1] != "Ada" {
		t.Errorf("Expected the argument repeated per occurrence, got %v", args)
	}
}

func TestRenderTemplatedExistsWrap(t *testing.T) {
	op := Operation{
		Name:    "activeExists",
		Query:   "SELECT * FROM employees WHERE active = ?",
		Returns: ShapeExists,
	}
	sql, args := renderSQL(t, DialectSQLite, op, true)

	expected := `SELECT COUNT(*) FROM (SELECT * FROM employees WHERE active = ?) AS "exists_query"`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 1 {
		t.Errorf("Expected 1 arg, got %v", args)
	}
}

func TestRenderTemplatedPage(t *testing.T) {
	op := Operation{
		Name:  "allSorted",
		Query: "SELECT * FROM employees ORDER BY last_name",
	}
	sql, args := renderSQL(t, DialectSQLite, op, PageOf(1, 20))

	expected := `SELECT * FROM employees ORDER BY last_name LIMIT ? OFFSET ?`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 2 || args[0] != 20 || args[1] != 20 {
		t.Errorf("Expected args [20 20], got %v", args)
	}
}

func TestRenderTemplatedCountProbe(t *testing.T) {
	reg, desc := newEmployeeRegistry(t)
	c, err := compileOperation(reg, desc, Operation{
		Name:    "recent",
		Query:   "SELECT * FROM employees WHERE age < ?",
		Returns: ShapePage,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	bound, err := bindArguments(&c, []interface{}{30, PageOf(0, 10)})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	sql, args, err := newSQLRenderer(reg, DialectSQLite).RenderCount(c.plan, bound)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := `SELECT COUNT(*) FROM (SELECT * FROM employees WHERE age < ?) AS "count_query"`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
	if len(args) != 1 || args[0] != 30 {
		t.Errorf("Expected args [30], got %v", args)
	}
}

func TestRenderNativePassthrough(t *testing.T) {
	raw := "SELECT last_name, count(*) FROM employees GROUP BY last_name HAVING count(*) > ?"
	op := Operation{Name: "dupes", Query: raw, Native: true, Params: []Param{{Name: "min", Type: reflect.TypeOf(0)}}}
	sql, args := renderSQL(t, DialectPgSQL, op, 2)

	if sql != raw {
		t.Errorf("Expected the native text untouched, got %q", sql)
	}
	if len(args) != 1 || args[0] != 2 {
		t.Errorf("Expected args [2], got %v", args)
	}
}
