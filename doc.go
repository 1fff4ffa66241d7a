// Package gdr is a declarative repository toolkit: query operations
// are declared as structured method names or SQL templates on a
// repository, parsed and planned once at construction, and executed
// through pluggable datasource sessions.
//
// A derived operation encodes its whole query in its name:
//
//	repo, err := gdr.NewRepository[Employee](session, []gdr.Operation{
//		{Name: "findByFirstNameAndLastNameOrderByLastNameDesc"},
//		{Name: "countByDepartmentName"},
//		{Name: "existsByEmail"},
//	})
//	matches, err := repo.Find(ctx, "findByFirstNameAndLastNameOrderByLastNameDesc", "Ada", "Lovelace")
//
// A templated operation declares its text explicitly, with named or
// positional placeholders:
//
//	{Name: "seniorByTitle", Query: "SELECT * FROM employees WHERE title = :title AND age >= :minAge",
//		Params: []gdr.Param{{Name: "title"}, {Name: "minAge"}}}
//
// Operations return a single entity, a list, a page with a total
// count, a count, an existence flag, or the number of deleted rows,
// depending on their declared action and shape. All declaration
// mistakes (unparseable names, unknown properties, placeholder and
// arity inconsistencies) fail repository construction; call-time
// errors carry a kind that callers can branch on with errors.Is and
// the IsNotFound-style helpers.
//
// Adapter subpackages provide sessions for database/sql, bun, GORM,
// MongoDB and Redis backed stores.
package gdr
