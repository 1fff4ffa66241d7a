package gdr

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// =====================================
// Entity Metadata
// =====================================

// EntityDescriptor contains static metadata about a registered record
// type: its fields, identifier and relationships. Descriptors are
// built once at registration time and are immutable thereafter.
type EntityDescriptor struct {
	// Name is the record type's name, e.g. "Employee"
	Name string

	// TableName is the backing table or collection name
	TableName string

	// Fields lists the column-mapped fields in declaration order
	Fields []FieldDescriptor

	// Relations lists the relationship fields
	Relations []RelationDescriptor

	// GoType is the underlying struct type
	GoType reflect.Type

	idIndex    int
	byProperty map[string]int
	byColumn   map[string]int
	relByProp  map[string]int
}

// FieldDescriptor contains metadata about a single column-mapped field
type FieldDescriptor struct {
	// Name is the Go field name, e.g. "FirstName"
	Name string

	// Property is the field's property name as used in derived
	// operation names and templates, e.g. "firstName"
	Property string

	// Column is the backing column name, e.g. "first_name"
	Column string

	// Type is the declared Go type
	Type reflect.Type

	// IsIdentifier marks the entity's identifier field
	IsIdentifier bool

	// IsNullable marks pointer and byte-slice fields
	IsNullable bool

	// Index is the field's index sequence for reflect access
	Index []int
}

// RelationDescriptor contains metadata about a relationship field
type RelationDescriptor struct {
	// Name is the Go field name, e.g. "Department"
	Name string

	// Property is the relationship's property name, e.g. "department"
	Property string

	// Kind is the relationship cardinality
	Kind RelationType

	// Target is the related entity's type name
	Target string

	// ForeignKey is the join column. For to-one relations it lives on
	// the owning table; for to-many relations it lives on the target.
	ForeignKey string

	// References is the joined column on the other side. Empty means
	// the target's identifier column.
	References string

	// Index is the field's index sequence for reflect access
	Index []int
}

// TableNamer can be implemented by a record type to override the
// derived table name.
type TableNamer interface {
	TableName() string
}

// Identifier returns the descriptor of the identifier field.
func (d *EntityDescriptor) Identifier() FieldDescriptor {
	return d.Fields[d.idIndex]
}

// FieldByProperty looks up a field by property name, case-insensitively.
func (d *EntityDescriptor) FieldByProperty(property string) (FieldDescriptor, bool) {
	i, ok := d.byProperty[strings.ToLower(property)]
	if !ok {
		return FieldDescriptor{}, false
	}
	return d.Fields[i], true
}

// FieldByColumn looks up a field by column name, case-insensitively.
func (d *EntityDescriptor) FieldByColumn(column string) (FieldDescriptor, bool) {
	i, ok := d.byColumn[strings.ToLower(column)]
	if !ok {
		return FieldDescriptor{}, false
	}
	return d.Fields[i], true
}

// RelationByProperty looks up a relationship by property name,
// case-insensitively.
func (d *EntityDescriptor) RelationByProperty(property string) (RelationDescriptor, bool) {
	i, ok := d.relByProp[strings.ToLower(property)]
	if !ok {
		return RelationDescriptor{}, false
	}
	return d.Relations[i], true
}

// String returns a short human-readable description of the descriptor.
func (d *EntityDescriptor) String() string {
	return fmt.Sprintf("%s -> %s (%d fields, %d relations)",
		d.Name, d.TableName, len(d.Fields), len(d.Relations))
}

// equal reports whether two descriptors describe the identical
// mapping. Re-registration of an equal descriptor is a no-op.
func (d *EntityDescriptor) equal(other *EntityDescriptor) bool {
	if d.Name != other.Name || d.TableName != other.TableName ||
		len(d.Fields) != len(other.Fields) || len(d.Relations) != len(other.Relations) {
		return false
	}
	for i := range d.Fields {
		a, b := d.Fields[i], other.Fields[i]
		if a.Name != b.Name || a.Column != b.Column || a.Type != b.Type ||
			a.IsIdentifier != b.IsIdentifier || a.IsNullable != b.IsNullable {
			return false
		}
	}
	for i := range d.Relations {
		a, b := d.Relations[i], other.Relations[i]
		if a.Name != b.Name || a.Kind != b.Kind || a.Target != b.Target ||
			a.ForeignKey != b.ForeignKey || a.References != b.References {
			return false
		}
	}
	return true
}

var timeType = reflect.TypeOf(time.Time{})

// describeEntity inspects a record struct type and builds its
// descriptor. Column mapping comes from `db` struct tags
// (`db:"column"`, `db:"column,pk"`, `db:"-"`), falling back to the
// snake_cased field name; relationships come from struct-typed
// fields, with cardinality and join columns overridable through the
// `rel` tag (`rel:"one_to_one,fk=manager_id,ref=id"`).
func describeEntity(t reflect.Type) (*EntityDescriptor, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, NewErrorf(ErrorKindConfiguration, "entity type %s is not a struct", t)
	}

	desc := &EntityDescriptor{
		Name:       t.Name(),
		TableName:  deriveTableName(t),
		GoType:     t,
		idIndex:    -1,
		byProperty: make(map[string]int),
		byColumn:   make(map[string]int),
		relByProp:  make(map[string]int),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		dbTag := field.Tag.Get("db")
		if dbTag == "-" {
			continue
		}
		column, isPK := parseDBTag(dbTag)
		if column == "" {
			column = toSnakeCase(field.Name)
		}

		if isRelationField(field.Type) {
			rel, err := describeRelation(t, field)
			if err != nil {
				return nil, err
			}
			desc.relByProp[strings.ToLower(rel.Property)] = len(desc.Relations)
			desc.Relations = append(desc.Relations, rel)
			continue
		}

		if !isColumnType(field.Type) {
			return nil, NewErrorf(ErrorKindUnsupportedFieldType,
				"field %s.%s has type %s which has no column mapping",
				t.Name(), field.Name, field.Type)
		}

		fd := FieldDescriptor{
			Name:         field.Name,
			Property:     toLowerCamel(field.Name),
			Column:       column,
			Type:         field.Type,
			IsIdentifier: isPK || (dbTag == "" && isDefaultIdentifier(field.Name)),
			IsNullable:   isNullableType(field.Type),
			Index:        field.Index,
		}
		if fd.IsIdentifier {
			if desc.idIndex >= 0 {
				return nil, NewErrorf(ErrorKindAmbiguousIdentifier,
					"entity %s declares more than one identifier field (%s and %s)",
					t.Name(), desc.Fields[desc.idIndex].Name, field.Name)
			}
			desc.idIndex = len(desc.Fields)
		}
		desc.byProperty[strings.ToLower(fd.Property)] = len(desc.Fields)
		desc.byColumn[strings.ToLower(fd.Column)] = len(desc.Fields)
		desc.Fields = append(desc.Fields, fd)
	}

	if desc.idIndex < 0 {
		return nil, NewErrorf(ErrorKindAmbiguousIdentifier,
			"entity %s declares no identifier field", t.Name())
	}
	return desc, nil
}

// describeRelation builds the descriptor for a relationship field.
func describeRelation(owner reflect.Type, field reflect.StructField) (RelationDescriptor, error) {
	target := field.Type
	kind := RelationManyToOne
	if target.Kind() == reflect.Slice {
		target = target.Elem()
		kind = RelationOneToMany
	}
	if target.Kind() == reflect.Ptr {
		target = target.Elem()
	}

	rel := RelationDescriptor{
		Name:     field.Name,
		Property: toLowerCamel(field.Name),
		Kind:     kind,
		Target:   target.Name(),
		Index:    field.Index,
	}

	for _, part := range strings.Split(field.Tag.Get("rel"), ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "fk="):
			rel.ForeignKey = strings.TrimPrefix(part, "fk=")
		case strings.HasPrefix(part, "ref="):
			rel.References = strings.TrimPrefix(part, "ref=")
		default:
			switch RelationType(part) {
			case RelationOneToOne, RelationOneToMany, RelationManyToOne, RelationManyToMany:
				rel.Kind = RelationType(part)
			default:
				return rel, NewErrorf(ErrorKindConfiguration,
					"field %s.%s has unknown relation kind %q", owner.Name(), field.Name, part)
			}
		}
	}

	if rel.ForeignKey == "" {
		switch rel.Kind {
		case RelationOneToMany, RelationManyToMany:
			rel.ForeignKey = toSnakeCase(owner.Name()) + "_id"
		default:
			rel.ForeignKey = toSnakeCase(field.Name) + "_id"
		}
	}
	return rel, nil
}

// isColumnType reports whether a type maps directly onto a column.
func isColumnType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8 // []byte
	}
	return false
}

// isRelationField reports whether a field type denotes a relationship:
// a struct, pointer to struct, or slice of (pointers to) structs,
// excluding the scalar struct types that map to columns.
func isRelationField(t reflect.Type) bool {
	if t.Kind() == reflect.Slice {
		elem := t.Elem()
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		return elem.Kind() == reflect.Struct && elem != timeType
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

func isNullableType(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr ||
		(t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8)
}

func isDefaultIdentifier(name string) bool {
	return name == "ID" || name == "Id"
}

// parseDBTag splits a `db` tag into its column name and pk flag.
func parseDBTag(tag string) (column string, pk bool) {
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	column = parts[0]
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "pk" {
			pk = true
		}
	}
	return column, pk
}

// deriveTableName returns the table name for a record type: the
// TableName() override when implemented, otherwise the pluralized
// snake_case type name.
func deriveTableName(t reflect.Type) string {
	if v, ok := reflect.New(t).Elem().Interface().(TableNamer); ok {
		return v.TableName()
	}
	if v, ok := reflect.New(t).Interface().(TableNamer); ok {
		return v.TableName()
	}
	return pluralize(toSnakeCase(t.Name()))
}

// toSnakeCase converts CamelCase to snake_case. A run of capitals
// counts as one word, so "UserID" becomes "user_id" and "ID" stays "id".
func toSnakeCase(str string) string {
	var result strings.Builder
	runes := []rune(str)
	for i, r := range runes {
		if i > 0 && isUpperRune(r) &&
			(!isUpperRune(runes[i-1]) || (i+1 < len(runes) && !isUpperRune(runes[i+1]))) {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func isUpperRune(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// toLowerCamel lowercases the leading run of upper-case letters,
// turning "FirstName" into "firstName" and "ID" into "id".
func toLowerCamel(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	upper := 0
	for upper < len(runes) && runes[upper] >= 'A' && runes[upper] <= 'Z' {
		upper++
	}
	if upper == 0 {
		return name
	}
	// Keep the final capital when it starts the next word, so that
	// "DBName" becomes "dbName" rather than "dbname".
	if upper > 1 && upper < len(runes) {
		upper--
	}
	for i := 0; i < upper; i++ {
		runes[i] = runes[i] - 'A' + 'a'
	}
	return string(runes)
}

// pluralize applies the handful of English rules table-name
// derivation needs.
func pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"),
		strings.HasSuffix(name, "z"), strings.HasSuffix(name, "ch"),
		strings.HasSuffix(name, "sh"):
		return name + "es"
	case strings.HasSuffix(name, "y") && len(name) > 1 && !isVowel(name[len(name)-2]):
		return name[:len(name)-1] + "ies"
	default:
		return name + "s"
	}
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
