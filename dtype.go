package streamjoin

import "fmt"

// DType represents the data type of a column.
type DType uint8

const (
	Float64 DType = iota
	Float32
	Int64
	Int32
	Bool
	String
	// Categorical is a string-valued column type kept distinct from String
	// in schemas; its values are stored and hashed as plain strings.
	Categorical
	Null
)

// String returns the string representation of the DType.
func (d DType) String() string {
	switch d {
	case Float64:
		return "Float64"
	case Float32:
		return "Float32"
	case Int64:
		return "Int64"
	case Int32:
		return "Int32"
	case Bool:
		return "Bool"
	case String:
		return "String"
	case Categorical:
		return "Categorical"
	case Null:
		return "Null"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// IsNumeric returns true if the dtype is a numeric type.
func (d DType) IsNumeric() bool {
	switch d {
	case Float64, Float32, Int64, Int32:
		return true
	default:
		return false
	}
}

// Schema describes the ordered column names and types of a Frame.
type Schema struct {
	names  []string
	dtypes []DType
}

// NewSchema creates a new schema from column names and types.
func NewSchema(names []string, dtypes []DType) (*Schema, error) {
	if len(names) != len(dtypes) {
		return nil, errNewf("names and dtypes must have same length: %d != %d", len(names), len(dtypes))
	}
	return &Schema{
		names:  append([]string{}, names...),
		dtypes: append([]DType{}, dtypes...),
	}, nil
}

// Len returns the number of columns in the schema.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the column names.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s.names...)
}

// DTypes returns the column data types.
func (s *Schema) DTypes() []DType {
	if s == nil {
		return nil
	}
	return append([]DType{}, s.dtypes...)
}

// Contains reports whether name is present in the schema.
func (s *Schema) Contains(name string) bool {
	_, ok := s.GetIndex(name)
	return ok
}

// GetDType returns the dtype for a column name.
func (s *Schema) GetDType(name string) (DType, bool) {
	if s == nil {
		return Null, false
	}
	for i, n := range s.names {
		if n == name {
			return s.dtypes[i], true
		}
	}
	return Null, false
}

// GetIndex returns the index of a column name.
func (s *Schema) GetIndex(name string) (int, bool) {
	if s == nil {
		return -1, false
	}
	for i, n := range s.names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// String returns a string representation of the schema.
func (s *Schema) String() string {
	result := "Schema{"
	for i, name := range s.names {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%s: %s", name, s.dtypes[i])
	}
	result += "}"
	return result
}
