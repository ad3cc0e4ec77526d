package metadata

import (
	"fmt"
	"strconv"
)

// FieldType defines the expected value format for a recognized metadata key.
type FieldType uint8

const (
	FieldTypeAny FieldType = iota
	FieldTypeString
	FieldTypeInt
	FieldTypeFloat
	FieldTypeBool
)

// String returns the string representation of the FieldType.
func (t FieldType) String() string {
	switch t {
	case FieldTypeAny:
		return "Any"
	case FieldTypeString:
		return "String"
	case FieldTypeInt:
		return "Int"
	case FieldTypeFloat:
		return "Float"
	case FieldTypeBool:
		return "Bool"
	default:
		return "Unknown"
	}
}

// Schema declares the expected format of recognized metadata keys.
// Keys not listed in the schema are not validated.
type Schema map[string]FieldType

// Validate checks the recognized keys of m against the schema.
// A nil schema accepts everything.
func (s Schema) Validate(m Metadata) error {
	if s == nil {
		return nil
	}
	for k, v := range m {
		expected, ok := s[k]
		if !ok {
			continue
		}
		if !checkValue(v, expected) {
			return fmt.Errorf("metadata: field %q value %q is not a valid %s", k, v, expected)
		}
	}
	return nil
}

func checkValue(v string, expected FieldType) bool {
	switch expected {
	case FieldTypeAny, FieldTypeString:
		return true
	case FieldTypeInt:
		_, err := strconv.ParseInt(v, 10, 64)
		return err == nil
	case FieldTypeFloat:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	case FieldTypeBool:
		_, err := strconv.ParseBool(v)
		return err == nil
	}
	return false
}
