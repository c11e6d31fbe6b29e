package entity

import (
	"fmt"
	"strings"
)

// Property flags default to this value.
const PropertyFalse = "FALSE"

// Property types.
const (
	PropertyTypeBoolean = "BOOLEAN"
	PropertyTypeInteger = "INTEGER"
	PropertyTypeFloat   = "FLOAT"
	PropertyTypeDouble  = "DOUBLE"
	PropertyTypeString  = "STRING"
)

// typeTranslations maps the declared column types of a sample table definition.
var typeTranslations = map[string]string{
	"boolean": PropertyTypeBoolean,
	"integer": PropertyTypeInteger,
	"int":     PropertyTypeInteger,
	"float":   PropertyTypeFloat,
	"double":  PropertyTypeDouble,
	"string":  PropertyTypeString,
}

// TranslatePropertyType returns the stored type of a declared column type. An empty
// declaration means STRING.
func TranslatePropertyType(declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return PropertyTypeString, nil
	}
	key := strings.ToLower(declared[strings.LastIndex(declared, ".")+1:])
	t, ok := typeTranslations[key]
	if !ok {
		return "", fmt.Errorf("unsupported property type %q", declared)
	}
	return t, nil
}

// SamplePropertyDefinition is one column of a sample table definition file.
type SamplePropertyDefinition struct {
	Name     string
	Type     string
	Position int
}

// SampleProperty describes one column of the samples table.
type SampleProperty struct {
	ID          string   `json:"prop"`
	ComDs       string   `json:"comDs"`
	ComPh       string   `json:"comPh"`
	ColumnName  string   `json:"dbCol"`
	Type        string   `json:"propType"`
	Searchable  string   `json:"searchable"`
	Displayable string   `json:"displayable"`
	Sort        *float64 `json:"sort,omitempty"`
	Meaning     string   `json:"meaning"`
}

// NewSampleProperty creates a property of the given stored type with every flag FALSE.
func NewSampleProperty(property, propertyType string) *SampleProperty {
	if propertyType == "" {
		propertyType = PropertyTypeString
	}
	return &SampleProperty{
		ID:          property,
		ComDs:       PropertyFalse,
		ComPh:       PropertyFalse,
		ColumnName:  property,
		Type:        propertyType,
		Searchable:  PropertyFalse,
		Displayable: PropertyFalse,
		Meaning:     property,
	}
}
