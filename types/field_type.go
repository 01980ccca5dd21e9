// Copyright 2025 Velora, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"strings"
)

// TypeID identifies the logical type of a column.
type TypeID byte

// Logical type identifiers.
const (
	TypeUnspecified TypeID = iota
	TypeBool
	TypeInt64
	TypeFloat64
	TypeString
	TypeBytes
	TypeTimestamp
	TypeStruct
	TypeList
	TypeMap
)

// VarElemLen marks a type whose elements have no fixed byte width.
const VarElemLen = -1

// StructField is a named member of a struct type.
type StructField struct {
	Name string
	Type *FieldType
}

// FieldType describes the logical type of one column. Nested types carry
// their element types: lists use Elem, maps use Key and Elem, structs use
// Fields.
type FieldType struct {
	ID     TypeID
	Elem   *FieldType
	Key    *FieldType
	Fields []StructField
}

// NewFieldType creates a FieldType for a scalar type id.
func NewFieldType(id TypeID) *FieldType {
	return &FieldType{ID: id}
}

// NewListType creates a list type with the given element type.
func NewListType(elem *FieldType) *FieldType {
	return &FieldType{ID: TypeList, Elem: elem}
}

// NewMapType creates a map type with the given key and value types.
func NewMapType(key, elem *FieldType) *FieldType {
	return &FieldType{ID: TypeMap, Key: key, Elem: elem}
}

// NewStructType creates a struct type with the given fields.
func NewStructType(fields ...StructField) *FieldType {
	return &FieldType{ID: TypeStruct, Fields: fields}
}

// FixedLen returns the byte width of one element of this type, or
// VarElemLen for variable-width types. Nested types are stored as opaque
// encoded payloads and are therefore variable-width.
func (ft *FieldType) FixedLen() int {
	switch ft.ID {
	case TypeBool:
		return 1
	case TypeInt64, TypeFloat64, TypeTimestamp:
		return 8
	default:
		return VarElemLen
	}
}

// Cacheable reports whether chunks of this type may be coalesced by the
// executor's chunk cache. Variable-length nested containers cannot be
// appended cheaply, so lists and maps are excluded; a struct is cacheable
// only if all of its fields are.
func (ft *FieldType) Cacheable() bool {
	switch ft.ID {
	case TypeList, TypeMap:
		return false
	case TypeStruct:
		for _, f := range ft.Fields {
			if !f.Type.Cacheable() {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Equal reports whether two field types describe the same logical type.
func (ft *FieldType) Equal(other *FieldType) bool {
	if ft == nil || other == nil {
		return ft == other
	}
	if ft.ID != other.ID {
		return false
	}
	switch ft.ID {
	case TypeList:
		return ft.Elem.Equal(other.Elem)
	case TypeMap:
		return ft.Key.Equal(other.Key) && ft.Elem.Equal(other.Elem)
	case TypeStruct:
		if len(ft.Fields) != len(other.Fields) {
			return false
		}
		for i := range ft.Fields {
			if ft.Fields[i].Name != other.Fields[i].Name ||
				!ft.Fields[i].Type.Equal(other.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String implements fmt.Stringer.
func (ft *FieldType) String() string {
	switch ft.ID {
	case TypeBool:
		return "bool"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeTimestamp:
		return "timestamp"
	case TypeList:
		return "list<" + ft.Elem.String() + ">"
	case TypeMap:
		return "map<" + ft.Key.String() + "," + ft.Elem.String() + ">"
	case TypeStruct:
		var sb strings.Builder
		sb.WriteString("struct<")
		for i, f := range ft.Fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(f.Name)
			sb.WriteByte(' ')
			sb.WriteString(f.Type.String())
		}
		sb.WriteByte('>')
		return sb.String()
	default:
		return "unspecified"
	}
}
