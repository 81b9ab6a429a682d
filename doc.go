// Package edifactmapper provides schema-driven conversion between
// EDIFACT interchanges and BO4E business objects.
//
// The core code is in packages 'edi', 'schema', 'assemble', and
// 'mapping', and some command-line tools are in `cmd`.
package edifactmapper
