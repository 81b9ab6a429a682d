/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package edi implements the low-level EDIFACT wire model: segments,
// delimiters, the tokenizer, and the renderer.
package edi

// Delimiters is the active separator set for one interchange.
//
// The zero value is not useful; use DefaultDelimiters or the set
// announced by a UNA service string.
type Delimiters struct {
	// Component separates components within a composite element.
	Component byte

	// Element separates elements within a segment.
	Element byte

	// Decimal is the decimal mark.  It is never escaped.
	Decimal byte

	// Release escapes the next byte.
	Release byte

	// Segment terminates a segment.
	Segment byte

	// Explicit records whether this set came from a UNA service
	// string.  The renderer emits a UNA only when Explicit is
	// true, so that rendering reproduces what was tokenized.
	Explicit bool
}

// DefaultDelimiters is the standard EDIFACT separator set (UNA:+.? ').
var DefaultDelimiters = Delimiters{
	Component: ':',
	Element:   '+',
	Decimal:   '.',
	Release:   '?',
	Segment:   '\'',
}

// Segment is one wire unit: a tag and its elements, each element an
// ordered list of components.
//
// A Segment is created once by the tokenizer (or by reverse mapping)
// and never mutated afterwards.
type Segment struct {
	// Tag is the segment tag ("UNB", "NAD", ...).
	Tag string `json:"tag"`

	// Elements are the data elements following the tag, in wire
	// order.  A simple element is a one-component slice.
	Elements [][]string `json:"elements,omitempty"`
}

// Component returns the component at the given element/component
// indexes, or "" if that position does not exist.
func (s *Segment) Component(elem, comp int) string {
	if elem < 0 || len(s.Elements) <= elem {
		return ""
	}
	cs := s.Elements[elem]
	if comp < 0 || len(cs) <= comp {
		return ""
	}
	return cs[comp]
}

// Copy makes a deep copy of the Segment.
func (s *Segment) Copy() *Segment {
	es := make([][]string, len(s.Elements))
	for i, cs := range s.Elements {
		ncs := make([]string, len(cs))
		copy(ncs, cs)
		es[i] = ncs
	}
	return &Segment{
		Tag:      s.Tag,
		Elements: es,
	}
}
