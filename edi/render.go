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

package edi

import (
	"bytes"
)

// Render serializes segments using the given delimiter set.
//
// Delimiter bytes occurring in data are escaped with the release
// character.  A UNA service string is emitted only when d.Explicit is
// set, so Render(Tokenize(x)) == x for canonical input.
func Render(segs []*Segment, d Delimiters) []byte {
	var w bytes.Buffer

	if d.Explicit {
		w.WriteString("UNA")
		w.WriteByte(d.Component)
		w.WriteByte(d.Element)
		w.WriteByte(d.Decimal)
		w.WriteByte(d.Release)
		w.WriteByte(' ')
		w.WriteByte(d.Segment)
	}

	for _, seg := range segs {
		w.WriteString(seg.Tag)
		for _, cs := range seg.Elements {
			w.WriteByte(d.Element)
			for j, c := range cs {
				if 0 < j {
					w.WriteByte(d.Component)
				}
				writeEscaped(&w, c, d)
			}
		}
		w.WriteByte(d.Segment)
	}

	return w.Bytes()
}

func writeEscaped(w *bytes.Buffer, s string, d Delimiters) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == d.Component || c == d.Element || c == d.Release || c == d.Segment {
			w.WriteByte(d.Release)
		}
		w.WriteByte(c)
	}
}
