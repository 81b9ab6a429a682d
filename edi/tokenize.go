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
	"errors"
	"fmt"
)

var (
	// DanglingRelease is returned when input ends immediately
	// after a release character.
	DanglingRelease = errors.New("release character at end of input")

	// UnterminatedSegment is returned when input ends inside a
	// segment.
	UnterminatedSegment = errors.New("input ends inside a segment")
)

// TokenizeError reports where tokenization went wrong.
type TokenizeError struct {
	Offset int
	Err    error
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("tokenize error at offset %d: %s", e.Offset, e.Err)
}

func (e *TokenizeError) Unwrap() error {
	return e.Err
}

// Tokenize turns raw interchange bytes into an ordered segment list.
//
// A leading UNA service string, if present, announces the delimiter
// set; otherwise DefaultDelimiters applies.  The release character
// makes the following byte literal.  Whitespace (CR, LF) between
// segments is skipped; whitespace inside a segment is data.
func Tokenize(bs []byte) ([]*Segment, Delimiters, error) {
	d := DefaultDelimiters

	i := 0
	if 9 <= len(bs) && bs[0] == 'U' && bs[1] == 'N' && bs[2] == 'A' {
		d = Delimiters{
			Component: bs[3],
			Element:   bs[4],
			Decimal:   bs[5],
			Release:   bs[6],
			Segment:   bs[8],
			Explicit:  true,
		}
		i = 9
	}

	var (
		segs    = make([]*Segment, 0, 32)
		elems   [][]string
		comps   []string
		buf     = make([]byte, 0, 64)
		between = true
	)

	endComponent := func() {
		comps = append(comps, string(buf))
		buf = buf[:0]
	}
	endElement := func() {
		endComponent()
		elems = append(elems, comps)
		comps = nil
	}

	for ; i < len(bs); i++ {
		c := bs[i]

		if between {
			if c == '\n' || c == '\r' || c == ' ' || c == '\t' {
				continue
			}
			between = false
		}

		switch c {
		case d.Release:
			if len(bs) <= i+1 {
				return nil, d, &TokenizeError{i, DanglingRelease}
			}
			i++
			buf = append(buf, bs[i])
		case d.Segment:
			endElement()
			seg := &Segment{Tag: elems[0][0]}
			if 1 < len(elems) {
				seg.Elements = elems[1:]
			}
			segs = append(segs, seg)
			elems = nil
			between = true
		case d.Element:
			endElement()
		case d.Component:
			endComponent()
		default:
			buf = append(buf, c)
		}
	}

	if !between {
		return nil, d, &TokenizeError{len(bs), UnterminatedSegment}
	}

	return segs, d, nil
}
