// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package keyrange

var noPrefixEnd = []byte{0}

// PrefixEnd returns the smallest key greater than every key starting with prefix:
// the last byte below 0xff is incremented and the rest truncated.
// When no such byte exists the range runs to the end of the keyspace, encoded as "\x00".
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return noPrefixEnd
}

// Resolve returns the effective key and range end of a request.
// An explicit range end always wins. With prefix, an empty key selects the whole
// keyspace ("\x00", "\x00"); otherwise the range end is PrefixEnd(key).
func Resolve(key, rangeEnd string, withPrefix bool) ([]byte, []byte) {
	if rangeEnd != "" {
		return []byte(key), []byte(rangeEnd)
	}
	if !withPrefix {
		return []byte(key), nil
	}
	if key == "" {
		return []byte{0}, []byte{0}
	}
	return []byte(key), PrefixEnd([]byte(key))
}
