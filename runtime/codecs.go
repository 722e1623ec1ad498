// Copyright 2024 The pyrt Authors.
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

package pyrt

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"
)

// This is a minimal codec registry (SPEC_FULL.md's DOMAIN STACK section,
// grounded on RustPython's vm/src/codecs.rs CodecsRegistry): a process-wide,
// mutex-guarded name-to-implementation table str.encode/bytes.decode
// consult, rather than the single hard-coded encoding grumpy's str.go had.
// Actual codec *implementations* beyond utf-8/ascii/latin-1 are out of
// scope (spec.md §1 lists "codec implementations" among external
// collaborators); this registry is the seam a host or a future stdlib
// package would register more codecs through.

// encodeFunc converts a decoded string to bytes, applying the named error
// handler to any character the encoding can't represent.
type encodeFunc func(f *Frame, s, encoding, errors string) ([]byte, *BaseException)

// decodeFunc converts a byte slice to a decoded string, applying the named
// error handler to any byte sequence the encoding can't interpret.
type decodeFunc func(f *Frame, b []byte, encoding, errors string) (string, *BaseException)

type codec struct {
	encode encodeFunc
	decode decodeFunc
}

var (
	codecsMutex sync.RWMutex
	codecs      = map[string]codec{}
)

// RegisterCodec installs encode/decode functions for name (and any
// normalized alias spelling, e.g. "UTF-8"/"utf_8"/"utf8" all resolve to
// "utf8"). A host embedding this runtime can register additional codecs
// this way without this package needing to know about them.
func RegisterCodec(name string, encode encodeFunc, decode decodeFunc) {
	codecsMutex.Lock()
	codecs[normalizeEncoding(name)] = codec{encode: encode, decode: decode}
	codecsMutex.Unlock()
}

func lookupCodec(f *Frame, encoding string) (codec, *BaseException) {
	codecsMutex.RLock()
	c, ok := codecs[normalizeEncoding(encoding)]
	codecsMutex.RUnlock()
	if !ok {
		return codec{}, f.RaiseType(LookupErrorType, fmt.Sprintf("unknown encoding: %s", encoding))
	}
	return c, nil
}

// EncodeString converts s to bytes using the named codec (str.encode's
// entry point).
func EncodeString(f *Frame, s, encoding, errors string) ([]byte, *BaseException) {
	c, raised := lookupCodec(f, encoding)
	if raised != nil {
		return nil, raised
	}
	return c.encode(f, s, encoding, errors)
}

// DecodeBytes converts b to a string using the named codec (bytes.decode's
// entry point).
func DecodeBytes(f *Frame, b []byte, encoding, errors string) (string, *BaseException) {
	c, raised := lookupCodec(f, encoding)
	if raised != nil {
		return "", raised
	}
	return c.decode(f, b, encoding, errors)
}

func init() {
	RegisterCodec("utf8", utf8Encode, utf8Decode)
	RegisterCodec("ascii", asciiEncode, asciiDecode)
	RegisterCodec("latin1", latin1Encode, latin1Decode)
}

func utf8Encode(f *Frame, s, _, _ string) ([]byte, *BaseException) {
	// Every Go string is already valid-or-replacement-marked UTF-8; Str
	// never holds unpaired surrogates (spec.md's text model has no
	// separate surrogate-escape path), so this can never fail.
	return []byte(s), nil
}

func utf8Decode(f *Frame, b []byte, encoding, errors string) (string, *BaseException) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	var out []rune
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r != utf8.RuneError || size != 1 {
			out = append(out, r)
			i += size
			continue
		}
		switch errors {
		case EncodeIgnore:
		case EncodeReplace:
			out = append(out, unicode.ReplacementChar)
		case EncodeStrict:
			return "", raiseUnicodeDecodeError(f, encoding, string(b), i, i+1, "invalid start byte")
		default:
			return "", f.RaiseType(LookupErrorType, fmt.Sprintf("unknown error handler name '%s'", errors))
		}
		i++
	}
	return string(out), nil
}

func asciiEncode(f *Frame, s, encoding, errors string) ([]byte, *BaseException) {
	out := make([]byte, 0, len(s))
	for pos, r := range s {
		if r <= unicode.MaxASCII {
			out = append(out, byte(r))
			continue
		}
		switch errors {
		case EncodeIgnore:
		case EncodeReplace:
			out = append(out, '?')
		case EncodeStrict:
			return nil, raiseUnicodeEncodeError(f, encoding, s, pos, pos+1, "ordinal not in range(128)")
		default:
			return nil, f.RaiseType(LookupErrorType, fmt.Sprintf("unknown error handler name '%s'", errors))
		}
	}
	return out, nil
}

func asciiDecode(f *Frame, b []byte, encoding, errors string) (string, *BaseException) {
	var out []rune
	for i, c := range b {
		if c <= unicode.MaxASCII {
			out = append(out, rune(c))
			continue
		}
		switch errors {
		case EncodeIgnore:
		case EncodeReplace:
			out = append(out, unicode.ReplacementChar)
		case EncodeStrict:
			return "", raiseUnicodeDecodeError(f, encoding, string(b), i, i+1, "ordinal not in range(128)")
		default:
			return "", f.RaiseType(LookupErrorType, fmt.Sprintf("unknown error handler name '%s'", errors))
		}
	}
	return string(out), nil
}

// latin1 (ISO 8859-1) maps code points 0-255 directly onto bytes 0-255 and
// back. Decoding never fails, since every byte is a valid latin-1 code
// point; encoding a code point above 255 goes through the errors handler
// (strict raises UnicodeEncodeError).
func latin1Encode(f *Frame, s, encoding, errors string) ([]byte, *BaseException) {
	out := make([]byte, 0, len(s))
	for pos, r := range s {
		if r > 0xff {
			switch errors {
			case EncodeIgnore:
				continue
			case EncodeReplace:
				out = append(out, '?')
				continue
			case EncodeStrict:
				return nil, raiseUnicodeEncodeError(f, encoding, s, pos, pos+1, "ordinal not in range(256)")
			default:
				return nil, f.RaiseType(LookupErrorType, fmt.Sprintf("unknown error handler name '%s'", errors))
			}
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func latin1Decode(f *Frame, b []byte, _, _ string) (string, *BaseException) {
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = rune(c)
	}
	return string(out), nil
}
