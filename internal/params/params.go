// Copyright 2026 The OpenTrusty Authors
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

// Package params resolves untrusted query parameters into a hash request.
package params

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Recognized query keys
const (
	KeyPassword = "password"
	KeyCPU      = "cpu"
	KeyMemory   = "mem"
	KeySleep    = "sleep"
)

// Defaults applied to keys absent from the query
const (
	DefaultPassword  = "boson42"
	DefaultTimeCost  = uint32(5)
	DefaultMemoryKiB = uint32(1000)

	// Parallelism and KeyLength are not configurable from a request.
	Parallelism = uint8(1)
	KeyLength   = uint32(32)
)

// Pair is a single decoded query-string key/value pair.
type Pair struct {
	Key   string
	Value string
}

// HashRequest is the resolved, validated input of one hash computation.
type HashRequest struct {
	Password    string
	TimeCost    uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLength   uint32

	// Delay is the simulated backend latency in milliseconds; nil means none.
	Delay *uint64
}

// Default returns the request used when no parameters are supplied.
func Default() HashRequest {
	return HashRequest{
		Password:    DefaultPassword,
		TimeCost:    DefaultTimeCost,
		MemoryKiB:   DefaultMemoryKiB,
		Parallelism: Parallelism,
		KeyLength:   KeyLength,
	}
}

// HasDelay reports whether the request asks for a non-zero delay.
func (r HashRequest) HasDelay() bool {
	return r.Delay != nil && *r.Delay > 0
}

// DelayMillis returns the requested delay, or zero when absent.
func (r HashRequest) DelayMillis() uint64 {
	if r.Delay == nil {
		return 0
	}
	return *r.Delay
}

// Resolve folds pairs left to right over the defaults. A later pair for the
// same key overwrites an earlier one and unknown keys are ignored. The first
// malformed numeric value aborts resolution.
func Resolve(pairs []Pair) (HashRequest, error) {
	req := Default()

	for _, p := range pairs {
		switch p.Key {
		case KeyPassword:
			req.Password = p.Value
		case KeyCPU:
			n, err := strconv.ParseUint(p.Value, 10, 32)
			if err != nil {
				return HashRequest{}, &ParseError{Key: p.Key, Value: p.Value, Kind: ErrInvalidIterationCount}
			}
			req.TimeCost = uint32(n)
		case KeyMemory:
			n, err := strconv.ParseUint(p.Value, 10, 32)
			if err != nil {
				return HashRequest{}, &ParseError{Key: p.Key, Value: p.Value, Kind: ErrInvalidMemorySize}
			}
			req.MemoryKiB = uint32(n)
		case KeySleep:
			n, err := strconv.ParseUint(p.Value, 10, 64)
			if err != nil {
				return HashRequest{}, &ParseError{Key: p.Key, Value: p.Value, Kind: ErrInvalidSleepDuration}
			}
			req.Delay = &n
		}
	}

	return req, nil
}

// ResolveQuery is ParseQuery followed by Resolve.
func ResolveQuery(rawQuery string) (HashRequest, error) {
	return Resolve(ParseQuery(rawQuery))
}

// ParseQuery splits a raw query string into ordered pairs, keeping duplicates.
// Decoding is lossy: '+' becomes a space, each valid %XX escape is decoded on
// its own, a malformed escape is kept as literal text, and bytes that do not
// form valid UTF-8 become U+FFFD.
func ParseQuery(rawQuery string) []Pair {
	var pairs []Pair
	for _, segment := range strings.Split(rawQuery, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		pairs = append(pairs, Pair{Key: unescape(key), Value: unescape(value)})
	}
	return pairs
}

func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return toValidUTF8(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return toValidUTF8(b.String())
}

// toValidUTF8 replaces every byte that is not part of a valid UTF-8 sequence
// with U+FFFD.
func toValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return string([]rune(s))
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
