package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
)

var canonicalJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Identifier derives the lock key of an invocation. With includeArgs the key is
// "<name>.args.<sha256 hex>" over the JSON array of positional arguments
// followed by the JSON array of [key, value] pairs sorted by key. Numbers are
// written in one canonical form, so 4, 4.0 and 4e0 share a key and integers
// keep every digit.
func Identifier(tc *task.Context, includeArgs bool) (string, error) {
	if !includeArgs {
		return tc.Name, nil
	}

	args := canonicalList(tc.Args)
	positional, err := canonicalJSON.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode args of %s: %w", tc.Name, err)
	}

	keys := make([]string, 0, len(tc.Kwargs))
	for k := range tc.Kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]any{k, canonicalValue(tc.Kwargs[k])})
	}
	keyword, err := canonicalJSON.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encode kwargs of %s: %w", tc.Name, err)
	}

	h := sha256.New()
	h.Write(positional)
	h.Write(keyword)
	return tc.Name + ".args." + hex.EncodeToString(h.Sum(nil)), nil
}

func canonicalList(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = canonicalValue(v)
	}
	return out
}

// canonicalValue rewrites decoded and native floating point numbers into
// canonical number text. Integers become their decimal digits, other values
// the shortest float64 form.
func canonicalValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		r, ok := new(big.Rat).SetString(string(v))
		if !ok {
			return v
		}
		return canonicalRat(r)
	case float64:
		return canonicalFloat(v)
	case float32:
		return canonicalFloat(float64(v))
	case []any:
		return canonicalList(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = canonicalValue(item)
		}
		return out
	default:
		return value
	}
}

func canonicalFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return canonicalRat(new(big.Rat).SetFloat64(f))
}

func canonicalRat(r *big.Rat) json.Number {
	if r.IsInt() {
		return json.Number(r.Num().String())
	}
	f, _ := r.Float64()
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}
