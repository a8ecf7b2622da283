package fetchapi

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// EncodeQuery serializes params into a URL-encoded query string without the
// leading '?'. Slices become repeated `key[]=v` pairs and nested maps become
// `key[sub]=v`, matching what Rails-style APIs expect. Keys are sorted; nil
// values are skipped.
func EncodeQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(params))
	for _, key := range sortedKeys(params) {
		pairs = appendPairs(pairs, key, params[key])
	}
	return strings.Join(pairs, "&")
}

// AppendQuery appends the encoded params to path, joining with '&' when path
// already carries a query string. Empty params return path unchanged.
func AppendQuery(path string, params map[string]any) string {
	qs := EncodeQuery(params)
	if qs == "" {
		return path
	}
	if strings.Contains(path, "?") {
		if strings.HasSuffix(path, "?") || strings.HasSuffix(path, "&") {
			return path + qs
		}
		return path + "&" + qs
	}
	return path + "?" + qs
}

func appendPairs(pairs []string, key string, value any) []string {
	if value == nil {
		return pairs
	}
	switch v := value.(type) {
	case string:
		return append(pairs, encodeComponent(key)+"="+encodeComponent(v))
	case bool:
		return append(pairs, encodeComponent(key)+"="+strconv.FormatBool(v))
	case float64:
		return append(pairs, encodeComponent(key)+"="+strconv.FormatFloat(v, 'f', -1, 64))
	case float32:
		return append(pairs, encodeComponent(key)+"="+strconv.FormatFloat(float64(v), 'f', -1, 32))
	case fmt.Stringer:
		return append(pairs, encodeComponent(key)+"="+encodeComponent(v.String()))
	case map[string]any:
		for _, sub := range sortedKeys(v) {
			pairs = appendPairs(pairs, key+"["+sub+"]", v[sub])
		}
		return pairs
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			pairs = appendPairs(pairs, key+"[]", rv.Index(i).Interface())
		}
		return pairs
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return append(pairs, encodeComponent(key)+"="+strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return append(pairs, encodeComponent(key)+"="+strconv.FormatUint(rv.Uint(), 10))
	case reflect.Pointer:
		if rv.IsNil() {
			return pairs
		}
		return appendPairs(pairs, key, rv.Elem().Interface())
	}
	return append(pairs, encodeComponent(key)+"="+encodeComponent(fmt.Sprint(value)))
}

// encodeComponent escapes like encodeURIComponent: spaces become %20, not '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
