package provider

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

// record is one decoded element of a vendor response: logical selector to raw
// string value. JSON map keys are exposed under the reserved "$key" selector
// and bare scalars under "$value".
type record map[string]string

// field resolves a logical field name through the operation's selector table.
// When the mapping declares no selector, the logical name itself is the
// selector.
func (r record) field(fields map[string]string, logical string) string {
	selector := logical
	if fields != nil {
		if s, ok := fields[logical]; ok {
			selector = s
		}
	}
	return r[selector]
}

// decodeRecords parses the response body per the operation's declared decoding.
func decodeRecords(spec vendor.OperationSpec, body []byte) ([]record, error) {
	switch spec.Decoding {
	case vendor.DecodingKeyValue:
		return decodeKeyValue(spec, body), nil
	case vendor.DecodingCSV:
		return decodeCSV(spec, body)
	case vendor.DecodingJSON, "":
		return decodeJSON(spec, body)
	default:
		return nil, fmt.Errorf("unsupported decoding %q", spec.Decoding)
	}
}

func decodeJSON(spec vendor.OperationSpec, body []byte) ([]record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed json: %w", err)
	}

	node, err := walkPath(doc, spec.Root)
	if err != nil {
		return nil, err
	}

	switch v := node.(type) {
	case []interface{}:
		records := make([]record, 0, len(v))
		for _, el := range v {
			records = append(records, flatten(el, ""))
		}
		return records, nil
	case map[string]interface{}:
		if mapOfObjects(v) {
			records := make([]record, 0, len(v))
			for _, key := range sortedKeys(v) {
				rec := flatten(v[key], "")
				rec["$key"] = key
				records = append(records, rec)
			}
			return records, nil
		}
		return []record{flatten(v, "")}, nil
	default:
		rec := record{"$value": toString(v)}
		return []record{rec}, nil
	}
}

// walkPath descends a dotted path of object keys and array indexes.
func walkPath(doc interface{}, path string) (interface{}, error) {
	if path == "" {
		return doc, nil
	}
	node := doc
	for _, seg := range strings.Split(path, ".") {
		switch v := node.(type) {
		case map[string]interface{}:
			child, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("response path %q: missing key %q", path, seg)
			}
			node = child
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("response path %q: bad array index %q", path, seg)
			}
			node = v[idx]
		default:
			return nil, fmt.Errorf("response path %q: cannot descend into scalar at %q", path, seg)
		}
	}
	return node, nil
}

// flatten stringifies a JSON element into selector form: nested objects get
// dotted selectors, scalars land under "$value".
func flatten(el interface{}, prefix string) record {
	rec := record{}
	var visit func(node interface{}, key string)
	visit = func(node interface{}, key string) {
		switch v := node.(type) {
		case map[string]interface{}:
			for k, child := range v {
				next := k
				if key != "" {
					next = key + "." + k
				}
				visit(child, next)
			}
		case []interface{}:
			// Arrays inside an element are joined; SMS message lists use this.
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, toString(item))
			}
			rec[key] = strings.Join(parts, "\n")
		default:
			if key == "" {
				key = "$value"
			}
			rec[key] = toString(v)
		}
	}
	visit(el, prefix)
	return rec
}

func mapOfObjects(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		if _, ok := v.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Numeric keys sort numerically so vendor catalogs keyed by integer IDs
	// come back in a stable order.
	sort.Slice(keys, func(i, j int) bool {
		ai, aerr := strconv.Atoi(keys[i])
		bi, berr := strconv.Atoi(keys[j])
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return keys[i] < keys[j]
	})
	return keys
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}

// decodeKeyValue parses delimited text responses. Named pairs are split on the
// pair and key/value separators; the body's raw segments are also exposed
// positionally ("0", "1", ...) for vendors that answer with bare
// colon-delimited tuples.
func decodeKeyValue(spec vendor.OperationSpec, body []byte) []record {
	pairSep := spec.PairSep
	if pairSep == "" {
		pairSep = "&"
	}
	kvSep := spec.KVSep
	if kvSep == "" {
		kvSep = "="
	}

	text := strings.TrimSpace(string(body))
	rec := record{"$value": text}

	for i, seg := range strings.Split(text, kvSep) {
		rec[strconv.Itoa(i)] = seg
	}
	for _, pair := range strings.Split(text, pairSep) {
		if k, v, ok := strings.Cut(pair, kvSep); ok {
			rec[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return []record{rec}
}

func decodeCSV(spec vendor.OperationSpec, body []byte) ([]record, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.TrimLeadingSpace = true
	if spec.CSVComma != "" {
		reader.Comma = []rune(spec.CSVComma)[0]
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	records := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := record{}
		for i, col := range header {
			if i < len(row) {
				rec[strings.TrimSpace(col)] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
