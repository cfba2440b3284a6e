package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Group is one distinct key of a GroupBy and the rows that carry it.
type Group struct {
	Key  []cty.Value
	Rows []int
}

// ID returns the canonical string form of the group key.
func (g Group) ID() string {
	return KeyID(g.Key)
}

// GroupBy partitions the rows by the given key columns. Groups are returned
// in order of first appearance. With no key columns every row falls into a
// single group with an empty key.
func (t *Table) GroupBy(keys []string) ([]Group, error) {
	keyCols := make([][]cty.Value, len(keys))
	for i, k := range keys {
		col, ok := t.cols[k]
		if !ok {
			return nil, fmt.Errorf("group-by column %q not found", k)
		}
		keyCols[i] = col
	}

	var groups []Group
	index := make(map[string]int)
	for r := 0; r < t.rows; r++ {
		key := make([]cty.Value, len(keys))
		for i := range keys {
			key[i] = keyCols[i][r]
		}
		id := KeyID(key)
		gi, ok := index[id]
		if !ok {
			gi = len(groups)
			index[id] = gi
			groups = append(groups, Group{Key: key})
		}
		groups[gi].Rows = append(groups[gi].Rows, r)
	}
	return groups, nil
}

// KeyID encodes a composite key so that equal keys map to equal strings and
// distinct keys never collide. Each part carries its length.
func KeyID(key []cty.Value) string {
	var b strings.Builder
	for _, v := range key {
		part := keyPart(v)
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func keyPart(v cty.Value) string {
	switch {
	case v.IsNull():
		return "\x00"
	case !v.IsKnown():
		return "\x01"
	case v.Type() == cty.String:
		return "s:" + v.AsString()
	case v.Type() == cty.Number:
		return "n:" + v.AsBigFloat().Text('g', -1)
	case v.Type() == cty.Bool:
		if v.True() {
			return "b:1"
		}
		return "b:0"
	default:
		return v.GoString()
	}
}
