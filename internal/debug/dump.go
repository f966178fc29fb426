// Package debug renders a snapshot of the registry's pp/aux/L tables as a
// human-readable table, the Go-native equivalent of the commented-out
// "print current pp" / "print current aux" block in
// original_source/rbe/rbe/algos.py.
package debug

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"rbe/internal/store"
)

// Dump writes a table of every row currently present in each of the named
// tables to w. Rows within a table are sorted by row id; a missing table
// (never written to) is simply omitted.
func Dump(w io.Writer, st store.Store, tables []string) error {
	t := tablewriter.NewTable(w)
	t.Header("table", "row", "kind", "value")

	for _, name := range tables {
		rows, err := st.Range(name, 0, 1<<40)
		if err != nil {
			return fmt.Errorf("debug: range %s: %w", name, err)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Row < rows[j].Row })
		for _, rv := range rows {
			t.Append(name, fmt.Sprintf("%d", rv.Row), kindName(rv.Value.Kind), valueString(rv.Value))
		}
	}
	return t.Render()
}

func kindName(k store.Kind) string {
	switch k {
	case store.KindInt:
		return "int"
	case store.KindBool:
		return "bool"
	case store.KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

func valueString(v store.Value) string {
	switch v.Kind {
	case store.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case store.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case store.KindBytes:
		if len(v.Bytes) <= 8 {
			return fmt.Sprintf("%x", v.Bytes)
		}
		return fmt.Sprintf("%x…(%d bytes)", v.Bytes[:8], len(v.Bytes))
	default:
		return "?"
	}
}

// BlockTables names every table a block k (efficient variant) can hold
// data in, levels 0..t-1, for use with Dump.
func BlockTables(t int) []string {
	out := make([]string, 0, 3*t+3)
	out = append(out, "keys", "pp_block_count", "pp_com_count")
	for level := 0; level < t; level++ {
		out = append(out, fmt.Sprintf("pp_%d", level), fmt.Sprintf("aux_%d", level), fmt.Sprintf("aux_reg_count_%d", level))
	}
	out = append(out, "L", "L_upd_num")
	return out
}
