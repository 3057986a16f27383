// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package library_test

import (
	"strings"
	"testing"

	"carvel.dev/tektonc/pkg/library"
	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/starlark"
	"github.com/stretchr/testify/require"
)

func TestDNS(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"A B!!c", "a-b-c"},
		{"--Llama_3.1--", "llama-3-1"},
		{"already-valid-123", "already-valid-123"},
		{"", ""},
		{"!!!", ""},
	}
	for _, test := range tests {
		require.Equal(t, test.out, library.DNS(test.in), test.in)
	}
}

func TestDNSLongInput(t *testing.T) {
	in := strings.Repeat("a", 70)
	out := library.DNS(in)

	require.Len(t, out, 63)
	require.Equal(t, strings.Repeat("a", 54)+"-", out[:55])
	require.Regexp(t, "^[0-9a-f]{8}$", out[55:])
	require.Equal(t, out, library.DNS(in))
	require.NotEqual(t, out, library.DNS(strings.Repeat("a", 71)))
}

func TestSlug(t *testing.T) {
	require.Equal(t, "Llama-3.1_8B-instruct", library.Slug("Llama 3.1_8B / instruct"))
	require.Equal(t, "a-b", library.Slug("a:::b"))
	require.Equal(t, strings.Repeat("x", 100), library.Slug(strings.Repeat("x", 100)))
}

func TestFilters(t *testing.T) {
	m := orderedmap.NewMap()
	m.Set("name", "x")
	m.Set("ports", []interface{}{80, 443})
	m.Set("ratio", 0.5)
	m.Set("on", true)
	m.Set("off", nil)
	m.Set("uni", "ü")

	tests := []struct {
		filter   string
		args     starlark.Tuple
		kwargs   []starlark.Tuple
		expected string
	}{
		{"dns", starlark.Tuple{starlark.String("My Task")}, nil, `"my-task"`},
		{"slug", starlark.Tuple{starlark.String("a b")}, nil, `"a-b"`},
		{"tojson", starlark.Tuple{core.NewGoValue(m).AsStarlarkValue()}, nil,
			`"{\"name\": \"x\", \"ports\": [80, 443], \"ratio\": 0.5, \"on\": true, \"off\": null, \"uni\": \"\\u00fc\"}"`},
		{"tojson", starlark.Tuple{starlark.NewList([]starlark.Value{starlark.MakeInt(1)})},
			[]starlark.Tuple{{starlark.String("indent"), starlark.MakeInt(2)}}, `"[\n  1\n]"`},
		{"lower", starlark.Tuple{starlark.String("AbC")}, nil, `"abc"`},
		{"upper", starlark.Tuple{starlark.String("AbC")}, nil, `"ABC"`},
		{"trim", starlark.Tuple{starlark.String("  a ")}, nil, `"a"`},
		{"string", starlark.Tuple{starlark.MakeInt(3)}, nil, `"3"`},
		{"replace", starlark.Tuple{starlark.String("a_b_c"), starlark.String("_"), starlark.String("-")}, nil, `"a-b-c"`},
		{"join", starlark.Tuple{starlark.NewList([]starlark.Value{starlark.String("a"), starlark.MakeInt(1)}), starlark.String(",")}, nil, `"a,1"`},
		{"length", starlark.Tuple{starlark.NewList([]starlark.Value{starlark.None, starlark.None})}, nil, `2`},
		{"int", starlark.Tuple{starlark.String("42")}, nil, `42`},
		{"int", starlark.Tuple{starlark.String("4.7")}, nil, `4`},
		{"int", starlark.Tuple{starlark.String("nope"), starlark.MakeInt(-1)}, nil, `-1`},
		{"first", starlark.Tuple{starlark.NewList([]starlark.Value{starlark.String("a"), starlark.String("b")})}, nil, `"a"`},
		{"last", starlark.Tuple{starlark.NewList([]starlark.Value{starlark.String("a"), starlark.String("b")})}, nil, `"b"`},
	}

	filters := library.Filters()
	for _, test := range tests {
		fn, found := filters[test.filter]
		require.True(t, found, test.filter)

		builtin := starlark.NewBuiltin(test.filter, core.ErrWrapper(fn))
		result, err := starlark.Call(&starlark.Thread{}, builtin, test.args, test.kwargs)
		require.NoError(t, err, test.filter)
		require.Equal(t, test.expected, result.String(), test.filter)
	}
}

func TestFilterArgErrors(t *testing.T) {
	builtin := starlark.NewBuiltin("dns", core.ErrWrapper(library.Filters()["dns"]))
	_, err := starlark.Call(&starlark.Thread{}, builtin, starlark.Tuple{}, nil)
	require.EqualError(t, err, "dns: expected exactly one argument")
}

func TestEnumerateList(t *testing.T) {
	env := library.Globals()
	env["seq"] = starlark.NewList([]starlark.Value{starlark.String("a"), starlark.String("b"), starlark.String("c")})

	result, err := starlark.Eval(&starlark.Thread{}, "test", `[(r.i, r.prev_i, r.next_i, r.is_first, r.is_last, r.prev_item, r.next_item) for r in enumerate_list(seq)]`, env)
	require.NoError(t, err)
	require.Equal(t, `[(0, -1, 1, True, False, None, "b"), (1, 0, 2, False, False, "a", "c"), (2, 1, None, False, True, "b", None)]`, result.String())

	result, err = starlark.Eval(&starlark.Thread{}, "test", `enumerate_list(None)`, env)
	require.NoError(t, err)
	require.Equal(t, `[]`, result.String())
}
