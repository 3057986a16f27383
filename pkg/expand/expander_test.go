// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package expand_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"carvel.dev/tektonc/pkg/expand"
	"carvel.dev/tektonc/pkg/inlineblock"
	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/texttemplate"
	"carvel.dev/tektonc/pkg/yamlmeta"
	"github.com/stretchr/testify/require"
)

func parseMap(t *testing.T, data string) *orderedmap.Map {
	t.Helper()
	val, err := yamlmeta.NewParser().ParseBytes([]byte(inlineblock.Protect(data)), "test.yml")
	require.NoError(t, err)
	if val == nil {
		return orderedmap.NewMap()
	}
	return val.(*orderedmap.Map)
}

func expandDoc(t *testing.T, doc *orderedmap.Map, values string, opts expand.Options) (*orderedmap.Map, error) {
	t.Helper()
	scope := expand.NewScopeFromValues(parseMap(t, values))
	expander := expand.NewExpander(texttemplate.NewEnvironment(texttemplate.Strict), opts)
	return expander.ExpandDocument(doc, scope)
}

func taskField(t *testing.T, doc *orderedmap.Map, list, field string) []interface{} {
	t.Helper()
	spec, found := doc.Get("spec")
	require.True(t, found)
	tasks, found := spec.(*orderedmap.Map).Get(list)
	require.True(t, found)

	var result []interface{}
	for _, task := range tasks.([]interface{}) {
		val, _ := task.(*orderedmap.Map).Get(field)
		result = append(result, val)
	}
	return result
}

func TestCartesianOrder(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: grid
    foreach:
      domain:
        b: [x, y, z]
        a: [1, 2]
    tasks:
    - name: "t-{{ a }}-{{ b }}"
`)

	for _, parallelism := range []int{1, 4} {
		result, err := expandDoc(t, doc, "", expand.Options{Parallelism: parallelism})
		require.NoError(t, err)
		require.Equal(t, []interface{}{"t-1-x", "t-1-y", "t-1-z", "t-2-x", "t-2-y", "t-2-z"},
			taskField(t, result, "tasks", "name"))
	}
}

func TestEmptyAxisAndEmptyDomain(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - name: first
  - loopName: none
    foreach:
      domain:
        a: [1, 2]
        b: []
    tasks:
    - name: "never-{{ a }}"
  - loopName: once
    foreach:
      domain: {}
    tasks:
    - name: "once-{{ top }}"
  - name: last
`)

	result, err := expandDoc(t, doc, "top: v", expand.Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"first", "once-v", "last"}, taskField(t, result, "tasks", "name"))
}

func TestNestedScopeShadowing(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: outer
    foreach:
      domain:
        x: [outer]
        o: [1]
    tasks:
    - loopName: inner
      foreach:
        domain:
          x: [inner]
      tasks:
      - name: "in-{{ x }}-{{ o }}"
    - name: "out-{{ x }}"
  - name: "top-{{ x }}"
`)

	result, err := expandDoc(t, doc, "x: global", expand.Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"in-inner-1", "out-outer", "top-global"}, taskField(t, result, "tasks", "name"))
}

func TestLoopVars(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: vars
    foreach:
      domain:
        x: [1]
    vars:
      a: "{{ x }}-a"
      b: "{{ a }}-b"
      c:
        list: ["{{ b }}"]
        "{{ key }}": 3
    tasks:
    - name: "{{ b }}"
      params:
      - name: c
        value: "{{ c.list[0] }}-{{ c['{{ key }}'] }}"
`)

	result, err := expandDoc(t, doc, "", expand.Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"1-a-b"}, taskField(t, result, "tasks", "name"))

	params := taskField(t, result, "tasks", "params")[0].([]interface{})
	val, _ := params[0].(*orderedmap.Map).Get("value")
	require.Equal(t, "1-a-b-3", val)
}

func TestTaskPreambleIsDropped(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: pre
    foreach:
      domain:
        x: [a, b]
    tasks:
    - __jinja__: |
        {% set suffix = x ~ '-s' %}
      name: "t-{{ suffix }}"
      params:
      - name: suffix
        value: "{{ suffix|upper }}"
`)

	result, err := expandDoc(t, doc, "", expand.Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"t-a-s", "t-b-s"}, taskField(t, result, "tasks", "name"))

	tasks := taskField(t, result, "tasks", "params")
	require.Len(t, tasks, 2)
	val, _ := tasks[1].([]interface{})[0].(*orderedmap.Map).Get("value")
	require.Equal(t, "B-S", val)

	for _, preamble := range taskField(t, result, "tasks", "__jinja__") {
		require.Nil(t, preamble)
	}
}

func TestTaskStringsWithMixedQuotes(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: quotes
    foreach:
      domain:
        m: [{a: x}]
    tasks:
    - name: t
      params:
      - name: msg
        value: "{{ m['a'] }} say \"hi\""
      - name: pattern
        value: "{{ m['a'] }}\\d"
      - name: script
        value: |
          echo "{{ m['a'] }}" 'done'
`)

	result, err := expandDoc(t, doc, "", expand.Options{})
	require.NoError(t, err)

	params := taskField(t, result, "tasks", "params")[0].([]interface{})
	var values []interface{}
	for _, param := range params {
		val, _ := param.(*orderedmap.Map).Get("value")
		values = append(values, val)
	}
	require.Equal(t, []interface{}{`x say "hi"`, `x\d`, "echo \"x\" 'done'\n"}, values)
}

func TestStructureErrorNamesEnclosingBinding(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: outer
    foreach:
      domain:
        x: [a, b]
    tasks:
    - loopName: inner
      foreach:
        domain:
          y: "{{ x }}"
      tasks: []
`)

	_, err := expandDoc(t, doc, "", expand.Options{Parallelism: 2})
	require.Error(t, err)

	var structErr *expand.StructureError
	require.True(t, errors.As(err, &structErr))
	require.Equal(t, "inner", structErr.Loop)
	require.Equal(t, "x=a", structErr.Binding)
	require.Contains(t, err.Error(), "(binding: x=a)")
}

func TestInlineBlocks(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: inline
    foreach:
      domain:
        x: [a]
    tasks:
    - __jinja__: |
        {% for i in range(2) %}
        - name: inl-{{ x }}-{{ i }}
        {% endfor %}
    - __jinja__: |
        name: single-{{ x }}
    - __jinja__: |
        {% if false %}
        - name: never
        {% endif %}
`)

	result, err := expandDoc(t, doc, "", expand.Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"inl-a-0", "inl-a-1", "single-a"}, taskField(t, result, "tasks", "name"))
}

func TestFinallyIsExpanded(t *testing.T) {
	doc := parseMap(t, `
apiVersion: tekton.dev/v1
kind: Pipeline
spec:
  params: [{name: p}]
  tasks: []
  finally:
  - loopName: cleanup
    foreach:
      domain:
        env: [dev, prod]
    tasks:
    - name: "cleanup-{{ env }}"
`)

	result, err := expandDoc(t, doc, "", expand.Options{})
	require.NoError(t, err)
	require.Empty(t, taskField(t, result, "tasks", "name"))
	require.Equal(t, []interface{}{"cleanup-dev", "cleanup-prod"}, taskField(t, result, "finally", "name"))
	require.Equal(t, []interface{}{"apiVersion", "kind", "spec"}, result.Keys())
}

func TestExpandDoesNotMutateInputAndIsDeterministic(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: outer
    foreach:
      domain:
        m: [{name: A B!!c, port: 80}, {name: Other, port: 81}]
        n: [1, 2, 3]
    vars:
      label: "{{ m.name|dns }}-{{ n }}"
    tasks:
    - name: "{{ label }}"
      runAfter: ["{{ m['name']|slug }}"]
      params:
      - name: port
        value: "{{ m.port }}"
`)

	before, err := yamlmeta.NewPrinter(nil).PrintBytes(doc)
	require.NoError(t, err)

	var outputs []string
	for _, parallelism := range []int{1, 1, 3} {
		result, err := expandDoc(t, doc, "", expand.Options{Parallelism: parallelism})
		require.NoError(t, err)

		out, err := yamlmeta.NewPrinter(nil).PrintBytes(result)
		require.NoError(t, err)
		outputs = append(outputs, string(out))
	}
	require.Equal(t, outputs[0], outputs[1])
	require.Equal(t, outputs[0], outputs[2])
	require.Contains(t, outputs[0], "name: a-b-c-1\n")
	require.Contains(t, outputs[0], "- A-B-c\n")

	after, err := yamlmeta.NewPrinter(nil).PrintBytes(doc)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))
}

func TestStructureErrors(t *testing.T) {
	cases := []struct {
		desc string
		doc  string
		loop string
		key  string
		msg  string
	}{
		{
			desc: "tasks is not a sequence",
			doc: `
spec:
  tasks:
  - loopName: bad
    foreach: {domain: {a: [1]}}
    tasks:
      name: not-a-list
`,
			loop: "bad", key: "tasks", msg: "hint: check indentation",
		},
		{
			desc: "domain is a string",
			doc: `
spec:
  tasks:
  - loopName: str
    foreach: {domain: {a: abc}}
    tasks: []
`,
			loop: "str", key: "foreach.domain.a", msg: "but was a string",
		},
		{
			desc: "domain value is null",
			doc: `
spec:
  tasks:
  - loopName: null-domain
    foreach: {domain: {a: ~}}
    tasks: []
`,
			loop: "null-domain", key: "foreach.domain.a", msg: "but was null",
		},
		{
			desc: "domain value is a map",
			doc: `
spec:
  tasks:
  - loopName: map-domain
    foreach: {domain: {a: {b: c}}}
    tasks: []
`,
			loop: "map-domain", key: "foreach.domain.a", msg: "but was map",
		},
		{
			desc: "loop without a name",
			doc: `
spec:
  tasks:
  - foreach: {domain: {a: [1]}}
    tasks: []
`,
			loop: "<unnamed>", key: "loopName", msg: "Expected loop to be named",
		},
		{
			desc: "foreach without domain",
			doc: `
spec:
  tasks:
  - loopName: nodomain
    foreach: {values: [1]}
    tasks: []
`,
			loop: "nodomain", key: "foreach", msg: "Expected a map with 'domain'",
		},
		{
			desc: "inline block is not text",
			doc: `
spec:
  tasks:
  - __jinja__: 3
`,
			key: "__jinja__", msg: "Expected inline block to be a string, but was integer",
		},
		{
			desc: "inline block renders to a scalar",
			doc: `
spec:
  tasks:
  - __jinja__: |
      just text
`,
			key: "__jinja__", msg: "to render to a sequence or a map, but was string",
		},
		{
			desc: "task is not a map",
			doc: `
spec:
  tasks:
  - just-a-string
`,
			msg: "Expected task 0 to be a map, but was string",
		},
		{
			desc: "missing tasks",
			doc: `
spec:
  finally: []
`,
			key: "spec.tasks", msg: "Expected spec to have tasks",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := expandDoc(t, parseMap(t, tc.doc), "", expand.Options{})
			require.Error(t, err)

			var structErr *expand.StructureError
			require.True(t, errors.As(err, &structErr), "expected structure error, got: %s", err)
			require.Equal(t, tc.loop, structErr.Loop)
			require.Equal(t, tc.key, structErr.Key)
			require.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestStrictUndefinedFails(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: l
    foreach:
      domain:
        x: [1]
    tasks:
    - name: "t-{{ x }}-{{ nope }}"
`)

	_, err := expandDoc(t, doc, "top: 1", expand.Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "'nope' is undefined")
	require.Contains(t, err.Error(), "scope: top, x")

	var evalErr *texttemplate.EvalError
	require.True(t, errors.As(err, &evalErr))
}

func TestParallelReportsFirstBindingError(t *testing.T) {
	doc := parseMap(t, `
spec:
  tasks:
  - loopName: l
    foreach:
      domain:
        x: [a, b, c, d]
    vars:
      v: "{{ miss_b if x == 'b' else (miss_c if x == 'c' else x) }}"
    tasks:
    - name: "{{ v }}"
`)

	for i := 0; i < 5; i++ {
		_, err := expandDoc(t, doc, "", expand.Options{Parallelism: 4})
		require.Error(t, err)
		require.Contains(t, err.Error(), "Loop 'l': evaluating var 'v' (x=b)")
		require.Contains(t, err.Error(), "'miss_b' is undefined")

		var varErr *expand.VarError
		require.True(t, errors.As(err, &varErr))
		require.Equal(t, "v", varErr.Var)
		require.Equal(t, "x=b", varErr.Binding)
	}
}

func TestLargeProductKeepsOrder(t *testing.T) {
	var axis []string
	for i := 0; i < 10; i++ {
		axis = append(axis, fmt.Sprintf("%d", i))
	}
	doc := parseMap(t, fmt.Sprintf(`
spec:
  tasks:
  - loopName: big
    foreach:
      domain:
        a: [%[1]s]
        b: [%[1]s]
    tasks:
    - name: "n{{ a }}{{ b }}"
`, strings.Join(axis, ", ")))

	result, err := expandDoc(t, doc, "", expand.Options{Parallelism: 8})
	require.NoError(t, err)

	names := taskField(t, result, "tasks", "name")
	require.Len(t, names, 100)
	for i, name := range names {
		require.Equal(t, fmt.Sprintf("n%02d", i), name)
	}
}
