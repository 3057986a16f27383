// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package pipeline_test

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	cmdcore "carvel.dev/tektonc/pkg/cmd/core"
	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/pipeline"
	"carvel.dev/tektonc/pkg/texttemplate"
	"carvel.dev/tektonc/pkg/values"
	"carvel.dev/tektonc/pkg/yamlmeta"
	fuzz "github.com/google/gofuzz"
	"github.com/k14s/difflib"
	"github.com/stretchr/testify/require"
)

// Each filetest holds values, template and expected output separated by
// "+++" lines. Expected output starting with "ERR: " is matched against
// the error message instead.
func TestPipelineFiletests(t *testing.T) {
	entries, err := os.ReadDir("filetests")
	require.NoError(t, err)

	for _, entry := range entries {
		entry := entry
		t.Run(entry.Name(), func(t *testing.T) {
			contents, err := os.ReadFile(filepath.Join("filetests", entry.Name()))
			require.NoError(t, err)

			pieces := strings.SplitN(string(contents), "\n+++\n", 3)
			require.Len(t, pieces, 3, "expected values, template and output separated by +++")

			const errPrefix = "ERR: "

			doc, renderErr := render(t, pieces[0], pieces[1], 1)
			expected := pieces[2]

			if strings.HasPrefix(expected, errPrefix) {
				require.Error(t, renderErr)
				require.Contains(t, renderErr.Error(), strings.TrimSpace(strings.TrimPrefix(expected, errPrefix)))
				return
			}
			require.NoError(t, renderErr)

			actual, err := yamlmeta.NewPrinter(nil).PrintBytes(doc)
			require.NoError(t, err)

			if string(actual) != expected {
				diff := difflib.PPDiff(strings.Split(string(actual), "\n"), strings.Split(expected, "\n"))
				t.Fatalf("Not equal; diff expected...actual:\n%s\n", diff)
			}
		})
	}
}

func TestRenderDoesNotModifyValues(t *testing.T) {
	vals := loadValues(t, "stack: demo\nmodels: [a, b]\n")
	before := vals.DeepCopy()

	_, err := newDriver(1).Render([]byte(`
spec:
  tasks:
    - loopName: l
      foreach:
        domain:
          m: {{ models|tojson }}
      tasks:
        - name: "{{ stack }}-{{ m }}"
`), vals)
	require.NoError(t, err)
	require.Equal(t, before, vals)
}

func TestRenderReportsSyntaxErrorsInBothPasses(t *testing.T) {
	for _, template := range []string{
		"spec:\n  tasks:\n    - name: \"{{ stack +* 2 }}\"\n",
		"spec:\n  tasks:\n    - __jinja__: |\n        - name: \"{{ stack b }}\"\n",
	} {
		_, err := render(t, "stack: demo\n", template, 1)
		require.Error(t, err, template)

		var syntaxErr *texttemplate.SyntaxError
		require.ErrorAs(t, err, &syntaxErr, template)
		require.NotContains(t, err.Error(), "\n", template)
	}
}

func TestDNSFilterTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("a", 70)

	doc, err := render(t, "long: "+long+"\n", `
spec:
  tasks:
    - name: "{{ long|dns }}"
`, 1)
	require.NoError(t, err)

	name := taskNames(t, doc)[0]
	require.LessOrEqual(t, len(name), 63)
	require.True(t, strings.HasPrefix(name, strings.Repeat("a", 10)))
	require.False(t, strings.HasSuffix(name, "-"))
}

func TestDebugOutputIncludesFirstPass(t *testing.T) {
	var stderr bytes.Buffer
	ui := cmdcore.NewWriterUI(true, io.Discard, &stderr)

	_, err := pipeline.NewDriver(pipeline.Options{TemplateName: "pipeline.yaml"}, ui).Render([]byte(`
spec:
  tasks:
    - name: "{{ later }}-{{ stack }}"
`), loadValues(t, "stack: demo\n"))
	require.Error(t, err, "later is undefined in the strict pass")
	require.Contains(t, stderr.String(), "--- first pass of pipeline.yaml")
	require.Contains(t, stderr.String(), "{{ later }}-demo")
}

func TestExplain(t *testing.T) {
	doc, err := render(t, "", `
spec:
  tasks:
    - name: a
    - name: b
      runAfter: [a]
    - taskRef: {name: x}
      runAfter: [a, b]
  finally:
    - name: done
      runAfter: whatever
`, 1)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, pipeline.Explain(doc, &out))

	row := func(name, runAfter string) string {
		return fmt.Sprintf("%-60s  %s\n", name, runAfter)
	}
	header := fmt.Sprintf("%-60s  RUNAFTER\n", "TASK NAME") + strings.Repeat("-", 90) + "\n"

	expected := "# spec.tasks\n" + header +
		row("a", "") + row("b", "a") + row("<unnamed>", "a, b") + "\n" +
		"# spec.finally\n" + header +
		row("done", "whatever") + "\n"
	require.Equal(t, expected, out.String())
}

func TestExplainWithoutFinally(t *testing.T) {
	doc, err := render(t, "", "spec:\n  tasks: []\n", 1)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, pipeline.Explain(doc, &out))
	require.Equal(t, 1, strings.Count(out.String(), "# spec."))
}

// Rendering with fuzzed values must be deterministic and must not depend
// on how many bindings are expanded concurrently.
func TestRenderIsDeterministicForFuzzedValues(t *testing.T) {
	template := []byte(`
apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: {{ stack|dns }}
spec:
  tasks:
    - loopName: grid
      foreach:
        domain:
          model: {{ models|tojson }}
          shard: {{ shards|tojson }}
      vars:
        label: "{{ model|slug }}-{{ shard }}"
      tasks:
        - name: "run-{{ label|dns }}"
          params:
            - name: model
              value: "{{ model }}"
`)

	fuzzer := fuzz.New().RandSource(getTektoncRandSource(t)).NilChance(0).NumElements(0, 4).Funcs(
		func(s *string, c fuzz.Continue) {
			const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 ._-/"
			n := 1 + c.Intn(12)
			var sb strings.Builder
			for i := 0; i < n; i++ {
				sb.WriteByte(alphabet[c.Intn(len(alphabet))])
			}
			*s = sb.String()
		},
	)

	for i := 0; i < 20; i++ {
		var stack string
		var models []string
		var shards []int
		fuzzer.Fuzz(&stack)
		fuzzer.Fuzz(&models)
		fuzzer.Fuzz(&shards)

		vals := orderedmap.NewMap()
		vals.Set("stack", stack)
		vals.Set("models", stringsAsInterfaces(models))
		vals.Set("shards", intsAsInterfaces(shards))

		var outputs []string
		for _, parallelism := range []int{1, 1, 3} {
			doc, err := pipeline.NewDriver(pipeline.Options{Parallelism: parallelism},
				cmdcore.NewWriterUI(false, io.Discard, io.Discard)).Render(template, vals)
			require.NoError(t, err)

			out, err := yamlmeta.NewPrinter(nil).PrintBytes(doc)
			require.NoError(t, err)
			outputs = append(outputs, string(out))

			require.Len(t, taskNames(t, doc), len(models)*len(shards))
		}
		require.Equal(t, outputs[0], outputs[1])
		require.Equal(t, outputs[0], outputs[2])
	}
}

func getTektoncRandSource(t *testing.T) rand.Source {
	var seed int64

	seedStr := os.Getenv("TEKTONC_SEED")
	if len(seedStr) > 0 {
		var err error
		seed, err = strconv.ParseInt(seedStr, 10, 64)
		require.NoError(t, err)
	} else {
		seed = time.Now().UnixNano()
	}

	t.Logf("Seed: %d (to reproduce set TEKTONC_SEED)", seed)
	t.Cleanup(func() {
		if t.Failed() {
			fmt.Printf("Seed used: TEKTONC_SEED=%d\n", seed)
		}
	})

	return rand.NewSource(seed)
}

func render(t *testing.T, valuesYAML, template string, parallelism int) (*orderedmap.Map, error) {
	t.Helper()
	return newDriver(parallelism).Render([]byte(template), loadValues(t, valuesYAML))
}

func newDriver(parallelism int) *pipeline.Driver {
	return pipeline.NewDriver(pipeline.Options{Parallelism: parallelism},
		cmdcore.NewWriterUI(false, io.Discard, io.Discard))
}

func loadValues(t *testing.T, valuesYAML string) *orderedmap.Map {
	t.Helper()
	loader := values.NewLoader()
	require.NoError(t, loader.Load([]byte(valuesYAML), values.FormatYAML, "values.yaml"))
	return loader.Values()
}

func taskNames(t *testing.T, doc *orderedmap.Map) []string {
	t.Helper()
	spec, found := doc.Get("spec")
	require.True(t, found)
	tasks, found := spec.(*orderedmap.Map).Get("tasks")
	require.True(t, found)

	var names []string
	for _, task := range tasks.([]interface{}) {
		name, _ := task.(*orderedmap.Map).Get("name")
		names = append(names, fmt.Sprintf("%v", name))
	}
	return names
}

func stringsAsInterfaces(strs []string) []interface{} {
	result := []interface{}{}
	for _, str := range strs {
		result = append(result, str)
	}
	return result
}

func intsAsInterfaces(ints []int) []interface{} {
	result := []interface{}{}
	for _, i := range ints {
		result = append(result, i)
	}
	return result
}
