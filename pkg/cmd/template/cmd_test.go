// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cmdcore "carvel.dev/tektonc/pkg/cmd/core"
	cmdtpl "carvel.dev/tektonc/pkg/cmd/template"
	"carvel.dev/tektonc/pkg/files"
	"github.com/stretchr/testify/require"
)

const pipelineTpl = `apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: {{ stack.name }}
spec:
  tasks:
    - loopName: per-model
      foreach:
        domain:
          model: {{ models|tojson }}
      tasks:
        - name: "bench-{{ model|dns }}"
          params:
            - name: replicas
              value: "{{ workload.replicas }}"
`

func TestRunWithInput(t *testing.T) {
	opts := cmdtpl.NewOptions()

	in := cmdtpl.Input{
		Template: files.NewBytesSource("pipeline.yaml", []byte(pipelineTpl)),
		Values: files.NewBytesSource("values.json", []byte(`{
  "stack": {"name": "demo"},
  "models": ["A/1", "B/2"],
  "workload": {"replicas": 2}
}`)),
	}

	out := opts.RunWithInput(in, quietUI())
	require.NoError(t, out.Err)

	expected := `apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: demo
spec:
  tasks:
    - name: bench-a-1
      params:
        - name: replicas
          value: "2"
    - name: bench-b-2
      params:
        - name: replicas
          value: "2"
`
	require.Equal(t, expected, string(out.Bytes))
}

func TestRunWithInputMergesPipelineRunParams(t *testing.T) {
	opts := cmdtpl.NewOptions()
	opts.PipelineRunParams = []string{"stack", "workload"}

	in := cmdtpl.Input{
		Template: files.NewBytesSource("pipeline.yaml", []byte(pipelineTpl)),
		Values: files.NewBytesSource("values.toml", []byte(`
models = ["m"]

[stack]
name = "from-values"
owner = "team"

[workload]
replicas = 1
`)),
		PipelineRun: files.NewBytesSource("run.yaml", []byte(`
apiVersion: tekton.dev/v1
kind: PipelineRun
spec:
  params:
    - name: stack
      value:
        name: from-run
    - name: workload
      value:
        replicas: 5
    - name: models
      value: [ignored]
`)),
	}

	out := opts.RunWithInput(in, quietUI())
	require.NoError(t, out.Err)
	require.Contains(t, string(out.Bytes), "name: from-run\n")
	require.Contains(t, string(out.Bytes), "name: bench-m\n")
	require.Contains(t, string(out.Bytes), `value: "5"`)
	require.NotContains(t, string(out.Bytes), "ignored")
}

func TestRunWithInputExplain(t *testing.T) {
	opts := cmdtpl.NewOptions()
	opts.Explain = true

	var stdout, stderr bytes.Buffer
	ui := cmdcore.NewWriterUI(false, &stdout, &stderr)

	out := opts.RunWithInput(cmdtpl.Input{
		Template: files.NewBytesSource("pipeline.yaml", []byte(pipelineTpl)),
		Values:   files.NewBytesSource("values.yaml", []byte("stack: {name: x}\nmodels: [a]\nworkload: {replicas: 1}\n")),
	}, ui)
	require.NoError(t, out.Err)

	require.Empty(t, stdout.String())
	require.True(t, strings.HasPrefix(stderr.String(), "# spec.tasks\nTASK NAME"), stderr.String())
	require.Contains(t, stderr.String(), "\nbench-a ")
}

func TestRunWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "pipeline.yaml")
	valuesPath := filepath.Join(dir, "values.yaml")
	outPath := filepath.Join(dir, "build", "pipeline.yaml")

	require.NoError(t, os.WriteFile(tplPath, []byte(pipelineTpl), 0600))
	require.NoError(t, os.WriteFile(valuesPath, []byte("stack: {name: x}\nmodels: [a]\nworkload: {replicas: 1}\n"), 0600))

	opts := cmdtpl.NewOptions()
	opts.TemplateFile = tplPath
	opts.ValuesFile = valuesPath
	opts.OutputFile = outPath

	require.NoError(t, opts.Run())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "name: bench-a\n")
}

func TestRunDoesNotWriteOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "pipeline.yaml")
	valuesPath := filepath.Join(dir, "values.yaml")
	outPath := filepath.Join(dir, "pipeline.out.yaml")

	require.NoError(t, os.WriteFile(tplPath, []byte(`spec:
  tasks:
    - loopName: l
      foreach:
        domain:
          x: [a]
      tasks:
        - name: "{{ x }}-{{ missing }}"
`), 0600))
	require.NoError(t, os.WriteFile(valuesPath, []byte("stack: demo\n"), 0600))

	opts := cmdtpl.NewOptions()
	opts.TemplateFile = tplPath
	opts.ValuesFile = valuesPath
	opts.OutputFile = outPath

	err := opts.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "'missing' is undefined")

	_, statErr := os.Stat(outPath)
	require.True(t, os.IsNotExist(statErr), "expected no output file")
}

func TestRunReportsTemplateSyntaxErrors(t *testing.T) {
	out := cmdtpl.NewOptions().RunWithInput(cmdtpl.Input{
		Template: files.NewBytesSource("pipeline.yaml", []byte("spec:\n  tasks:\n    - name: \"{{ a b }}\"\n")),
		Values:   files.NewBytesSource("values.yaml", []byte("a: 1\n")),
	}, quietUI())
	require.Error(t, out.Err)
	require.Contains(t, out.Err.Error(), "template syntax error at pipeline.yaml:3")
	require.Contains(t, out.Err.Error(), "in expression 'a b'")
	require.Nil(t, out.Bytes)
}

func TestInputValidation(t *testing.T) {
	opts := cmdtpl.NewOptions()
	_, err := opts.Input()
	require.EqualError(t, err, "Expected template to be specified via --template (-t)")

	opts.TemplateFile = "pipeline.yaml"
	_, err = opts.Input()
	require.EqualError(t, err, "Expected values to be specified via --values (-f)")

	opts.ValuesFile = "values.yaml"
	opts.Parallelism = 0
	_, err = opts.Input()
	require.EqualError(t, err, "Expected --parallelism to be at least 1, but was 0")

	opts.Parallelism = 2
	opts.PipelineRunFile = "https://example.com/run.yaml"
	in, err := opts.Input()
	require.NoError(t, err)
	require.IsType(t, files.LocalSource{}, in.Template)
	require.IsType(t, files.HTTPSource{}, in.PipelineRun)
}

func TestRunWithInputReportsValuesErrors(t *testing.T) {
	out := cmdtpl.NewOptions().RunWithInput(cmdtpl.Input{
		Template: files.NewBytesSource("pipeline.yaml", []byte(pipelineTpl)),
		Values:   files.NewBytesSource("values.json", []byte(`{"stack": `)),
	}, quietUI())
	require.Error(t, out.Err)
	require.Contains(t, out.Err.Error(), "Loading values from values.json")
}

func TestLLMBenchExample(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "examples", "llm-bench")

	opts := cmdtpl.NewOptions()
	opts.TemplateFile = filepath.Join(dir, "pipeline.yaml.j2")
	opts.ValuesFile = filepath.Join(dir, "values.yaml")

	in, err := opts.Input()
	require.NoError(t, err)

	for _, parallelism := range []int{1, 4} {
		opts.Parallelism = parallelism

		out := opts.RunWithInput(in, quietUI())
		require.NoError(t, out.Err)

		expected, err := os.ReadFile(filepath.Join(dir, "pipeline.yaml"))
		require.NoError(t, err)
		require.Equal(t, string(expected), string(out.Bytes))
	}
}

func quietUI() cmdcore.PlainUI {
	return cmdcore.NewWriterUI(false, io.Discard, io.Discard)
}
