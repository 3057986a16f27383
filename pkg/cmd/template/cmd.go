// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"
	"time"

	cmdcore "carvel.dev/tektonc/pkg/cmd/core"
	"carvel.dev/tektonc/pkg/files"
	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/pipeline"
	"carvel.dev/tektonc/pkg/values"
	"carvel.dev/tektonc/pkg/yamlmeta"
)

type Options struct {
	Debug       bool
	Explain     bool
	Parallelism int

	TemplateFile      string
	ValuesFile        string
	PipelineRunFile   string
	PipelineRunParams []string
	OutputFile        string
}

type Input struct {
	Template files.Source
	Values   files.Source
	// PipelineRun is optional
	PipelineRun files.Source
}

type Output struct {
	Doc   *orderedmap.Map
	Bytes []byte
	Err   error
}

func NewOptions() *Options {
	return &Options{Parallelism: 1}
}

// BindFlags registers command flags for template command.
func (o *Options) BindFlags(cmdFlags CmdFlags) {
	cmdFlags.StringVarP(&o.TemplateFile, "template", "t", "", "Pipeline template (ie local path, HTTP URL, -)")
	cmdFlags.StringVarP(&o.ValuesFile, "values", "f", "", "Values file in YAML, JSON or TOML (ie local path, HTTP URL, -)")
	cmdFlags.StringVarP(&o.PipelineRunFile, "pipelinerun", "r", "", "PipelineRun whose params are merged into values")
	cmdFlags.StringSliceVar(&o.PipelineRunParams, "pipelinerun-param", values.DefaultRunParams,
		"Names of PipelineRun params merged into values (can be specified multiple times)")
	cmdFlags.StringVarP(&o.OutputFile, "output", "o", "", "File for output (stdout by default)")
	cmdFlags.BoolVar(&o.Explain, "explain", false, "Print task names and runAfter to stderr after expansion")
	cmdFlags.BoolVar(&o.Debug, "debug", false, "Enable debug output")
	cmdFlags.IntVar(&o.Parallelism, "parallelism", 1, "Number of loop bindings expanded concurrently")
}

func (o *Options) Run() error {
	ui := cmdcore.NewPlainUI(o.Debug)
	t1 := time.Now()

	defer func() {
		ui.Debugf("total: %s\n", time.Since(t1))
	}()

	in, err := o.Input()
	if err != nil {
		return err
	}

	out := o.RunWithInput(in, ui)
	if out.Err != nil {
		return out.Err
	}

	if len(o.OutputFile) > 0 {
		return files.NewOutputFile(o.OutputFile, out.Bytes).Create()
	}

	ui.Debugf("### result\n")
	ui.Printf("%s", out.Bytes) // no newline

	return nil
}

// Input validates flags and picks sources for them.
func (o *Options) Input() (Input, error) {
	if len(o.TemplateFile) == 0 {
		return Input{}, fmt.Errorf("Expected template to be specified via --template (-t)")
	}
	if len(o.ValuesFile) == 0 {
		return Input{}, fmt.Errorf("Expected values to be specified via --values (-f)")
	}
	if o.Parallelism < 1 {
		return Input{}, fmt.Errorf("Expected --parallelism to be at least 1, but was %d", o.Parallelism)
	}

	in := Input{
		Template: files.NewSource(o.TemplateFile),
		Values:   files.NewSource(o.ValuesFile),
	}
	if len(o.PipelineRunFile) > 0 {
		in.PipelineRun = files.NewSource(o.PipelineRunFile)
	}
	return in, nil
}

func (o *Options) RunWithInput(in Input, ui files.UI) Output {
	vals, err := o.loadValues(in)
	if err != nil {
		return Output{Err: err}
	}

	templateSrc, err := in.Template.Bytes()
	if err != nil {
		return Output{Err: err}
	}

	driver := pipeline.NewDriver(pipeline.Options{
		TemplateName: in.Template.Description(),
		Parallelism:  o.Parallelism,
	}, ui)

	doc, err := driver.Render(templateSrc, vals)
	if err != nil {
		return Output{Err: err}
	}

	docBytes, err := yamlmeta.NewPrinter(nil).PrintBytes(doc)
	if err != nil {
		return Output{Err: fmt.Errorf("Marshaling pipeline: %w", err)}
	}

	if o.Explain {
		var explanation strings.Builder
		err = pipeline.Explain(doc, &explanation)
		if err != nil {
			return Output{Err: err}
		}
		ui.Warnf("%s", explanation.String())
	}

	return Output{Doc: doc, Bytes: docBytes}
}

func (o *Options) loadValues(in Input) (*orderedmap.Map, error) {
	loader := values.NewLoader()

	data, err := in.Values.Bytes()
	if err != nil {
		return nil, err
	}

	err = loader.Load(data, values.FormatForPath(in.Values.Name()), in.Values.Description())
	if err != nil {
		return nil, err
	}

	if in.PipelineRun != nil {
		data, err := in.PipelineRun.Bytes()
		if err != nil {
			return nil, err
		}

		err = loader.MergeRunParams(data, values.FormatForPath(in.PipelineRun.Name()),
			in.PipelineRun.Description(), o.PipelineRunParams)
		if err != nil {
			return nil, err
		}
	}

	return loader.Values(), nil
}
