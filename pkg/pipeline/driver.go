// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"time"

	"carvel.dev/tektonc/pkg/expand"
	"carvel.dev/tektonc/pkg/files"
	"carvel.dev/tektonc/pkg/inlineblock"
	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/texttemplate"
	"carvel.dev/tektonc/pkg/version"
	"carvel.dev/tektonc/pkg/yamlmeta"
)

const defaultTemplateName = "template"

type Options struct {
	// TemplateName identifies the template in error messages.
	TemplateName string
	Parallelism  int
}

// Driver is safe for concurrent use as long as its UI is.
type Driver struct {
	opts        Options
	ui          files.UI
	passthrough *texttemplate.Environment
	expander    *expand.Expander
}

func NewDriver(opts Options, ui files.UI) *Driver {
	if len(opts.TemplateName) == 0 {
		opts.TemplateName = defaultTemplateName
	}
	return &Driver{
		opts:        opts,
		ui:          ui,
		passthrough: texttemplate.NewEnvironment(texttemplate.Passthrough),
		expander: expand.NewExpander(texttemplate.NewEnvironment(texttemplate.Strict),
			expand.Options{Parallelism: opts.Parallelism}),
	}
}

// Render returns the expanded pipeline document. values are visible as
// top-level names in both passes and are not modified.
func (d *Driver) Render(templateSrc []byte, values *orderedmap.Map) (*orderedmap.Map, error) {
	name := d.opts.TemplateName
	scope := expand.NewScopeFromValues(values)

	t1 := time.Now()

	firstPass, err := d.passthrough.RenderDocument(name, inlineblock.Protect(string(templateSrc)), scope.Vars())
	if err != nil {
		return nil, fmt.Errorf("Rendering %s: %w", name, err)
	}

	d.ui.Debugf("first pass: %s\n", time.Since(t1))
	fmt.Fprintf(d.ui.DebugWriter(), "--- first pass of %s\n%s\n---\n", name, firstPass)

	parsed, err := yamlmeta.NewParser().ParseBytes([]byte(firstPass), name)
	if err != nil {
		return nil, err
	}

	doc, ok := parsed.(*orderedmap.Map)
	if !ok {
		return nil, fmt.Errorf("Rendered template %s is not a YAML mapping (expected a Pipeline)", name)
	}

	err = version.CheckDocument(doc)
	if err != nil {
		return nil, err
	}

	t2 := time.Now()

	result, err := d.expander.ExpandDocument(doc, scope)
	if err != nil {
		return nil, err
	}

	d.ui.Debugf("expansion: %s\n", time.Since(t2))

	return result, nil
}
