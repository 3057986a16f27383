// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"io"
	"strings"

	"carvel.dev/tektonc/pkg/orderedmap"
)

const (
	explainNameWidth = 60
	explainRuleWidth = 90
	unnamedTask      = "<unnamed>"
)

// Explain prints a name/runAfter table for spec.tasks and, when present,
// spec.finally of an expanded document.
func Explain(doc *orderedmap.Map, w io.Writer) error {
	spec := orderedmap.NewMap()
	if specVal, found := doc.Get("spec"); found {
		if typedSpec, ok := specVal.(*orderedmap.Map); ok {
			spec = typedSpec
		}
	}

	tasks, _ := spec.Get("tasks")
	err := explainSection(w, "spec.tasks", tasks)
	if err != nil {
		return err
	}

	if finally, found := spec.Get("finally"); found {
		return explainSection(w, "spec.finally", finally)
	}
	return nil
}

func explainSection(w io.Writer, title string, tasksVal interface{}) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n", title)
	fmt.Fprintf(&sb, "%-*s  RUNAFTER\n", explainNameWidth, "TASK NAME")
	sb.WriteString(strings.Repeat("-", explainRuleWidth) + "\n")

	tasks, _ := tasksVal.([]interface{})
	for _, taskVal := range tasks {
		task, ok := taskVal.(*orderedmap.Map)
		if !ok {
			continue
		}

		name := unnamedTask
		if nameVal, found := task.Get("name"); found {
			name = fmt.Sprintf("%v", nameVal)
		}

		var runAfter string
		if runAfterVal, found := task.Get("runAfter"); found && runAfterVal != nil {
			if items, ok := runAfterVal.([]interface{}); ok {
				var strs []string
				for _, item := range items {
					strs = append(strs, fmt.Sprintf("%v", item))
				}
				runAfter = strings.Join(strs, ", ")
			} else {
				runAfter = fmt.Sprintf("%v", runAfterVal)
			}
		}

		fmt.Fprintf(&sb, "%-*s  %s\n", explainNameWidth, name, runAfter)
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
