// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/starlark"
)

type jsonModule struct{}

// ToJSON renders a value as JSON keeping map key order.
// Separators are ", " and ": " (or "," and ": " with indent) so that
// output matches what template authors see from other Jinja tooling.
func (b jsonModule) ToJSON(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var val starlark.Value
	var indent int
	if err := starlark.UnpackArgs(f.Name(), args, kwargs, "value", &val, "indent?", &indent); err != nil {
		return starlark.None, err
	}
	if indent < 0 || indent > 8 {
		return starlark.None, fmt.Errorf("indent value must be between 0 and 8")
	}

	goVal, err := core.NewStarlarkValue(val).AsGoValue()
	if err != nil {
		return starlark.None, err
	}

	enc := jsonEncoder{indent: indent}
	err = enc.write(goVal, 0)
	if err != nil {
		return starlark.None, err
	}
	return starlark.String(enc.buf.String()), nil
}

type jsonEncoder struct {
	buf    bytes.Buffer
	indent int
}

func (e *jsonEncoder) write(val interface{}, level int) error {
	switch typedVal := val.(type) {
	case nil:
		e.buf.WriteString("null")

	case bool:
		e.buf.WriteString(strconv.FormatBool(typedVal))

	case int:
		e.buf.WriteString(strconv.Itoa(typedVal))

	case uint64:
		e.buf.WriteString(strconv.FormatUint(typedVal, 10))

	case float64:
		if math.IsInf(typedVal, 0) || math.IsNaN(typedVal) {
			return fmt.Errorf("unsupported float value %v", typedVal)
		}
		formatted := strconv.FormatFloat(typedVal, 'g', -1, 64)
		if !strings.ContainsAny(formatted, ".eEn") {
			formatted += ".0"
		}
		e.buf.WriteString(formatted)

	case string:
		e.writeString(typedVal)

	case []interface{}:
		if len(typedVal) == 0 {
			e.buf.WriteString("[]")
			return nil
		}
		e.buf.WriteString("[")
		for i, item := range typedVal {
			e.separator(i, level+1)
			if err := e.write(item, level+1); err != nil {
				return err
			}
		}
		e.closing(level)
		e.buf.WriteString("]")

	case *orderedmap.Map:
		if typedVal.Len() == 0 {
			e.buf.WriteString("{}")
			return nil
		}
		e.buf.WriteString("{")
		for i, item := range typedVal.Items() {
			e.separator(i, level+1)
			e.writeString(fmt.Sprintf("%v", item.Key))
			e.buf.WriteString(": ")
			if err := e.write(item.Value, level+1); err != nil {
				return err
			}
		}
		e.closing(level)
		e.buf.WriteString("}")

	default:
		return fmt.Errorf("unsupported value of type %T", val)
	}
	return nil
}

func (e *jsonEncoder) separator(idx, level int) {
	if e.indent == 0 {
		if idx > 0 {
			e.buf.WriteString(", ")
		}
		return
	}
	if idx > 0 {
		e.buf.WriteString(",")
	}
	e.buf.WriteString("\n" + strings.Repeat(" ", e.indent*level))
}

func (e *jsonEncoder) closing(level int) {
	if e.indent > 0 {
		e.buf.WriteString("\n" + strings.Repeat(" ", e.indent*level))
	}
}

// writeString escapes non-ASCII characters as \uXXXX sequences.
func (e *jsonEncoder) writeString(s string) {
	var inner bytes.Buffer
	enc := json.NewEncoder(&inner)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode

	for _, r := range strings.TrimSuffix(inner.String(), "\n") {
		switch {
		case r < 0x80:
			e.buf.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&e.buf, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&e.buf, `\u%04x`, r)
		}
	}
}
