// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"

	"carvel.dev/tektonc/pkg/orderedmap"
	goversion "github.com/hashicorp/go-version"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

// ConstraintAnnotation on a template's metadata restricts tool versions
// that may render it, e.g. ">= 0.1.0, < 1.0.0".
const ConstraintAnnotation = "tektonc.carvel.dev/version"

// CheckDocument verifies the version constraint annotated on doc, if any.
func CheckDocument(doc *orderedmap.Map) error {
	constraint, found, err := documentConstraint(doc)
	if err != nil || !found {
		return err
	}
	return Check(Version, constraint)
}

func Check(toolVersion, constraint string) error {
	constraints, err := goversion.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("Parsing annotation '%s' value '%s': %w", ConstraintAnnotation, constraint, err)
	}

	current, err := goversion.NewVersion(toolVersion)
	if err != nil {
		return fmt.Errorf("Parsing tool version '%s': %w", toolVersion, err)
	}

	if !constraints.Check(current) {
		return fmt.Errorf("tektonc version %s does not satisfy template constraint '%s' (annotation '%s')",
			toolVersion, constraint, ConstraintAnnotation)
	}
	return nil
}

func documentConstraint(doc *orderedmap.Map) (string, bool, error) {
	metadata, found := doc.Get("metadata")
	if !found {
		return "", false, nil
	}
	typedMetadata, ok := metadata.(*orderedmap.Map)
	if !ok {
		return "", false, nil
	}
	annotations, found := typedMetadata.Get("annotations")
	if !found {
		return "", false, nil
	}
	typedAnnotations, ok := annotations.(*orderedmap.Map)
	if !ok {
		return "", false, nil
	}
	constraint, found := typedAnnotations.Get(ConstraintAnnotation)
	if !found {
		return "", false, nil
	}
	typedConstraint, ok := constraint.(string)
	if !ok {
		return "", false, fmt.Errorf("Expected annotation '%s' to be a string, but was %T", ConstraintAnnotation, constraint)
	}
	return typedConstraint, true, nil
}
