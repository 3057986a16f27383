// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package version_test

import (
	"testing"

	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/version"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	require.NoError(t, version.Check("0.3.1", ">= 0.1.0, < 1.0.0"))
	require.NoError(t, version.Check("1.0.0", "~> 1.0"))

	err := version.Check("0.3.1", ">= 0.4.0")
	require.EqualError(t, err, "tektonc version 0.3.1 does not satisfy template constraint '>= 0.4.0' (annotation 'tektonc.carvel.dev/version')")

	err = version.Check("0.3.1", "not a constraint")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Parsing annotation 'tektonc.carvel.dev/version' value 'not a constraint'")
}

func TestCheckDocument(t *testing.T) {
	doc := orderedmap.NewMap()
	require.NoError(t, version.CheckDocument(doc))

	annotations := orderedmap.NewMap()
	metadata := orderedmap.NewMap()
	metadata.Set("annotations", annotations)
	doc.Set("metadata", metadata)
	require.NoError(t, version.CheckDocument(doc))

	annotations.Set(version.ConstraintAnnotation, ">= 0.0.1")
	require.NoError(t, version.CheckDocument(doc))

	annotations.Set(version.ConstraintAnnotation, "> 1000.0.0")
	require.Error(t, version.CheckDocument(doc))

	annotations.Set(version.ConstraintAnnotation, 3)
	require.EqualError(t, version.CheckDocument(doc), "Expected annotation 'tektonc.carvel.dev/version' to be a string, but was int")
}
