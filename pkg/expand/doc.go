// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package expand flattens loop nodes of a pipeline document into plain tasks.

A loop node looks like:

	loopName: build
	foreach:
	  domain:
	    arch: [amd64, arm64]
	    os: [linux]
	vars:
	  target: "{{ os }}-{{ arch }}"
	tasks:
	- name: "build-{{ target }}"

Every binding of the domain's cartesian product renders the loop's tasks
with the binding (and the loop's vars) layered over the enclosing scope.
Loops nest. Variables are bound in sorted name order with the last name
varying fastest.
*/
package expand
