// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/mgraber/vereinsmatrix/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
