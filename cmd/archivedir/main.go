// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/hashicorp/go-archivedir/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main start go-archivedir cli `archivedir`
func main() {
	cmd.Run(version, commit, date)
}
