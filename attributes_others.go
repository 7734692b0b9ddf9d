// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build !linux && !darwin

package archivedir

// platformAttributes is a no-op; owner and creation time stay unknown.
func platformAttributes(path string, a *Attributes) {}
