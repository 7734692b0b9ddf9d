// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"context"
	"encoding/json"
	"time"
)

// Operations reported in [TelemetryData].
const (
	OperationOpen  = "open"
	OperationClose = "close"
)

// TelemetryData holds the telemetry data of one open or close of an archive.
type TelemetryData struct {
	// Operation is either "open" or "close"
	Operation string `json:"operation"`

	// Archive is the canonical path of the archive
	Archive string `json:"archive"`

	// Format is the detected format of the archive
	Format string `json:"format"`

	// Tool is the binary that extracted or rebuilt the archive
	Tool string `json:"tool"`

	// Fallback is true if the generic tool took over after tar failed
	Fallback bool `json:"fallback"`

	// Dirty is true if the session had changes when it was closed
	Dirty bool `json:"dirty"`

	// Repacked is true if the archive was rebuilt
	Repacked bool `json:"repacked"`

	// Entries is the number of entries in the temp directory after extraction
	Entries int64 `json:"entries"`

	// Duration is the time the operation took
	Duration time.Duration `json:"duration"`

	// Error is the error the operation ended with
	Error error `json:"error"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.Error != nil {
		lastError = m.Error.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		Error string `json:"error"`
		*Alias
	}{
		Error: lastError,
		Alias: (*Alias)(&m),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after an archive was opened or closed, which can be used to submit the
// [TelemetryData] to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)

// captureDuration sets the duration since start.
func captureDuration(td *TelemetryData, start time.Time) {
	td.Duration = time.Since(start)
}
