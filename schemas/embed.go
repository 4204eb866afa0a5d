// Package schemas embeds the JSON Schema documents shipped with conveyor.
package schemas

import _ "embed"

// PipelineV1Schema is the JSON Schema for the conveyor.yaml pipeline
// definition, version 1.
//
//go:embed pipeline_v1.json
var PipelineV1Schema []byte
