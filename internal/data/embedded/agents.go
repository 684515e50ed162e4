// Package embedded provides access to embedded data files.
package embedded

import _ "embed"

// AgentsData contains the embedded default agent table in YAML form.
// Agent order in the file is the registry's declared order.
//
//go:embed agents.yaml
var AgentsData []byte
