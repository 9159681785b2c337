package prompts

import _ "embed"

// Embedded prompt files

//go:embed system_prompt.txt
var system string

// System returns the fixed assistant instructions sent with every
// conversation context. Not user-controllable.
func System() string { return system }
