package forge

import (
	"fmt"
	"strings"
)

// classSkeleton is embedded in every generation prompt so the LLM has a
// concrete shape to fill in rather than inventing its own contract.
const classSkeleton = `package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

// Fill in Execute with the capability's logic. Parameters arrive as a JSON
// object in the -params flag; write exactly one JSON object to stdout:
// {"result": <value>} on success or {"error": "<message>"} on failure.

func Execute(params map[string]any) (any, error) {
	// TODO: implement the capability
	return nil, fmt.Errorf("not implemented")
}

func main() {
	paramsJSON := flag.String("params", "", "tool params JSON")
	flag.Parse()

	var params map[string]any
	if *paramsJSON != "" {
		_ = json.Unmarshal([]byte(*paramsJSON), &params)
	}

	result, err := Execute(params)
	enc := json.NewEncoder(os.Stdout)
	if err != nil {
		_ = enc.Encode(map[string]string{"error": err.Error()})
		os.Exit(1)
	}
	_ = enc.Encode(map[string]any{"result": result})
}
`

// BannedImports lists import paths a generated tool must not use:
// process-spawn, shell-exec, dynamic-eval (closest Go analogue is
// plugin-loading), and reflective-import.
var BannedImports = []string{
	`"os/exec"`,
	`"syscall"`,
	`"plugin"`,
	`"reflect"`,
	`"unsafe"`,
}

// GenerationPrompt builds the prompt asking the LLM to write a forged
// tool's Go source, given the capability that's missing and the goal
// text that triggered the Forge.
func GenerationPrompt(capability, goalText string) string {
	var b strings.Builder
	b.WriteString("Write a small, self-contained Go program implementing the following capability:\n\n")
	fmt.Fprintf(&b, "Capability: %s\n", capability)
	fmt.Fprintf(&b, "Triggered by goal: %q\n\n", goalText)
	b.WriteString("Fill in the Execute function in this exact skeleton, changing nothing else:\n\n")
	b.WriteString(classSkeleton)
	b.WriteString("\nRestrictions: do not import os/exec, syscall, plugin, reflect, or unsafe. ")
	b.WriteString("Do not spawn subprocesses, execute shell commands, or load plugins. ")
	b.WriteString("Respond with ONLY the Go source, no explanation.")
	return b.String()
}

// DefinitionExtractionPrompt asks the LLM to describe a generated
// tool's ToolDefinition as JSON, given its source.
func DefinitionExtractionPrompt(code string) string {
	var b strings.Builder
	b.WriteString("Given this Go program, describe it as a JSON object with this exact shape:\n")
	b.WriteString(`{"name": "snake_case_name", "description": "...", "domain": "...", ` +
		`"parameters": [{"name": "...", "type": "string|number|boolean", "description": "...", "required": true}], ` +
		`"concepts": ["..."], "synonyms": ["..."], ` +
		`"side_effects": ["none|read_only|writes|api_calls|mutations"], ` +
		`"idempotent": true, "safe_for_shadow_testing": false}` + "\n\n")
	b.WriteString("side_effects, idempotent, and safe_for_shadow_testing describe whether ")
	b.WriteString("running two copies of this program in parallel against the same input is safe: ")
	b.WriteString("set safe_for_shadow_testing only when you are certain re-running it causes no ")
	b.WriteString("double charges, double writes, or other duplicated external effects. ")
	b.WriteString("When unsure, report the side effects honestly rather than marking it safe.\n\n")
	b.WriteString("Program:\n\n")
	b.WriteString(code)
	b.WriteString("\n\nRespond with ONLY the JSON object.")
	return b.String()
}
