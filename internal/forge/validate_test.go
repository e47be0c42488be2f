package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const validSource = `package main

import (
	"encoding/json"
	"flag"
	"os"
)

func Execute(params map[string]any) (any, error) {
	return params, nil
}

func main() {
	paramsJSON := flag.String("params", "", "tool params JSON")
	flag.Parse()
	var params map[string]any
	if *paramsJSON != "" {
		_ = json.Unmarshal([]byte(*paramsJSON), &params)
	}
	result, _ := Execute(params)
	_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"result": result})
}
`

func TestValidateAcceptsWellFormedTool(t *testing.T) {
	assert.NoError(t, Validate(validSource))
}

func TestValidateRejectsSyntaxError(t *testing.T) {
	assert.Error(t, Validate("package main\nfunc Execute( {"))
}

func TestValidateRejectsMissingExecute(t *testing.T) {
	src := `package main

func main() {}
`
	assert.Error(t, Validate(src))
}

func TestValidateRejectsBannedImport(t *testing.T) {
	src := `package main

import "os/exec"

func Execute(params map[string]any) (any, error) {
	_ = exec.Command
	return nil, nil
}

func main() {}
`
	assert.Error(t, Validate(src))
}
