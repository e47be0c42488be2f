package forge

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/axonforge/engine/pkg/domain"
)

// Validate parses code as Go source and checks it defines both
// Execute and main, and imports none of BannedImports. A syntax error
// fails validation, as does a banned import or a missing required
// function.
func Validate(code string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "forged_tool.go", code, parser.AllErrors)
	if err != nil {
		return fmt.Errorf("%w: generated tool has a syntax error: %w", domain.ErrExecution, err)
	}

	for _, banned := range BannedImports {
		if strings.Contains(code, banned) {
			return fmt.Errorf("%w: generated tool imports banned package %s", domain.ErrExecution, banned)
		}
	}

	hasExecute, hasMain := false, false
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		switch fn.Name.Name {
		case "Execute":
			hasExecute = true
		case "main":
			hasMain = true
		}
	}

	if !hasExecute {
		return fmt.Errorf("%w: generated tool does not define Execute", domain.ErrExecution)
	}
	if !hasMain {
		return fmt.Errorf("%w: generated tool does not define main", domain.ErrExecution)
	}
	return nil
}
