package extension

import (
	"reflect"
	"strings"

	"github.com/soyeahso/nanoagent/pkg/toolkit"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// toolkitImportPath is the import path extensions use for the toolkit package.
const toolkitImportPath = "github.com/soyeahso/nanoagent/pkg/toolkit"

// allowedPackages are the standard library packages extensions may import.
// Anything else fails to resolve in the interpreter. "os" is absent, so the
// filesystem is reachable only through what the host passes in.
var allowedPackages = map[string]bool{
	"bytes":           true,
	"context":         true,
	"encoding/base64": true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"io":              true,
	"math":            true,
	"math/rand":       true,
	"net/http":        true,
	"net/url":         true,
	"path":            true,
	"path/filepath":   true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
	"unicode/utf8":    true,
}

var toolkitSymbols = interp.Exports{
	toolkitImportPath + "/toolkit": {
		"Spec":   reflect.ValueOf((*toolkit.Spec)(nil)),
		"Config": reflect.ValueOf((*toolkit.Config)(nil)),
	},
}

// sandboxSymbols returns the allowed subset of the interpreter's stdlib
// symbols. Keys have the form "import/path/name".
func sandboxSymbols() interp.Exports {
	out := interp.Exports{}
	for key, syms := range stdlib.Symbols {
		i := strings.LastIndex(key, "/")
		if i < 0 {
			continue
		}
		if allowedPackages[key[:i]] {
			out[key] = syms
		}
	}
	return out
}
