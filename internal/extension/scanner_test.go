package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanForbiddenPatterns(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		pattern string
	}{
		{"exec import", `import "os/exec"`, "os/exec import"},
		{"exec command", `out := exec.Command("ls")`, "exec.Command"},
		{"exec command context", `exec.CommandContext(ctx, "ls")`, "exec.Command"},
		{"start process", `os.StartProcess("/bin/sh", nil, attr)`, "os.StartProcess"},
		{"open", `f, err := os.Open("/etc/passwd")`, "os.Open"},
		{"create", `os.Create ("x")`, "os.Open"},
		{"write file", `os.WriteFile(p, []byte("x"), 0o644)`, "os file access"},
		{"read file", `data, _ := os.ReadFile("notes.md")`, "os file access"},
		{"rename", `os.Rename(a, b)`, "os file access"},
		{"symlink", `os.Symlink("/etc", "etc")`, "os file access"},
		{"mkdir all", `os.MkdirAll(dir, 0o755)`, "os file access"},
		{"func value", `write := os.WriteFile`, "os file access"},
		{"plugin", `import "plugin"`, "plugin import"},
		{"interpreter", `import "github.com/traefik/yaegi/interp"`, "interpreter import"},
		{"reflect", `import "reflect"`, "reflect import"},
		{"raw socket", `import "net"`, "net import"},
		{"dial", `conn, _ := net.Dial("tcp", "x:1")`, "net.Dial"},
		{"remove", `os.RemoveAll(dir)`, "os.Remove"},
		{"unsafe", `import "unsafe"`, "unsafe import"},
		{"cgo", "import \"C\"", "cgo import"},
		{"syscall", `import "syscall"`, "syscall import"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, found := Scan([]byte(tt.src))
			assert.True(t, found)
			assert.Equal(t, tt.pattern, v.Pattern)
		})
	}
}

func TestScanFirstMatchWins(t *testing.T) {
	src := `import "os/exec"
func f() { os.Remove("x") }`
	v, found := Scan([]byte(src))
	assert.True(t, found)
	assert.Equal(t, "os/exec import", v.Pattern)
	assert.Equal(t, `"os/exec"`, v.Match)
}

func TestScanCleanSource(t *testing.T) {
	for _, src := range []string{greetSrc, configSrc, `p := filepath.Join(ws, "notes.md")`, `import "net/http"`} {
		_, found := Scan([]byte(src))
		assert.False(t, found, src)
	}
}

func TestPatternNamesOrdered(t *testing.T) {
	names := PatternNames()
	assert.Equal(t, "os/exec import", names[0])
	assert.Len(t, names, len(forbiddenPatterns))
}
