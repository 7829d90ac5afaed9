package extension

import "regexp"

// forbiddenPattern is one static check run against extension source.
type forbiddenPattern struct {
	name string
	re   *regexp.Regexp
}

// Checked in order; the first match rejects the file. The scan is textual
// and therefore easy to evade; it is a deterrent, not an isolation boundary.
var forbiddenPatterns = []forbiddenPattern{
	// process spawning
	{"os/exec import", regexp.MustCompile(`"os/exec"`)},
	{"exec.Command", regexp.MustCompile(`\bexec\.Command(Context)?\s*\(`)},
	{"os.StartProcess", regexp.MustCompile(`\bos\.StartProcess\s*\(`)},
	{"syscall exec", regexp.MustCompile(`\bsyscall\.(Exec|ForkExec|StartProcess)\s*\(`)},

	// raw file open
	{"os.Open", regexp.MustCompile(`\bos\.(Open|OpenFile|Create|NewFile)\s*\(`)},
	{"syscall.Open", regexp.MustCompile(`\bsyscall\.(Open|Openat|Creat)\s*\(`)},
	{"os file access", regexp.MustCompile(`\bos\.(ReadFile|WriteFile|ReadDir|Rename|Chmod|Chown|Lchown|Chtimes|Symlink|Link|Readlink|Mkdir\w*|CopyFS|DirFS)\b`)},

	// dynamic loading and evaluation
	{"plugin import", regexp.MustCompile(`"plugin"`)},
	{"interpreter import", regexp.MustCompile(`"github\.com/traefik/yaegi`)},
	{"go/build tooling", regexp.MustCompile(`"go/(build|types|importer)"`)},
	{"reflect import", regexp.MustCompile(`"reflect"`)},

	// raw sockets
	{"net import", regexp.MustCompile(`"net"`)},
	{"net.Dial", regexp.MustCompile(`\bnet\.(Dial|DialTimeout|Listen|ListenPacket|FileConn)\w*\s*\(`)},
	{"syscall.Socket", regexp.MustCompile(`\bsyscall\.(Socket|Bind|Connect)\s*\(`)},

	// low-level deletion
	{"os.Remove", regexp.MustCompile(`\bos\.(Remove|RemoveAll|Truncate)\s*\(`)},
	{"syscall unlink", regexp.MustCompile(`\bsyscall\.(Unlink|Unlinkat|Rmdir)\s*\(`)},

	// foreign function interface
	{"unsafe import", regexp.MustCompile(`"unsafe"`)},
	{"cgo import", regexp.MustCompile(`import\s+"C"`)},
	{"syscall import", regexp.MustCompile(`"syscall"`)},
	{"golang.org/x/sys", regexp.MustCompile(`"golang\.org/x/sys/`)},
}

// Violation describes the first forbidden pattern found in a source file.
type Violation struct {
	Pattern string
	Match   string
}

// Scan returns the first forbidden pattern matched by src, in check order.
func Scan(src []byte) (Violation, bool) {
	for _, p := range forbiddenPatterns {
		if m := p.re.Find(src); m != nil {
			return Violation{Pattern: p.name, Match: string(m)}, true
		}
	}
	return Violation{}, false
}

// PatternNames lists the forbidden patterns in check order.
func PatternNames() []string {
	out := make([]string, len(forbiddenPatterns))
	for i, p := range forbiddenPatterns {
		out[i] = p.name
	}
	return out
}
