// Package extension hot-loads tool extensions written in Go from the
// workspace. Files are scanned for forbidden patterns, interpreted with yaegi
// and registered with the agent's tool registry.
package extension

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/nanoagent/internal/agent"
	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/soyeahso/nanoagent/pkg/toolkit"
	"github.com/traefik/yaegi/interp"
)

// entryPoint is the function every extension must declare.
const entryPoint = "New"

// Loader discovers extension files in a directory and registers the tools
// they define. A loaded file is never evaluated again, so edits take effect
// only after a restart. A rejected file is retried once its content changes.
type Loader struct {
	dir      string
	cfg      toolkit.Config
	registry *Registry
	hooks    *hooks.Manager
	log      *logging.Logger

	mu       sync.Mutex
	rejected map[string]string // file → content hash at rejection
}

// NewLoader creates a loader for dir. cfg is passed to extensions whose New
// accepts a toolkit.Config.
func NewLoader(dir string, cfg toolkit.Config, hm *hooks.Manager, log *logging.Logger) *Loader {
	return &Loader{
		dir:      dir,
		cfg:      cfg,
		registry: NewRegistry(),
		hooks:    hm,
		log:      log.Sub("extensions"),
		rejected: make(map[string]string),
	}
}

// Dir returns the directory being scanned.
func (l *Loader) Dir() string { return l.dir }

// Registry returns the record of loaded files.
func (l *Loader) Registry() *Registry { return l.registry }

// LoadNew scans the directory and registers tools from files that have not
// been loaded yet. It returns the number of tools added. Rejections are
// logged and never returned.
func (l *Loader) LoadNew(ctx context.Context, tools *agent.ToolRegistry) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := Candidates(l.dir)
	if err != nil {
		l.log.Warn().Err(err).Str("dir", l.dir).Msg("cannot scan extension directory")
		return 0
	}

	added := 0
	for _, file := range files {
		if l.registry.Has(file) {
			continue
		}

		src, err := os.ReadFile(file)
		if err != nil {
			l.reject(ctx, "", &RejectError{File: file, Reason: ReasonUnreadable, Err: err})
			continue
		}
		hash := contentHash(src)
		if l.rejected[file] == hash {
			continue
		}

		spec, err := l.evaluate(file, src)
		if err != nil {
			l.reject(ctx, hash, asReject(file, err))
			continue
		}

		if tools.Has(spec.Name) {
			l.reject(ctx, hash, &RejectError{
				File:   file,
				Reason: ReasonNameCollision,
				Err:    fmt.Errorf("tool %q is already registered", spec.Name),
			})
			continue
		}
		if err := tools.Register(newTool(spec, file)); err != nil {
			l.reject(ctx, hash, &RejectError{File: file, Reason: ReasonNameCollision, Err: err})
			continue
		}

		if err := l.registry.Add(Entry{File: file, Tool: spec.Name, Hash: hash}); err != nil {
			l.log.Warn().Err(err).Str("file", file).Msg("extension bookkeeping failed")
		}
		delete(l.rejected, file)
		added++

		l.log.Info().Str("tool", spec.Name).Str("file", filepath.Base(file)).Msg("extension loaded")
		l.hooks.Emit(ctx, hooks.EventExtensionLoaded, map[string]any{
			"file": file,
			"tool": spec.Name,
		})
	}
	return added
}

// Verdict is the outcome of checking one extension file.
type Verdict struct {
	File string
	Tool string
	Err  error // nil when the file would load
}

// Check evaluates every candidate file without registering anything. Tools
// named in taken are reported as collisions, as are duplicates within dir.
func (l *Loader) Check(taken []string) ([]Verdict, error) {
	files, err := Candidates(l.dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(taken))
	for _, n := range taken {
		seen[n] = true
	}

	out := make([]Verdict, 0, len(files))
	for _, file := range files {
		v := Verdict{File: file}
		src, err := os.ReadFile(file)
		if err != nil {
			v.Err = &RejectError{File: file, Reason: ReasonUnreadable, Err: err}
			out = append(out, v)
			continue
		}
		spec, err := l.evaluate(file, src)
		switch {
		case err != nil:
			v.Err = asReject(file, err)
		case seen[spec.Name]:
			v.Tool = spec.Name
			v.Err = &RejectError{File: file, Reason: ReasonNameCollision, Err: fmt.Errorf("tool %q is already registered", spec.Name)}
		default:
			v.Tool = spec.Name
			seen[spec.Name] = true
		}
		out = append(out, v)
	}
	return out, nil
}

// Candidates lists the extension files in dir in name order: *.go files not
// starting with "_" and not ending in _test.go. A missing dir yields none.
func Candidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// evaluate scans and interprets one file and returns the tool it defines.
func (l *Loader) evaluate(file string, src []byte) (spec toolkit.Spec, err error) {
	if v, found := Scan(src); found {
		return spec, &RejectError{
			File:    file,
			Reason:  ReasonForbiddenPattern,
			Pattern: v.Pattern,
			Err:     fmt.Errorf("matched %q", v.Match),
		}
	}

	pkg, err := packageName(file, src)
	if err != nil {
		return spec, &RejectError{File: file, Reason: ReasonEvalFailed, Err: err}
	}

	// Interpreted code can panic while being evaluated or constructed.
	defer func() {
		if r := recover(); r != nil {
			err = &RejectError{File: file, Reason: ReasonEvalFailed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	i := interp.New(interp.Options{})
	if err := i.Use(sandboxSymbols()); err != nil {
		return spec, &RejectError{File: file, Reason: ReasonEvalFailed, Err: err}
	}
	if err := i.Use(toolkitSymbols); err != nil {
		return spec, &RejectError{File: file, Reason: ReasonEvalFailed, Err: err}
	}
	if _, err := i.Eval(string(src)); err != nil {
		return spec, &RejectError{File: file, Reason: ReasonEvalFailed, Err: err}
	}

	v, err := i.Eval(pkg + "." + entryPoint)
	if err != nil {
		return spec, &RejectError{File: file, Reason: ReasonEntryPoint, Err: fmt.Errorf("no %s function: %w", entryPoint, err)}
	}
	switch fn := v.Interface().(type) {
	case func() toolkit.Spec:
		spec = fn()
	case func(toolkit.Config) toolkit.Spec:
		spec = fn(l.cfg)
	default:
		return spec, &RejectError{
			File:   file,
			Reason: ReasonEntryPoint,
			Err:    fmt.Errorf("%s has type %T, want func() toolkit.Spec or func(toolkit.Config) toolkit.Spec", entryPoint, v.Interface()),
		}
	}

	if spec.Name == "" {
		return spec, &RejectError{File: file, Reason: ReasonInvalidSpec, Err: errors.New("tool name is empty")}
	}
	if spec.Execute == nil {
		return spec, &RejectError{File: file, Reason: ReasonInvalidSpec, Err: errors.New("Execute is nil")}
	}
	return spec, nil
}

func (l *Loader) reject(ctx context.Context, hash string, rerr *RejectError) {
	if hash != "" {
		l.rejected[rerr.File] = hash
	}
	ev := l.log.Warn().
		Str("file", filepath.Base(rerr.File)).
		Str("reason", rerr.Reason)
	if rerr.Pattern != "" {
		ev = ev.Str("pattern", rerr.Pattern)
	}
	if rerr.Err != nil {
		ev = ev.Err(rerr.Err)
	}
	ev.Msg("extension rejected")

	l.hooks.Emit(ctx, hooks.EventExtensionRejected, map[string]any{
		"file":    rerr.File,
		"reason":  rerr.Reason,
		"pattern": rerr.Pattern,
	})
}

func packageName(file string, src []byte) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), file, src, parser.PackageClauseOnly)
	if err != nil {
		return "", err
	}
	if f.Name.Name == "main" {
		return "", errors.New("extension must not be package main")
	}
	return f.Name.Name, nil
}

func asReject(file string, err error) *RejectError {
	var rerr *RejectError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &RejectError{File: file, Reason: ReasonEvalFailed, Err: err}
}

func contentHash(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
