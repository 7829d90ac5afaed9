package plugin

import (
	"context"
	"testing"

	"github.com/soyeahso/nanoagent/internal/hooks"
	"github.com/soyeahso/nanoagent/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPlugin struct {
	id         string
	initErr    error
	closeErr   error
	initCalls  int
	closeCalls int
	closed     *[]string
}

func (p *testPlugin) ID() string { return p.id }
func (p *testPlugin) Init(_ context.Context, api API) error {
	p.initCalls++
	return p.initErr
}
func (p *testPlugin) Close() error {
	p.closeCalls++
	if p.closed != nil {
		*p.closed = append(*p.closed, p.id)
	}
	return p.closeErr
}

func testRegistry() (*Registry, *hooks.Manager) {
	log := logging.New(nil, "silent")
	hm := hooks.NewManager(log)
	return NewRegistry(hm, log), hm
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg, _ := testRegistry()
	require.NoError(t, reg.Register(&testPlugin{id: "x"}))
	err := reg.Register(&testPlugin{id: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_GetAndList(t *testing.T) {
	reg, _ := testRegistry()
	require.NoError(t, reg.Register(&testPlugin{id: "b"}))
	require.NoError(t, reg.Register(&testPlugin{id: "a"}))

	assert.Equal(t, []string{"b", "a"}, reg.List())
	assert.Equal(t, "a", reg.Get("a").ID())
	assert.Nil(t, reg.Get("missing"))
}

func TestRegistry_InitAllOnce(t *testing.T) {
	reg, _ := testRegistry()
	p := &testPlugin{id: "a"}
	require.NoError(t, reg.Register(p))

	require.NoError(t, reg.InitAll(context.Background()))
	require.NoError(t, reg.InitAll(context.Background()))
	assert.Equal(t, 1, p.initCalls)
}

func TestRegistry_InitFailureClosesOnlyInitialized(t *testing.T) {
	reg, _ := testRegistry()
	ok := &testPlugin{id: "ok"}
	bad := &testPlugin{id: "bad", initErr: assert.AnError}
	never := &testPlugin{id: "never"}
	for _, p := range []*testPlugin{ok, bad, never} {
		require.NoError(t, reg.Register(p))
	}

	err := reg.InitAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, 0, never.initCalls)

	reg.CloseAll()
	assert.Equal(t, 1, ok.closeCalls)
	assert.Equal(t, 0, bad.closeCalls)
	assert.Equal(t, 0, never.closeCalls)
}

func TestRegistry_CloseAllReverseOrder(t *testing.T) {
	reg, _ := testRegistry()
	var closed []string
	require.NoError(t, reg.Register(&testPlugin{id: "a", closed: &closed}))
	require.NoError(t, reg.Register(&testPlugin{id: "b", closeErr: assert.AnError, closed: &closed}))
	require.NoError(t, reg.InitAll(context.Background()))

	reg.CloseAll()
	reg.CloseAll()
	assert.Equal(t, []string{"b", "a"}, closed)
}

func TestActivity_CountsEvents(t *testing.T) {
	reg, hm := testRegistry()
	act := NewActivity()
	require.NoError(t, reg.Register(act))
	require.NoError(t, reg.InitAll(context.Background()))

	ctx := context.Background()
	hm.Emit(ctx, hooks.EventToolExecuted, map[string]any{"tool": "message", "session": "irc:#a"})
	hm.Emit(ctx, hooks.EventToolExecuted, map[string]any{"tool": "sticker"})
	hm.Emit(ctx, hooks.EventExtensionRejected, map[string]any{"file": "x.go", "reason": "name collision"})

	assert.Equal(t, 2, act.Count(hooks.EventToolExecuted))
	assert.Equal(t, 1, act.Count(hooks.EventExtensionRejected))
	assert.Equal(t, 0, act.Count(hooks.EventSessionReset))
	assert.Equal(t, []string{hooks.EventExtensionRejected, hooks.EventToolExecuted}, act.Events())

	reg.CloseAll()
	assert.Equal(t, 0, hm.Count(hooks.EventToolExecuted))
	hm.Emit(ctx, hooks.EventToolExecuted, nil)
	assert.Equal(t, 2, act.Count(hooks.EventToolExecuted))
}

func TestActivity_CloseBeforeInit(t *testing.T) {
	assert.NoError(t, NewActivity().Close())
}
