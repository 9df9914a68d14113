package chi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const identityModuleJSON = `{
  "dependencies": [],
  "types": {
    "Pair": [
      {"a": "lang:i32"},
      {"b": "lang:i32"}
    ]
  },
  "graphs": [
    {
      "name": "identity",
      "data_inputs":  [{"label": "x", "type": "lang:i32"}],
      "data_outputs": [{"label": "y", "type": "lang:i32"}],
      "exec_inputs":  [""],
      "exec_outputs": [""],
      "entry": "entry",
      "exit": "exit",
      "nodes": {
        "entry": {"type": "lang:entry", "location": [0, 0], "data": {"data": [{"x": "lang:i32"}], "exec": [""]}},
        "exit":  {"type": "lang:exit",  "location": [100, 0], "data": {"data": [{"y": "lang:i32"}], "exec": [""]}}
      },
      "connections": [
        {"type": "exec", "input": ["entry", 0], "output": ["exit", 0]},
        {"type": "data", "input": ["entry", 0], "output": ["exit", 0]}
      ]
    }
  ]
}`

// TestParseGraphModuleJSON_TypesObjectShape covers spec.md §6: "types" is a
// JSON object keyed by struct name, each value an ordered array of
// single-key {"field": "module:type"} objects, not an array of {name,
// fields} records.
func TestParseGraphModuleJSON_TypesObjectShape(t *testing.T) {
	ctx := NewContext()
	gm, deps, res := ParseGraphModuleJSONWithContext(ctx, "test/identity", []byte(identityModuleJSON))
	require.True(t, res.Success, res.String())
	assert.Empty(t, deps)

	pairType, ok := gm.TypeFromName("Pair")
	require.True(t, ok)
	st, ok := gm.structByName("Pair")
	require.True(t, ok)
	assert.Equal(t, "Pair", st.Name)
	require.Len(t, st.Fields, 2)

	labels := map[string]bool{}
	for _, f := range st.Fields {
		labels[f.Label] = true
		assert.Equal(t, "i32", f.Type.UnqualifiedName())
	}
	assert.True(t, labels["a"] && labels["b"])
	assert.True(t, pairType.Valid())
}

// TestParseGraphModuleJSON_GraphLoadsAndCompiles confirms the parsed module
// actually compiles, exercising the full loader+compiler path against the
// corrected JSON shape.
func TestParseGraphModuleJSON_GraphLoadsAndCompiles(t *testing.T) {
	ctx := NewContext()
	gm, _, res := ParseGraphModuleJSONWithContext(ctx, "test/identity", []byte(identityModuleJSON))
	require.True(t, res.Success, res.String())
	require.True(t, ctx.AddModule(gm))

	backendMod, compileRes := ctx.CompileModule(nil, "test/identity", DefaultCompileSettings)
	require.True(t, compileRes.Success, compileRes.String())
	_, ok := backendMod.Function("identity")
	assert.True(t, ok)
}

// TestGraphModule_ToJSON_RoundTrip confirms ToJSON emits the same "types"
// object shape ParseGraphModuleJSON accepts, so a module saved then
// reloaded parses cleanly.
func TestGraphModule_ToJSON_RoundTrip(t *testing.T) {
	ctx := NewContext()
	gm, _, res := ParseGraphModuleJSONWithContext(ctx, "test/identity", []byte(identityModuleJSON))
	require.True(t, res.Success, res.String())

	out, err := gm.ToJSON()
	require.NoError(t, err)

	reloaded, _, res2 := ParseGraphModuleJSONWithContext(NewContext(), "test/identity", out)
	require.True(t, res2.Success, res2.String())
	_, ok := reloaded.structByName("Pair")
	assert.True(t, ok)
	_, ok = reloaded.FunctionByName("identity")
	assert.True(t, ok)
}

// TestLoadModule_PopulatesPersistedCache covers the content-hash-keyed
// compile cache end to end: loading and compiling a module fetched through
// a ModuleSource populates the configured modulecache.Cache, keyed by the
// module's content hash.
func TestLoadModule_PopulatesPersistedCache(t *testing.T) {
	ctx := NewContext(WithModuleSource(MemorySource{
		"test/identity": []byte(identityModuleJSON),
	}))

	_, loadRes := ctx.LoadModule(context.Background(), "test/identity")
	require.True(t, loadRes.Success, loadRes.String())

	_, compileRes := ctx.CompileModule(context.Background(), "test/identity", DefaultCompileSettings)
	require.True(t, compileRes.Success, compileRes.String())

	hash := ContentHash([]byte(identityModuleJSON))
	entry, found, err := ctx.cache.Get(context.Background(), "test/identity", hash)
	require.NoError(t, err)
	require.True(t, found, "a successful compile of a loaded module should populate the persisted cache")
	assert.NotEmpty(t, entry.IR)
	assert.Equal(t, hash, entry.ContentHash)
}
