package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const materialYAML = `
label: material
frames_in_flight: 3
buffers:
  - name: globals
    members:
      - name: view_proj
        types: [mat4]
      - name: light
        types: [scalar, vec3]
      - name: bones
        types: [mat4]
        array: 3
combined_image_samplers: 1
image_arrays: [2]
samplers: 1
`

const materialTOML = `
label = "material"
frames_in_flight = 3
combined_image_samplers = 1
image_arrays = [2]
samplers = 1

[[buffers]]
name = "globals"

[[buffers.members]]
name = "view_proj"
types = ["mat4"]

[[buffers.members]]
name = "light"
types = ["scalar", "vec3"]

[[buffers.members]]
name = "bones"
types = ["mat4"]
array = 3
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader() Loader {
	logger, _ := test.NewNullLogger()
	return NewLoader(WithLogger(logger), WithWorkers(2))
}

func TestLoadFormatsAgree(t *testing.T) {
	dir := t.TempDir()
	l := newTestLoader()

	fromYAML, err := l.Load(writeFile(t, dir, "material.yaml", materialYAML))
	require.NoError(t, err)
	fromTOML, err := l.Load(writeFile(t, dir, "material.toml", materialTOML))
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromTOML)

	assert.Equal(t, "material", fromYAML.Label)
	assert.Equal(t, 3, fromYAML.FramesInFlight)
	require.Len(t, fromYAML.Buffers, 1)
	assert.Equal(t, uint32(3), fromYAML.Buffers[0].Members[2].Array)
	assert.Len(t, l.Files(), 2)
}

func TestLoadLayouts(t *testing.T) {
	l := newTestLoader()
	f, err := l.LoadReader("material", strings.NewReader(materialYAML), BackendTypeYAML)
	require.NoError(t, err)

	layouts, err := f.Layouts()
	require.NoError(t, err)
	require.Len(t, layouts, 1)

	members := layouts[0].Members()
	assert.Equal(t, []uint64{0}, members[0].Offsets)
	assert.Equal(t, []uint64{64, 80}, members[1].Offsets)
	assert.Equal(t, uint64(28), members[1].ArrayStride)
	assert.Equal(t, []uint64{96}, members[2].Offsets)
	assert.Equal(t, uint64(64), members[2].ArrayStride)
	assert.Equal(t, uint64(96+192), layouts[0].Size())
}

func TestLoadCachesByPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cached.yml", materialYAML)
	l := newTestLoader()

	first, err := l.Load(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, l.Get(path))
}

func TestLoadDefaultsLabelToFileName(t *testing.T) {
	dir := t.TempDir()
	l := newTestLoader()
	f, err := l.Load(writeFile(t, dir, "skybox.toml", "samplers = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "skybox", f.Label)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]struct {
		name    string
		content string
		target  error
	}{
		"unsupported extension": {name: "set.json", content: "{}"},
		"unknown yaml key":      {name: "a.yaml", content: "lable: x\n"},
		"unknown toml key":      {name: "a.toml", content: "lable = \"x\"\n"},
		"empty yaml":            {name: "b.yaml", content: ""},
		"unknown member type":   {name: "c.yaml", content: "buffers:\n  - members:\n      - types: [mat3]\n", target: common.ErrUnknownType},
		"empty member":          {name: "d.yaml", content: "buffers:\n  - members:\n      - types: []\n", target: common.ErrInvalidMemberDeclaration},
		"empty buffer":          {name: "e.yaml", content: "buffers:\n  - name: x\n", target: common.ErrInvalidMemberDeclaration},
		"empty image array":     {name: "f.toml", content: "image_arrays = [0]\n", target: common.ErrInvalidDescriptorWrite},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestLoader().Load(writeFile(t, dir, tc.name, tc.content))
			require.Error(t, err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
		})
	}

	_, err := newTestLoader().Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 6; i++ {
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("set%d.yaml", i), fmt.Sprintf("label: set%d\nsamplers: %d\n", i, i)))
	}
	paths = append(paths, writeFile(t, dir, "broken.yaml", "samplers: [\n"))

	files, err := newTestLoader().LoadAll(paths...)
	assert.Error(t, err)
	require.Len(t, files, 7)
	for i := 0; i < 6; i++ {
		require.NotNil(t, files[i])
		assert.Equal(t, fmt.Sprintf("set%d", i), files[i].Label)
		assert.Equal(t, i, files[i].Samplers)
	}
	assert.Nil(t, files[6])
}

func TestSetFileDeclarations(t *testing.T) {
	f, err := newTestLoader().LoadReader("m", strings.NewReader(materialYAML), BackendTypeYAML)
	require.NoError(t, err)

	decls, err := f.Declarations()
	require.NoError(t, err)
	bindings := resource_set.AssignBindings(decls)
	require.Len(t, bindings, 4)
	assert.Equal(t, resource_set.KindStructuredBuffer, bindings[0].Kind)
	assert.Equal(t, resource_set.KindCombinedImageSampler, bindings[1].Kind)
	assert.Equal(t, resource_set.KindImageArray, bindings[2].Kind)
	assert.Equal(t, uint32(2), bindings[2].Count)
	assert.Equal(t, resource_set.KindSampler, bindings[3].Kind)
}

func TestSetFileInstantiate(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	defer backend.Release()

	f, err := newTestLoader().LoadReader("m", strings.NewReader(materialTOML), BackendTypeTOML)
	require.NoError(t, err)

	in, err := f.Instantiate(backend)
	require.NoError(t, err)
	assert.Len(t, in.Views, 3)
	assert.Len(t, in.Samplers, 2)
	assert.Equal(t, 3, in.Set.FramesInFlight())
	assert.Equal(t, resource_set.StateFinalized, in.Set.State())

	err = resource_set.WriteValue(in.Set, 0, uniform.Accessor(2).At(1), mgl32.Ident4(), 2, true)
	require.NoError(t, err)

	in.Release()
	assert.Zero(t, backend.LiveObjects())
}

func TestSetFileInstantiateFailureReleasesPlaceholders(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	defer backend.Release()

	f := &SetFile{Label: "bad", CombinedImageSamplers: 1, ImageArrays: []int{2}}
	_, err := f.Instantiate(backend, resource_set.WithFramesInFlight(0))
	assert.Error(t, err)
	assert.Zero(t, backend.LiveObjects())
}
