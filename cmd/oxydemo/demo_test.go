package main

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/camera"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/config"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCamera(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	defer backend.Release()

	view, err := backend.CreateTexture("checker", checker())
	require.NoError(t, err)
	sampler, err := backend.CreateSampler("checker", common.SamplerStagingData{})
	require.NoError(t, err)

	rs := resource_set.NewResourceSet(backend, resource_set.WithFramesInFlight(2))
	require.NoError(t, declareCamera(rs, view, sampler))
	require.NoError(t, rs.Finalize())
	defer rs.Release()

	n, err := writeCamera(rs, newCamera(), engine.Frame{Index: 1, Number: 30})
	require.NoError(t, err)
	assert.Equal(t, camera.UniformSize+4+12+modelCount*64, n)

	ubo, err := rs.UniformBuffer(0)
	require.NoError(t, err)
	got, err := ubo.ReadMember(uniform.Accessor(memberTimeLight).Field(0), 1)
	require.NoError(t, err)
	assert.Equal(t, uniform.EncodeScalar(0.5), got)

	untouched, err := ubo.ReadMember(uniform.Accessor(memberTimeLight).Field(0), 0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 4), untouched)

	buf, err := ubo.Buffer(1)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Flushes(buf.Handle()))
}

func TestRunHeadless(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.FramesInFlight = 3
	require.NoError(t, run(cfg, 9))
}
