package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cameraYAML = `
label: camera
buffers:
  - name: globals
    members:
      - types: [scalar, vec3]
      - types: [mat4]
        array: 3
image_arrays: [4]
samplers: 1
`

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(logrus.New())
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeDecl(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDescribe(t *testing.T) {
	path := writeDecl(t, "camera.yaml", cameraYAML)
	out, _, err := run(t, "describe", "--frames", "3", path)
	require.NoError(t, err)

	assert.Contains(t, out, "# camera")
	assert.Contains(t, out, "3 frames in flight")
	assert.Contains(t, out, `buffer 0 "globals", 224 bytes`)
	assert.Contains(t, out, "structured_buffer")
	assert.Contains(t, out, "image_array")
	assert.Regexp(t, `sampled_image\s+12`, out)
	assert.Regexp(t, `uniform_buffer\s+3`, out)
	assert.Regexp(t, `max sets\s+3`, out)
}

func TestVerify(t *testing.T) {
	good := writeDecl(t, "camera.yaml", cameraYAML)
	out, _, err := run(t, "verify", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "2 frames")
}

func TestVerifyReportsFailures(t *testing.T) {
	good := writeDecl(t, "camera.yaml", cameraYAML)
	bad := writeDecl(t, "bad.toml", "image_arrays = [0]\n")
	out, _, err := run(t, "verify", good, bad)
	assert.Error(t, err)
	assert.Contains(t, out, "camera")
}

func TestRequiresFiles(t *testing.T) {
	_, _, err := run(t, "describe")
	assert.Error(t, err)
	_, _, err = run(t, "--log-level", "loud", "describe", "x.yaml")
	assert.Error(t, err)
}
