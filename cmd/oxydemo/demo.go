package main

import (
	"image"
	"image/color"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/camera"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/config"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/profiler"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Members appended after the camera block.
const (
	memberTimeLight = camera.MemberEye + 1 + iota
	memberModels
)

const modelCount = 4

// checker returns a 2x2 checkerboard texture.
func checker() common.TextureStagingData {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	light, dark := color.RGBA{255, 255, 255, 255}, color.RGBA{40, 40, 40, 255}
	img.SetRGBA(0, 0, light)
	img.SetRGBA(1, 0, dark)
	img.SetRGBA(0, 1, dark)
	img.SetRGBA(1, 1, light)
	return common.NewTextureStagingData(img)
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		envFiles   []string
		frames     int
	)
	cmd := &cobra.Command{
		Use:          "oxydemo",
		Short:        "Drive a camera resource set through the frame-in-flight cycle",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, config.WithEnvFiles(envFiles...))
			if err != nil {
				return err
			}
			return run(cfg, frames)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "TOML configuration file")
	cmd.Flags().StringSliceVar(&envFiles, "env", []string{".env"}, ".env files")
	cmd.Flags().IntVar(&frames, "frames", 240, "frames to produce when running headless")
	return cmd
}

// demo owns everything the frame loop touches.
type demo struct {
	backend renderer.RendererBackend
	win     window.Window
	eng     engine.Engine
	set     resource_set.ResourceSet
	cam     camera.Camera
	prof    *profiler.Profiler
	logger  logrus.FieldLogger

	textures []renderer.ImageViewHandle
	samplers []renderer.SamplerHandle
}

func run(cfg config.Config, headlessFrames int) error {
	logger := cfg.NewLogger()
	d, err := newDemo(cfg, logger)
	if err != nil {
		return err
	}
	defer d.release()

	logger.WithFields(logrus.Fields{
		"backend": d.backend.Type(),
		"frames":  cfg.FramesInFlight,
		"window":  d.win != nil,
	}).Info("[oxydemo] running")

	if d.win != nil {
		return d.eng.Run()
	}
	return d.eng.RunFrames(headlessFrames)
}

func newDemo(cfg config.Config, logger *logrus.Logger) (*demo, error) {
	backendType, err := cfg.BackendType()
	if err != nil {
		return nil, err
	}

	d := &demo{logger: logger, cam: newCamera()}
	opts := cfg.RendererOptions(logger)
	if backendType == renderer.BackendTypeWGPU {
		d.win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithWidth(cfg.Window.Width),
			window.WithHeight(cfg.Window.Height),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, renderer.WithSurfaceDescriptor(d.win.SurfaceDescriptor()))
	}

	d.backend, err = renderer.NewRendererBackend(backendType, opts...)
	if err != nil {
		d.release()
		return nil, err
	}

	if err := d.buildSet(cfg); err != nil {
		d.release()
		return nil, err
	}

	d.prof = profiler.NewProfiler(profiler.WithLogger(logger))
	d.eng = engine.NewEngine(
		engine.WithLogger(logger),
		engine.WithWindow(d.win),
		engine.WithFramesInFlight(cfg.FramesInFlight),
		engine.WithProfiler(d.prof),
		engine.WithProfiling(cfg.Profiling),
		engine.WithRenderFrameLimit(60),
		engine.WithFrameCallback(d.frame),
	)
	if err := d.eng.AddResourceSet(0, d.set); err != nil {
		d.release()
		return nil, err
	}
	return d, nil
}

func (d *demo) buildSet(cfg config.Config) error {
	view, err := d.backend.CreateTexture("checker", checker())
	if err != nil {
		return err
	}
	d.textures = append(d.textures, view)
	sampler, err := d.backend.CreateSampler("checker", common.SamplerStagingData{})
	if err != nil {
		return err
	}
	d.samplers = append(d.samplers, sampler)

	rs := resource_set.NewResourceSet(d.backend,
		resource_set.WithLabel("camera"),
		resource_set.WithFramesInFlight(cfg.FramesInFlight),
		resource_set.WithCoherentMemory(cfg.HostCoherent),
		resource_set.WithLogger(d.logger),
	)
	if err := declareCamera(rs, view, sampler); err != nil {
		return err
	}
	if err := rs.Finalize(); err != nil {
		return err
	}
	d.set = rs
	return nil
}

// declareCamera declares the camera buffer, one sampled image and its sampler.
func declareCamera(rs resource_set.ResourceSet, view renderer.ImageViewHandle, sampler renderer.SamplerHandle) error {
	_, err := rs.AddUniformBuffer(camera.UniformMembers(
		uniform.Member(uniform.Scalar, uniform.Vec3),
		uniform.Array(modelCount, uniform.Mat4),
	)...)
	if err != nil {
		return err
	}
	if err := rs.AddImageArray(view); err != nil {
		return err
	}
	return rs.AddSampler(sampler)
}

func newCamera() camera.Camera {
	ctrl := camera.NewCameraController(
		camera.WithRadius(6),
		camera.WithElevation(0.46),
		camera.WithOrbitSpeed(1.0/60),
	)
	return camera.NewCamera(
		camera.WithController(ctrl),
		camera.WithFov(mgl32.DegToRad(60)),
		camera.WithAspect(16.0/9.0),
	)
}

func (d *demo) frame(f engine.Frame) error {
	if d.win != nil && d.win.Height() > 0 {
		d.cam.SetAspect(float32(d.win.Width()) / float32(d.win.Height()))
	}
	d.cam.Controller().Orbit(1, 0)
	d.cam.Update()
	n, err := writeCamera(d.set, d.cam, f)
	if err != nil {
		return err
	}
	d.prof.RecordWrite(n)
	return nil
}

type memberWrite struct {
	acc  uniform.MemberAccessor
	data []byte
}

// writeCamera fills the camera buffer of the frame's slot and returns the number of bytes written.
func writeCamera(rs resource_set.ResourceSet, cam camera.Camera, f engine.Frame) (int, error) {
	t := float32(f.Number) / 60
	written, err := camera.WriteUniform(cam, rs, 0, f.Index, false)
	if err != nil {
		return written, err
	}

	writes := []memberWrite{
		{uniform.Accessor(memberTimeLight).Field(0), uniform.EncodeScalar(t)},
		{uniform.Accessor(memberTimeLight).Field(1), uniform.EncodeVec3(mgl32.Vec3{-1, -2, -1}.Normalize())},
	}
	for i := 0; i < modelCount; i++ {
		model := mgl32.Translate3D(float32(i)*2-3, 0, 0).Mul4(mgl32.HomogRotate3DY(t * float32(i+1)))
		writes = append(writes, memberWrite{uniform.Accessor(memberModels).At(i), uniform.EncodeMat4(model)})
	}

	for _, w := range writes {
		if err := rs.WriteMember(0, w.acc, w.data, f.Index, false); err != nil {
			return written, err
		}
		written += len(w.data)
	}

	// One upload per frame for the whole buffer.
	ubo, err := rs.UniformBuffer(0)
	if err != nil {
		return written, err
	}
	return written, ubo.Flush(f.Index)
}

// release tears down in reverse order of creation. The window goes last since the
// WebGPU surface is created from it.
func (d *demo) release() {
	if d.eng != nil {
		d.eng.Quit()
	}
	if d.set != nil {
		d.set.Release()
	}
	if d.backend != nil {
		for _, v := range d.textures {
			d.backend.ReleaseTexture(v)
		}
		for _, s := range d.samplers {
			d.backend.ReleaseSampler(s)
		}
		d.backend.Release()
	}
	if d.eng != nil {
		d.eng.Shutdown()
	} else if d.win != nil {
		_ = d.win.Close()
	}
}
