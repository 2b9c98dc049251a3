package loader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// SetFile is a resource set declared in a YAML or TOML file.
//
//	label: material
//	frames_in_flight: 2
//	buffers:
//	  - name: camera
//	    members:
//	      - types: [mat4]
//	      - types: [scalar, vec3]
//	      - types: [mat4]
//	        array: 3
//	combined_image_samplers: 1
//	image_arrays: [4]
//	samplers: 1
type SetFile struct {
	Label          string `yaml:"label" toml:"label"`
	FramesInFlight int    `yaml:"frames_in_flight" toml:"frames_in_flight"`

	Buffers []BufferSpec `yaml:"buffers" toml:"buffers"`

	// CombinedImageSamplers is the number of combined image/sampler bindings.
	CombinedImageSamplers int `yaml:"combined_image_samplers" toml:"combined_image_samplers"`
	// ImageArrays holds the element count of each image array binding.
	ImageArrays []int `yaml:"image_arrays" toml:"image_arrays"`
	// Samplers is the number of standalone sampler bindings.
	Samplers int `yaml:"samplers" toml:"samplers"`
}

// BufferSpec declares one uniform buffer.
type BufferSpec struct {
	Name    string       `yaml:"name" toml:"name"`
	Members []MemberSpec `yaml:"members" toml:"members"`
}

// MemberSpec declares one member. Array 0 declares a single instance.
type MemberSpec struct {
	Name  string   `yaml:"name" toml:"name"`
	Types []string `yaml:"types" toml:"types"`
	Array uint32   `yaml:"array" toml:"array"`
}

// Declarations converts the member specs to layout declarations.
//
// Returns:
//   - []uniform.MemberDeclaration: one declaration per member
//   - error: an error naming the first unknown type
func (b BufferSpec) Declarations() ([]uniform.MemberDeclaration, error) {
	if len(b.Members) == 0 {
		return nil, fmt.Errorf("buffer %q has no members: %w", b.Name, common.ErrInvalidMemberDeclaration)
	}
	decls := make([]uniform.MemberDeclaration, len(b.Members))
	for i, m := range b.Members {
		types := make([]uniform.IntrinsicType, len(m.Types))
		for j, name := range m.Types {
			t, err := uniform.ParseIntrinsicType(name)
			if err != nil {
				return nil, fmt.Errorf("buffer %q member %d (%s): %w", b.Name, i, m.Name, err)
			}
			types[j] = t
		}
		if m.Array > 0 {
			decls[i] = uniform.Array(m.Array, types...)
		} else {
			decls[i] = uniform.Member(types...)
		}
	}
	return decls, nil
}

// Layout packs the buffer's members.
//
// Returns:
//   - *uniform.StructuredBufferLayout: the packed layout
//   - error: an error if a member is invalid
func (b BufferSpec) Layout() (*uniform.StructuredBufferLayout, error) {
	decls, err := b.Declarations()
	if err != nil {
		return nil, err
	}
	layout, err := uniform.NewStructuredBufferLayout(decls...)
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", b.Name, err)
	}
	return layout, nil
}

// Validate checks counts and packs every buffer.
//
// Returns:
//   - error: every problem found, joined
func (f *SetFile) Validate() error {
	var errs []error
	if f.FramesInFlight < 0 {
		errs = append(errs, fmt.Errorf("frames_in_flight must not be negative, got %d", f.FramesInFlight))
	}
	if f.CombinedImageSamplers < 0 || f.Samplers < 0 {
		errs = append(errs, fmt.Errorf("binding counts must not be negative"))
	}
	for i, n := range f.ImageArrays {
		if n < 1 {
			errs = append(errs, fmt.Errorf("image array %d: %w", i, common.ErrInvalidDescriptorWrite))
		}
	}
	for _, b := range f.Buffers {
		if _, err := b.Layout(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Layouts packs every buffer in declaration order.
//
// Returns:
//   - []*uniform.StructuredBufferLayout: the packed layouts
//   - error: the first packing error
func (f *SetFile) Layouts() ([]*uniform.StructuredBufferLayout, error) {
	layouts := make([]*uniform.StructuredBufferLayout, len(f.Buffers))
	for i, b := range f.Buffers {
		layout, err := b.Layout()
		if err != nil {
			return nil, err
		}
		layouts[i] = layout
	}
	return layouts, nil
}

// Declarations returns the set's declarations with zero resource handles, enough for binding
// assignment and pool sizing.
//
// Returns:
//   - []resource_set.Declaration: the declarations
//   - error: an error if a buffer cannot be converted
func (f *SetFile) Declarations() ([]resource_set.Declaration, error) {
	var decls []resource_set.Declaration
	for _, b := range f.Buffers {
		members, err := b.Declarations()
		if err != nil {
			return nil, err
		}
		decls = append(decls, resource_set.StructuredBuffer(members...))
	}
	for i := 0; i < f.CombinedImageSamplers; i++ {
		decls = append(decls, resource_set.CombinedImageSampler(0, 0))
	}
	for _, n := range f.ImageArrays {
		decls = append(decls, resource_set.ImageArray(make([]renderer.ImageViewHandle, n)...))
	}
	for i := 0; i < f.Samplers; i++ {
		decls = append(decls, resource_set.Sampler(0))
	}
	return decls, nil
}

// Instance is a resource set built from a SetFile with placeholder images and samplers.
type Instance struct {
	Set      resource_set.ResourceSet
	Views    []renderer.ImageViewHandle
	Samplers []renderer.SamplerHandle

	backend renderer.RendererBackend
}

// Release destroys the set and its placeholder resources.
func (in *Instance) Release() {
	if in.Set != nil {
		in.Set.Release()
	}
	for _, v := range in.Views {
		in.backend.ReleaseTexture(v)
	}
	for _, s := range in.Samplers {
		in.backend.ReleaseSampler(s)
	}
	in.Views, in.Samplers = nil, nil
}

// defaultSampler is linear filtering with repeat addressing.
var defaultSampler = common.SamplerStagingData{
	AddressModeU:  wgpu.AddressModeRepeat,
	AddressModeV:  wgpu.AddressModeRepeat,
	AddressModeW:  wgpu.AddressModeRepeat,
	MagFilter:     wgpu.FilterModeLinear,
	MinFilter:     wgpu.FilterModeLinear,
	MipmapFilter:  wgpu.MipmapFilterModeLinear,
	LodMaxClamp:   32,
	MaxAnisotropy: 1,
}

// Instantiate declares and finalizes the set on backend. Every image slot is bound to a
// 1x1 white placeholder and every sampler slot to a linear/repeat sampler.
//
// Parameters:
//   - backend: the backend owning the resources
//   - options: resource set options applied after the file's label and frame count
//
// Returns:
//   - *Instance: the finalized set and its placeholders
//   - error: an error if any resource cannot be created or the set fails to finalize
func (f *SetFile) Instantiate(backend renderer.RendererBackend, options ...resource_set.ResourceSetBuilderOption) (*Instance, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	opts := []resource_set.ResourceSetBuilderOption{resource_set.WithLabel(f.Label)}
	if f.FramesInFlight > 0 {
		opts = append(opts, resource_set.WithFramesInFlight(f.FramesInFlight))
	}
	in := &Instance{
		Set:     resource_set.NewResourceSet(backend, append(opts, options...)...),
		backend: backend,
	}

	white := common.TextureStagingData{Pixels: []byte{255, 255, 255, 255}, Width: 1, Height: 1}
	newView := func() (renderer.ImageViewHandle, error) {
		v, err := backend.CreateTexture(f.Label+"_placeholder", white)
		if err == nil {
			in.Views = append(in.Views, v)
		}
		return v, err
	}
	newSampler := func() (renderer.SamplerHandle, error) {
		s, err := backend.CreateSampler(f.Label+"_sampler", defaultSampler)
		if err == nil {
			in.Samplers = append(in.Samplers, s)
		}
		return s, err
	}

	err := func() error {
		for _, b := range f.Buffers {
			members, err := b.Declarations()
			if err != nil {
				return err
			}
			if _, err := in.Set.AddUniformBuffer(members...); err != nil {
				return fmt.Errorf("buffer %q: %w", b.Name, err)
			}
		}
		for i := 0; i < f.CombinedImageSamplers; i++ {
			v, err := newView()
			if err != nil {
				return err
			}
			s, err := newSampler()
			if err != nil {
				return err
			}
			if err := in.Set.AddCombinedImageSampler(v, s); err != nil {
				return err
			}
		}
		for _, n := range f.ImageArrays {
			views := make([]renderer.ImageViewHandle, n)
			for j := range views {
				v, err := newView()
				if err != nil {
					return err
				}
				views[j] = v
			}
			if err := in.Set.AddImageArray(views...); err != nil {
				return err
			}
		}
		for i := 0; i < f.Samplers; i++ {
			s, err := newSampler()
			if err != nil {
				return err
			}
			if err := in.Set.AddSampler(s); err != nil {
				return err
			}
		}
		return in.Set.Finalize()
	}()
	if err != nil {
		in.Release()
		return nil, fmt.Errorf("instantiate %q: %w", f.Label, err)
	}
	return in, nil
}
