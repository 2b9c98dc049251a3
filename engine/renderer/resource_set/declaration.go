// Package resource_set assembles structured buffers, images and samplers into resource sets:
// binding assignment, pool sizing, set allocation and batched per-frame descriptor writes.
package resource_set

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
)

// Kind is the category of a declared resource. Categories are assigned bindings in the order they are declared here.
type Kind int

const (
	KindStructuredBuffer Kind = iota
	KindCombinedImageSampler
	KindImageArray
	KindSampler
)

// bindingOrder is the category order binding indices are assigned in. Shaders number their bindings the same way.
var bindingOrder = [...]Kind{
	KindStructuredBuffer,
	KindCombinedImageSampler,
	KindImageArray,
	KindSampler,
}

func (k Kind) String() string {
	switch k {
	case KindStructuredBuffer:
		return "structured_buffer"
	case KindCombinedImageSampler:
		return "combined_image_sampler"
	case KindImageArray:
		return "image_array"
	case KindSampler:
		return "sampler"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DescriptorType returns the backend descriptor type a resource of this kind is bound as.
func (k Kind) DescriptorType() renderer.DescriptorType {
	switch k {
	case KindCombinedImageSampler:
		return renderer.DescriptorTypeCombinedImageSampler
	case KindImageArray:
		return renderer.DescriptorTypeSampledImage
	case KindSampler:
		return renderer.DescriptorTypeSampler
	default:
		return renderer.DescriptorTypeUniformBuffer
	}
}

// Declaration is one resource of a set. Which fields are meaningful depends on Kind:
// Members for structured buffers, Views and Sampler for combined image samplers,
// Views for image arrays and Sampler for plain samplers.
type Declaration struct {
	Kind    Kind
	Members []uniform.MemberDeclaration
	Views   []renderer.ImageViewHandle
	Sampler renderer.SamplerHandle
}

// StructuredBuffer declares a uniform buffer made of the given members.
func StructuredBuffer(members ...uniform.MemberDeclaration) Declaration {
	return Declaration{Kind: KindStructuredBuffer, Members: members}
}

// CombinedImageSampler declares an image sampled through a sampler at one binding.
func CombinedImageSampler(view renderer.ImageViewHandle, sampler renderer.SamplerHandle) Declaration {
	return Declaration{Kind: KindCombinedImageSampler, Views: []renderer.ImageViewHandle{view}, Sampler: sampler}
}

// ImageArray declares an array of images at one binding, one descriptor per view.
func ImageArray(views ...renderer.ImageViewHandle) Declaration {
	return Declaration{Kind: KindImageArray, Views: views}
}

// Sampler declares a sampler on its own binding.
func Sampler(sampler renderer.SamplerHandle) Declaration {
	return Declaration{Kind: KindSampler, Sampler: sampler}
}

// Count returns the number of descriptors the declaration occupies at its binding.
func (d Declaration) Count() uint32 {
	if d.Kind == KindImageArray {
		return uint32(len(d.Views))
	}
	return 1
}
