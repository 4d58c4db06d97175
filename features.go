package bootstrap

import (
	"reflect"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/core/v2/core1_2"
)

// FeatureChain collects the versioned feature structs a caller requires beyond
// the flat core1_0.PhysicalDeviceFeatures set. At most one struct is retained
// per Vulkan minor version; adding a struct for a version that is already
// present merges the two field-wise, so independent subsystems can each
// register the features they need without clobbering one another.
//
// The zero value is an empty chain and is ready to use.
type FeatureChain struct {
	vulkan11 *core1_2.PhysicalDeviceVulkan11Features
	vulkan12 *core1_2.PhysicalDeviceVulkan12Features
}

// AddVulkan11Features merges the requested Vulkan 1.1 features into the chain.
// Chain pointers on the provided struct are ignored.
func (c *FeatureChain) AddVulkan11Features(features core1_2.PhysicalDeviceVulkan11Features) {
	if c.vulkan11 == nil {
		c.vulkan11 = &core1_2.PhysicalDeviceVulkan11Features{}
	}
	orBoolFields(c.vulkan11, &features)
}

// AddVulkan12Features merges the requested Vulkan 1.2 features into the chain.
// Chain pointers on the provided struct are ignored.
func (c *FeatureChain) AddVulkan12Features(features core1_2.PhysicalDeviceVulkan12Features) {
	if c.vulkan12 == nil {
		c.vulkan12 = &core1_2.PhysicalDeviceVulkan12Features{}
	}
	orBoolFields(c.vulkan12, &features)
}

// Vulkan11Features returns the merged Vulkan 1.1 feature struct, or nil when
// none has been added.
func (c *FeatureChain) Vulkan11Features() *core1_2.PhysicalDeviceVulkan11Features {
	return c.vulkan11
}

// Vulkan12Features returns the merged Vulkan 1.2 feature struct, or nil when
// none has been added.
func (c *FeatureChain) Vulkan12Features() *core1_2.PhysicalDeviceVulkan12Features {
	return c.vulkan12
}

// IsEmpty returns true when no versioned feature structs have been added.
func (c *FeatureChain) IsEmpty() bool {
	return c.vulkan11 == nil && c.vulkan12 == nil
}

// Clone returns an independent copy of the chain.
func (c *FeatureChain) Clone() *FeatureChain {
	clone := &FeatureChain{}
	if c.vulkan11 != nil {
		clone.vulkan11 = &core1_2.PhysicalDeviceVulkan11Features{}
		orBoolFields(clone.vulkan11, c.vulkan11)
	}
	if c.vulkan12 != nil {
		clone.vulkan12 = &core1_2.PhysicalDeviceVulkan12Features{}
		orBoolFields(clone.vulkan12, c.vulkan12)
	}
	return clone
}

// MatchesAll reports whether every feature requested in this chain is set in
// the supported chain. The supported chain must carry exactly the same struct
// versions as this chain; a missing or extra version fails the match.
func (c *FeatureChain) MatchesAll(supported *FeatureChain) bool {
	if supported == nil {
		return c.IsEmpty()
	}
	if (c.vulkan11 == nil) != (supported.vulkan11 == nil) {
		return false
	}
	if (c.vulkan12 == nil) != (supported.vulkan12 == nil) {
		return false
	}
	if c.vulkan11 != nil && !impliesBoolFields(c.vulkan11, supported.vulkan11) {
		return false
	}
	if c.vulkan12 != nil && !impliesBoolFields(c.vulkan12, supported.vulkan12) {
		return false
	}
	return true
}

// queryChain builds an empty chain mirroring this one's struct versions,
// out-chained behind a PhysicalDeviceFeatures2 so a single features2 query
// fills every node. The returned FeatureChain owns the chained structs.
func (c *FeatureChain) queryChain() (*core1_1.PhysicalDeviceFeatures2, *FeatureChain) {
	head := &core1_1.PhysicalDeviceFeatures2{}
	out := &FeatureChain{}

	next := &head.NextOutData
	if c.vulkan11 != nil {
		out.vulkan11 = &core1_2.PhysicalDeviceVulkan11Features{}
		next.Next = out.vulkan11
		next = &out.vulkan11.NextOutData
	}
	if c.vulkan12 != nil {
		out.vulkan12 = &core1_2.PhysicalDeviceVulkan12Features{}
		next.Next = out.vulkan12
		next = &out.vulkan12.NextOutData
	}

	return head, out
}

// deviceCreateOptions assembles the features2 options chain handed to device
// creation when the chain path is in use, with the flat feature set riding in
// the PhysicalDeviceFeatures2 head.
func (c *FeatureChain) deviceCreateOptions(flatFeatures core1_0.PhysicalDeviceFeatures) core1_1.PhysicalDeviceFeatures2 {
	features2 := core1_1.PhysicalDeviceFeatures2{
		Features: flatFeatures,
	}

	if c.vulkan11 != nil {
		vulkan11 := *c.vulkan11
		vulkan11.NextOutData = common.NextOutData{}
		vulkan11.NextOptions = common.NextOptions{}
		if c.vulkan12 != nil {
			vulkan12 := *c.vulkan12
			vulkan12.NextOutData = common.NextOutData{}
			vulkan12.NextOptions = common.NextOptions{}
			vulkan11.NextOptions = common.NextOptions{Next: vulkan12}
		}
		features2.NextOptions = common.NextOptions{Next: vulkan11}
	} else if c.vulkan12 != nil {
		vulkan12 := *c.vulkan12
		vulkan12.NextOutData = common.NextOutData{}
		vulkan12.NextOptions = common.NextOptions{}
		features2.NextOptions = common.NextOptions{Next: vulkan12}
	}

	return features2
}

// orBoolFields sets every bool field of dst that is set in src. dst and src
// must be pointers to the same struct type. Non-bool fields (chain plumbing)
// are left untouched.
func orBoolFields(dst, src interface{}) {
	dstValue := reflect.ValueOf(dst).Elem()
	srcValue := reflect.ValueOf(src).Elem()

	for fieldIndex := 0; fieldIndex < dstValue.NumField(); fieldIndex++ {
		dstField := dstValue.Field(fieldIndex)
		if dstField.Kind() != reflect.Bool {
			continue
		}

		if srcValue.Field(fieldIndex).Bool() {
			dstField.SetBool(true)
		}
	}
}

// impliesBoolFields reports whether every bool field set in requested is also
// set in supported. requested and supported must be pointers to the same
// struct type.
func impliesBoolFields(requested, supported interface{}) bool {
	requestedValue := reflect.ValueOf(requested).Elem()
	supportedValue := reflect.ValueOf(supported).Elem()

	for fieldIndex := 0; fieldIndex < requestedValue.NumField(); fieldIndex++ {
		requestedField := requestedValue.Field(fieldIndex)
		if requestedField.Kind() != reflect.Bool {
			continue
		}

		if requestedField.Bool() && !supportedValue.Field(fieldIndex).Bool() {
			return false
		}
	}

	return true
}

// supportsFeatures reports whether every feature set in requested is set in
// supported.
func supportsFeatures(requested, supported *core1_0.PhysicalDeviceFeatures) bool {
	if requested == nil {
		return true
	}
	if supported == nil {
		supported = &core1_0.PhysicalDeviceFeatures{}
	}
	return impliesBoolFields(requested, supported)
}
