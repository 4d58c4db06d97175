package bootstrap

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// QueueType identifies a queue role that can be requested from a Device.
type QueueType int32

const (
	// QueueTypePresent is a queue family that can present to the bound surface.
	QueueTypePresent QueueType = iota
	// QueueTypeGraphics is the first queue family with graphics support.
	QueueTypeGraphics
	// QueueTypeCompute is a queue family with compute support, separate from
	// the graphics family when possible.
	QueueTypeCompute
	// QueueTypeTransfer is a queue family with transfer support, separate from
	// the graphics family when possible.
	QueueTypeTransfer
	// QueueTypeDedicatedCompute is a queue family with compute support and no
	// graphics or transfer support.
	QueueTypeDedicatedCompute
	// QueueTypeDedicatedTransfer is a queue family with transfer support and
	// no graphics or compute support.
	QueueTypeDedicatedTransfer
)

func (t QueueType) String() string {
	switch t {
	case QueueTypePresent:
		return "Present"
	case QueueTypeGraphics:
		return "Graphics"
	case QueueTypeCompute:
		return "Compute"
	case QueueTypeTransfer:
		return "Transfer"
	case QueueTypeDedicatedCompute:
		return "DedicatedCompute"
	case QueueTypeDedicatedTransfer:
		return "DedicatedTransfer"
	}
	return "Unknown"
}

// firstQueueIndex returns the index of the first queue family whose flags
// include every flag in desired, or -1 when no family qualifies.
func firstQueueIndex(families []*core1_0.QueueFamilyProperties, desired core1_0.QueueFlags) int {
	for familyIndex, family := range families {
		if family.QueueFlags&desired == desired {
			return familyIndex
		}
	}

	return -1
}

// dedicatedQueueIndex returns the index of the first queue family that
// supports every flag in desired but has neither graphics support nor any
// flag in undesired, or -1 when no family qualifies.
func dedicatedQueueIndex(families []*core1_0.QueueFamilyProperties, desired, undesired core1_0.QueueFlags) int {
	for familyIndex, family := range families {
		if family.QueueFlags&desired != desired {
			continue
		}
		if family.QueueFlags&core1_0.QueueGraphics != 0 {
			continue
		}
		if family.QueueFlags&undesired != 0 {
			continue
		}

		return familyIndex
	}

	return -1
}

// separateQueueIndex returns the index of the first non-graphics queue family
// that supports every flag in desired, preferring families without any flag
// in undesired but falling back to one that has them, or -1 when no family
// qualifies.
func separateQueueIndex(families []*core1_0.QueueFamilyProperties, desired, undesired core1_0.QueueFlags) int {
	fallback := -1
	for familyIndex, family := range families {
		if family.QueueFlags&desired != desired {
			continue
		}
		if family.QueueFlags&core1_0.QueueGraphics != 0 {
			continue
		}

		if family.QueueFlags&undesired == 0 {
			return familyIndex
		}
		if fallback < 0 {
			fallback = familyIndex
		}
	}

	return fallback
}

// surfaceSupport is the part of khr_surface.Surface that present-queue
// discovery relies on.
type surfaceSupport interface {
	PhysicalDeviceSurfaceSupport(physicalDevice core1_0.PhysicalDevice, queueFamilyIndex int) (bool, common.VkResult, error)
}

// presentQueueIndex returns the index of the first queue family that can
// present to the surface, or -1 when no family qualifies. Families whose
// support query fails are treated as unable to present.
func presentQueueIndex(physicalDevice core1_0.PhysicalDevice, surface surfaceSupport, familyCount int) int {
	if surface == nil {
		return -1
	}

	for familyIndex := 0; familyIndex < familyCount; familyIndex++ {
		supported, _, err := surface.PhysicalDeviceSurfaceSupport(physicalDevice, familyIndex)
		if err == nil && supported {
			return familyIndex
		}
	}

	return -1
}
