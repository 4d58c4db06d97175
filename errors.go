package bootstrap

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
)

// Sentinel errors for instance bootstrap failures. Errors returned from this package
// wrap one of these sentinels, so consumers can classify failures with errors.Is.
var (
	ErrVulkanUnavailable     = errors.New("vulkan is not available on this system")
	ErrVersionUnavailable    = errors.New("the requested vulkan version is not available")
	ErrVersion11Unavailable  = errors.Wrap(ErrVersionUnavailable, "vulkan 1.1 is not available")
	ErrVersion12Unavailable  = errors.Wrap(ErrVersionUnavailable, "vulkan 1.2 is not available")
	ErrInstanceCreateFailed  = errors.New("failed to create instance")
	ErrMessengerCreateFailed = errors.New("failed to create debug messenger")
	ErrLayersNotPresent      = errors.New("one or more requested layers are not present")
	ErrExtensionsNotPresent  = errors.New("one or more requested extensions are not present")
	ErrWindowingNotPresent   = errors.New("the windowing extensions required for surface creation are not present")
	ErrSurfaceCreateFailed   = errors.New("failed to create surface")
)

// Sentinel errors for physical device selection failures.
var (
	ErrNoSurfaceProvided = errors.New("presentation was required, but no surface was provided")
	ErrEnumerationFailed = errors.New("failed to enumerate physical devices")
	ErrNoPhysicalDevices = errors.New("no physical devices were found")
	ErrNoSuitableDevice  = errors.New("no suitable physical device was found")
)

// Sentinel errors for queue retrieval failures.
var (
	ErrPresentUnavailable  = errors.New("no queue with present support is available")
	ErrGraphicsUnavailable = errors.New("no queue with graphics support is available")
	ErrComputeUnavailable  = errors.New("no queue with compute support is available")
	ErrTransferUnavailable = errors.New("no queue with transfer support is available")
)

// Sentinel errors for swapchain negotiation failures.
var (
	ErrSurfaceQueryFailed    = errors.New("failed to query surface support details")
	ErrSwapchainCreateFailed = errors.New("failed to create swapchain")
	ErrMinImageCountTooLow   = errors.New("the required minimum image count is lower than the surface supports")
	ErrUsageNotSupported     = errors.New("the requested image usage is not supported by the surface")
)

// NoSuitableFormatError is returned when none of the desired surface formats are
// supported and no fallback was permitted. It retains both sides of the failed
// negotiation for diagnostics.
type NoSuitableFormatError struct {
	Desired   []khr_surface.SurfaceFormat
	Available []khr_surface.SurfaceFormat
}

func (e *NoSuitableFormatError) Error() string {
	var sb strings.Builder
	sb.WriteString("no desired surface format is supported: desired [")
	for i, format := range e.Desired {
		if i > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "{%d %d}", format.Format, format.ColorSpace)
	}
	sb.WriteString("], available [")
	for i, format := range e.Available {
		if i > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "{%d %d}", format.Format, format.ColorSpace)
	}
	sb.WriteString("]")
	return sb.String()
}
