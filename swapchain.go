package bootstrap

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"golang.org/x/exp/slog"
)

// noCurrentExtent is the capability sentinel meaning the surface follows the
// window and the application picks the extent.
const noCurrentExtent = -1

// Convenience values for SwapchainOptions.DesiredMinImageCount. The driver is
// always free to create more images than requested.
const (
	SingleBuffering = 1
	DoubleBuffering = 2
	TripleBuffering = 3
)

// SwapchainOptions configures CreateSwapchain. The zero value negotiates an
// SRGB color-attachment swapchain preferring mailbox presentation.
type SwapchainOptions struct {
	// DesiredFormats lists acceptable surface formats, best first. The first
	// entry the surface supports wins; when none is supported, the surface's
	// first format is used. When empty, 32-bit SRGB defaults are used.
	DesiredFormats []khr_surface.SurfaceFormat
	// RequireDesiredFormats fails negotiation instead of falling back to the
	// surface's first format when no desired format is supported.
	RequireDesiredFormats bool

	// DesiredPresentModes lists acceptable present modes, best first. FIFO is
	// the final fallback since every driver supports it. When empty, mailbox
	// is preferred over FIFO.
	DesiredPresentModes []khr_surface.PresentMode

	// DesiredExtent is the extent used when the surface lets the application
	// choose; it is clamped to the surface's limits otherwise. When zero, a
	// 256x256 placeholder is used.
	DesiredExtent core1_0.Extent2D

	// DesiredMinImageCount asks for at least this many images, clamped into
	// the surface's supported range. When zero, one image more than the
	// surface minimum is requested.
	DesiredMinImageCount int
	// RequiredMinImageCount fails negotiation when the surface's minimum is
	// higher than this count. Takes precedence over DesiredMinImageCount.
	RequiredMinImageCount int

	// ImageUsage is the requested image usage. Defaults to color attachment.
	ImageUsage core1_0.ImageUsageFlags
	// ImageArrayLayers is clamped to the surface maximum; zero means one.
	ImageArrayLayers int

	// CompositeAlpha defaults to opaque compositing.
	CompositeAlpha khr_surface.CompositeAlphaFlags
	// PreTransform defaults to the surface's current transform.
	PreTransform khr_surface.SurfaceTransformFlags
	// Unclipped disables driver discarding of obscured pixels.
	Unclipped bool
	// CreateFlags are passed through to swapchain creation.
	CreateFlags khr_swapchain.SwapchainCreateFlags

	// OldSwapchain, when set, is replaced: its image views are destroyed
	// before creation, its handle is offered to the driver for resource
	// reuse, and the handle is destroyed only after creation succeeds.
	OldSwapchain *Swapchain
}

// Swapchain owns a created swapchain, the negotiated configuration it was
// created with, and its lazily-created image views.
type Swapchain struct {
	// Handle is the swapchain, or nil once destroyed or replaced.
	Handle khr_swapchain.Swapchain
	// Extension is the khr_swapchain extension object used to create it.
	Extension khr_swapchain.Extension
	// Device is the device the swapchain presents from.
	Device *Device

	// ImageFormat and ColorSpace are the negotiated surface format.
	ImageFormat core1_0.Format
	ColorSpace  khr_surface.ColorSpace
	// PresentMode is the negotiated present mode.
	PresentMode khr_surface.PresentMode
	// Extent is the negotiated image extent.
	Extent core1_0.Extent2D
	// ImageUsage is the usage the images were created with.
	ImageUsage core1_0.ImageUsageFlags
	// RequestedMinImageCount is the minimum image count passed to creation.
	// The driver may create more; Images reports the real count.
	RequestedMinImageCount int

	// mutex guards the image-view list and handle replacement, since resize
	// renegotiation can race teardown.
	mutex      sync.Mutex
	imageViews []core1_0.ImageView

	logger *slog.Logger
}

// CreateSwapchain negotiates a swapchain configuration against the device's
// surface and creates the swapchain.
func CreateSwapchain(device *Device, options SwapchainOptions) (*Swapchain, error) {
	if device.Surface == nil || device.SurfaceExtension == nil {
		return nil, ErrNoSurfaceProvided
	}

	physicalDevice := device.PhysicalDevice.Handle
	capabilities, _, err := device.Surface.PhysicalDeviceSurfaceCapabilities(physicalDevice)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to query surface capabilities"), ErrSurfaceQueryFailed)
	}
	availableFormats, _, err := device.Surface.PhysicalDeviceSurfaceFormats(physicalDevice)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to query surface formats"), ErrSurfaceQueryFailed)
	}
	availableModes, _, err := device.Surface.PhysicalDeviceSurfacePresentModes(physicalDevice)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to query surface present modes"), ErrSurfaceQueryFailed)
	}

	desiredFormats := options.DesiredFormats
	if len(desiredFormats) == 0 {
		desiredFormats = []khr_surface.SurfaceFormat{
			{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
			{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		}
	}
	desiredModes := options.DesiredPresentModes
	if len(desiredModes) == 0 {
		desiredModes = []khr_surface.PresentMode{
			khr_surface.PresentModeMailbox,
			khr_surface.PresentModeFIFO,
		}
	}
	desiredExtent := options.DesiredExtent
	if desiredExtent.Width == 0 && desiredExtent.Height == 0 {
		desiredExtent = core1_0.Extent2D{Width: 256, Height: 256}
	}
	imageUsage := options.ImageUsage
	if imageUsage == 0 {
		imageUsage = core1_0.ImageUsageColorAttachment
	}
	compositeAlpha := options.CompositeAlpha
	if compositeAlpha == 0 {
		compositeAlpha = khr_surface.CompositeAlphaOpaque
	}
	preTransform := options.PreTransform
	if preTransform == 0 {
		preTransform = capabilities.CurrentTransform
	}

	surfaceFormat, err := chooseSurfaceFormat(desiredFormats, availableFormats, options.RequireDesiredFormats)
	if err != nil {
		return nil, err
	}
	presentMode := choosePresentMode(desiredModes, availableModes)
	extent := chooseExtent(capabilities, desiredExtent)

	imageCount, err := chooseImageCount(capabilities, options.DesiredMinImageCount, options.RequiredMinImageCount)
	if err != nil {
		return nil, err
	}

	arrayLayers := chooseArrayLayers(capabilities, options.ImageArrayLayers)

	err = validateUsage(presentMode, imageUsage, capabilities.SupportedUsageFlags)
	if err != nil {
		return nil, err
	}

	graphicsIndex, err := device.QueueIndex(QueueTypeGraphics)
	if err != nil {
		return nil, err
	}
	presentIndex, err := device.QueueIndex(QueueTypePresent)
	if err != nil {
		return nil, err
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if graphicsIndex != presentIndex {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = []int{graphicsIndex, presentIndex}
	}

	createInfo := khr_swapchain.SwapchainCreateInfo{
		Surface:            device.Surface,
		MinImageCount:      imageCount,
		ImageFormat:        surfaceFormat.Format,
		ImageColorSpace:    surfaceFormat.ColorSpace,
		ImageExtent:        extent,
		ImageArrayLayers:   arrayLayers,
		ImageUsage:         imageUsage,
		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,
		PreTransform:       preTransform,
		CompositeAlpha:     compositeAlpha,
		PresentMode:        presentMode,
		Clipped:            !options.Unclipped,
		Flags:              options.CreateFlags,
	}

	// Tear down the predecessor's views before creation so its handle can be
	// offered for reuse, but keep the handle alive until the new swapchain
	// exists so presentation never goes dark on failure.
	var oldHandle khr_swapchain.Swapchain
	if options.OldSwapchain != nil {
		old := options.OldSwapchain
		old.mutex.Lock()
		defer old.mutex.Unlock()

		old.destroyImageViewsLocked()
		oldHandle = old.Handle
		createInfo.OldSwapchain = oldHandle
	}

	device.logger.Debug("creating swapchain",
		slog.Int("imageCount", imageCount),
		slog.Int("width", extent.Width),
		slog.Int("height", extent.Height),
		slog.String("presentMode", presentMode.String()),
	)

	extension := khr_swapchain.CreateExtensionFromDevice(device.Handle)
	swapchainHandle, _, err := extension.CreateSwapchain(device.Handle, nil, createInfo)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to create swapchain"), ErrSwapchainCreateFailed)
	}

	if oldHandle != nil {
		oldHandle.Destroy(nil)
		options.OldSwapchain.Handle = nil
	}

	return &Swapchain{
		Handle:    swapchainHandle,
		Extension: extension,
		Device:    device,

		ImageFormat:            surfaceFormat.Format,
		ColorSpace:             surfaceFormat.ColorSpace,
		PresentMode:            presentMode,
		Extent:                 extent,
		ImageUsage:             imageUsage,
		RequestedMinImageCount: imageCount,

		logger: device.logger,
	}, nil
}

// chooseSurfaceFormat returns the first desired format the surface supports.
// When none is supported, the surface's first format is used unless the
// caller required a desired format.
func chooseSurfaceFormat(desired, available []khr_surface.SurfaceFormat, requireDesired bool) (khr_surface.SurfaceFormat, error) {
	for _, want := range desired {
		for _, have := range available {
			if want.Format == have.Format && want.ColorSpace == have.ColorSpace {
				return want, nil
			}
		}
	}

	if len(available) == 0 || requireDesired {
		return khr_surface.SurfaceFormat{}, &NoSuitableFormatError{
			Desired:   desired,
			Available: available,
		}
	}

	return available[0], nil
}

// choosePresentMode returns the first desired mode the surface supports,
// falling back to FIFO, which every driver provides.
func choosePresentMode(desired, available []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, want := range desired {
		for _, have := range available {
			if want == have {
				return want
			}
		}
	}

	return khr_surface.PresentModeFIFO
}

// chooseExtent resolves the image extent: the desired extent when the surface
// follows the window, the desired extent clamped to the surface's limits
// otherwise.
func chooseExtent(capabilities *khr_surface.SurfaceCapabilities, desired core1_0.Extent2D) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != noCurrentExtent {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(desired.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(desired.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// chooseImageCount resolves the minimum image count against the surface's
// supported range. A required count below the surface minimum fails; a
// desired count is negotiable and clamps instead.
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities, desiredMin, requiredMin int) (int, error) {
	var count int
	switch {
	case requiredMin > 0:
		if requiredMin < capabilities.MinImageCount {
			return 0, errors.Wrapf(ErrMinImageCountTooLow, "required %d, surface minimum %d",
				requiredMin, capabilities.MinImageCount)
		}
		count = requiredMin
	case desiredMin == 0:
		// Bias toward one spare image for multi-buffering.
		count = capabilities.MinImageCount + 1
	default:
		count = desiredMin
		if count < capabilities.MinImageCount {
			count = capabilities.MinImageCount
		}
	}

	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}

	return count, nil
}

// chooseArrayLayers clamps the requested layer count to the surface maximum,
// treating zero as one.
func chooseArrayLayers(capabilities *khr_surface.SurfaceCapabilities, requested int) int {
	if requested <= 0 {
		requested = 1
	}
	if requested > capabilities.MaxImageArrayLayers {
		requested = capabilities.MaxImageArrayLayers
	}
	return requested
}

// validateUsage checks the requested usage against the surface's supported
// usage for the four core present modes. Extension present modes define their
// own usage semantics and skip the check.
func validateUsage(presentMode khr_surface.PresentMode, requested, supported core1_0.ImageUsageFlags) error {
	switch presentMode {
	case khr_surface.PresentModeImmediate,
		khr_surface.PresentModeMailbox,
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeFIFORelaxed:
		if requested&supported != requested {
			return errors.Wrapf(ErrUsageNotSupported, "requested %s, surface supports %s",
				requested, supported)
		}
	}

	return nil
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Images returns the swapchain's images. The driver may have created more
// images than the negotiated minimum.
func (s *Swapchain) Images() ([]core1_0.Image, error) {
	images, _, err := s.Handle.SwapchainImages()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve swapchain images")
	}
	return images, nil
}

// ImageViews returns one 2D color view per swapchain image, creating them on
// first call. The views are retained so a later negotiation can tear them
// down deterministically.
func (s *Swapchain) ImageViews() ([]core1_0.ImageView, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.imageViews) > 0 {
		return append([]core1_0.ImageView{}, s.imageViews...), nil
	}

	images, err := s.Images()
	if err != nil {
		return nil, err
	}

	views := make([]core1_0.ImageView, 0, len(images))
	for _, image := range images {
		view, _, err := s.Device.Handle.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   s.ImageFormat,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			for _, created := range views {
				created.Destroy(nil)
			}
			return nil, errors.Wrapf(err, "failed to create swapchain image view")
		}

		views = append(views, view)
	}

	s.imageViews = views
	return append([]core1_0.ImageView{}, views...), nil
}

// DestroyImageViews destroys the retained image views, if any.
func (s *Swapchain) DestroyImageViews() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.destroyImageViewsLocked()
}

func (s *Swapchain) destroyImageViewsLocked() {
	for _, view := range s.imageViews {
		view.Destroy(nil)
	}
	s.imageViews = nil
}

// Destroy destroys the image views and then the swapchain. Safe to call on a
// swapchain whose handle was consumed by a replacement.
func (s *Swapchain) Destroy() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.destroyImageViewsLocked()
	if s.Handle != nil {
		s.Handle.Destroy(nil)
		s.Handle = nil
	}
}
