package bootstrap

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/extensions/v2/khr_get_physical_device_properties2"
	khr_get_physical_device_properties2_shim "github.com/vkngwrapper/extensions/v2/khr_get_physical_device_properties2/shim"
	"github.com/vkngwrapper/extensions/v2/khr_portability_subset"
	"golang.org/x/exp/slog"
)

// Suitability describes how well a candidate device satisfied the selection
// criteria. Lower values are better.
type Suitability int32

const (
	// Suitable devices satisfy every criterion.
	Suitable Suitability = iota
	// PartiallySuitable devices satisfy every hard criterion but miss a soft
	// preference, such as the preferred device type.
	PartiallySuitable
	// Unsuitable devices miss at least one hard criterion.
	Unsuitable
)

func (s Suitability) String() string {
	switch s {
	case Suitable:
		return "Suitable"
	case PartiallySuitable:
		return "PartiallySuitable"
	case Unsuitable:
		return "Unsuitable"
	}
	return "Unknown"
}

// SelectionCriteria configures SelectPhysicalDevice. The zero value selects
// any device that can present to the instance's surface.
type SelectionCriteria struct {
	// Name, when set, restricts selection to the device with this exact name.
	Name string

	// PreferredType is the device type to prefer when several devices
	// qualify.
	PreferredType core1_0.PhysicalDeviceType
	// OnlyPreferredType downgrades devices of other types so they are chosen
	// only when no device of the preferred type qualifies.
	OnlyPreferredType bool

	// RequiredVersion is the minimum device API version. When unset, Vulkan
	// 1.0 is required.
	RequiredVersion common.APIVersion

	// RequiredFeatures are core feature flags the device must support.
	RequiredFeatures core1_0.PhysicalDeviceFeatures
	// RequiredFeatureChain carries versioned feature structs the device must
	// support. Requesting chained features requires features2 querying to be
	// active on the instance.
	RequiredFeatureChain *FeatureChain

	// RequiredExtensions are device extensions the device must advertise.
	// They become part of the selected device's enabled extension set.
	RequiredExtensions []string

	// RequiredDeviceLocalMemorySize is the minimum size, in bytes, of every
	// device-local memory heap.
	RequiredDeviceLocalMemorySize int

	// RequireDedicatedComputeQueue requires a compute family with no graphics
	// and no transfer support.
	RequireDedicatedComputeQueue bool
	// RequireDedicatedTransferQueue requires a transfer family with no
	// graphics and no compute support.
	RequireDedicatedTransferQueue bool
	// RequireSeparateComputeQueue requires a compute family with no graphics
	// support.
	RequireSeparateComputeQueue bool
	// RequireSeparateTransferQueue requires a transfer family with no
	// graphics support.
	RequireSeparateTransferQueue bool

	// NoPresentRequired drops the default requirement that the device can
	// present to the instance's surface.
	NoPresentRequired bool
	// DeferSurfaceInitialization skips all surface-related checks during
	// selection. Present support must then be established by the caller
	// before swapchain creation.
	DeferSurfaceInitialization bool

	// SelectFirstDeviceUnconditionally returns the first enumerated device
	// without evaluating any criteria.
	SelectFirstDeviceUnconditionally bool
}

// PhysicalDevice is the capability snapshot of a selected device, together
// with the extension and feature set negotiated for it during selection.
type PhysicalDevice struct {
	// Handle is the underlying physical device.
	Handle core1_0.PhysicalDevice
	// Name is the device name the driver reports.
	Name string

	// Properties are the device's core properties.
	Properties *core1_0.PhysicalDeviceProperties
	// Features are the core features the device supports.
	Features *core1_0.PhysicalDeviceFeatures
	// MemoryProperties describe the device's heaps and memory types.
	MemoryProperties *core1_0.PhysicalDeviceMemoryProperties
	// QueueFamilies is the device's queue family table, in driver order.
	QueueFamilies []*core1_0.QueueFamilyProperties
	// AvailableExtensions are the device extensions the device advertises.
	AvailableExtensions map[string]*core1_0.ExtensionProperties

	// ExtensionsToEnable is the extension set device creation will enable.
	ExtensionsToEnable []string
	// FeaturesToEnable is the core feature set device creation will enable.
	FeaturesToEnable core1_0.PhysicalDeviceFeatures

	// Verdict records how the device fared against the selection criteria.
	Verdict Suitability

	requestedChain *FeatureChain
	supportedChain *FeatureChain

	properties2Active   bool
	portabilityActive   bool
	deferredSurfaceInit bool

	presentFamilyIndex      int
	surfaceQueried          bool
	surfaceQueryFailed      bool
	surfaceFormatCount      int
	surfacePresentModeCount int

	instance *Instance
}

// EnableExtensionIfPresent adds a device extension to the set enabled at
// device creation when the device advertises it. It returns true when the
// extension will be enabled.
func (d *PhysicalDevice) EnableExtensionIfPresent(extensionName string) bool {
	_, ok := d.AvailableExtensions[extensionName]
	if ok {
		d.ExtensionsToEnable = appendUnique(d.ExtensionsToEnable, extensionName)
	}
	return ok
}

// EnableExtensionsIfPresent adds several device extensions to the set enabled
// at device creation. It returns true only when the device advertises every
// one of them; in that case all are enabled, otherwise none are.
func (d *PhysicalDevice) EnableExtensionsIfPresent(extensionNames []string) bool {
	for _, extensionName := range extensionNames {
		if _, ok := d.AvailableExtensions[extensionName]; !ok {
			return false
		}
	}

	for _, extensionName := range extensionNames {
		d.ExtensionsToEnable = appendUnique(d.ExtensionsToEnable, extensionName)
	}
	return true
}

// SelectPhysicalDevice enumerates the instance's physical devices, evaluates
// each against the criteria, and returns the best candidate. Devices that
// satisfy every hard criterion sort ahead of devices that miss a soft
// preference; the first device in the resulting order wins.
func SelectPhysicalDevice(instance *Instance, criteria SelectionCriteria) (*PhysicalDevice, error) {
	requiresPresent := !criteria.NoPresentRequired && !criteria.DeferSurfaceInitialization
	if requiresPresent && instance.Surface == nil {
		return nil, ErrNoSurfaceProvided
	}

	devices, _, err := instance.Handle.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to enumerate physical devices"), ErrEnumerationFailed)
	}
	if len(devices) == 0 {
		return nil, ErrNoPhysicalDevices
	}

	if criteria.SelectFirstDeviceUnconditionally {
		candidate, err := populateCandidate(instance, devices[0], &criteria)
		if err != nil {
			return nil, err
		}
		candidate.Verdict = Suitable
		return candidate, nil
	}

	candidates := make([]*PhysicalDevice, 0, len(devices))
	for _, device := range devices {
		candidate, err := populateCandidate(instance, device, &criteria)
		if err != nil {
			return nil, err
		}

		candidate.Verdict = evaluateCandidate(candidate, &criteria)
		instance.logger.Debug("evaluated physical device",
			slog.String("device", candidate.Name),
			slog.String("verdict", candidate.Verdict.String()),
		)
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Verdict < candidates[j].Verdict
	})

	selected := candidates[0]
	if selected.Verdict == Unsuitable {
		return nil, ErrNoSuitableDevice
	}
	if selected.Verdict == PartiallySuitable {
		instance.logger.Warn("selected a device that does not match the preferred type",
			slog.String("device", selected.Name))
	}

	instance.logger.Info("selected physical device", slog.String("device", selected.Name))
	return selected, nil
}

// populateCandidate gathers the capability snapshot selection evaluates.
// Everything driver-facing happens here so evaluation itself stays pure.
func populateCandidate(instance *Instance, device core1_0.PhysicalDevice, criteria *SelectionCriteria) (*PhysicalDevice, error) {
	properties, err := device.Properties()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to query device properties"), ErrEnumerationFailed)
	}

	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to enumerate device extensions"), ErrEnumerationFailed)
	}

	requestedChain := criteria.RequiredFeatureChain
	if requestedChain == nil {
		requestedChain = &FeatureChain{}
	}

	candidate := &PhysicalDevice{
		Handle:              device,
		Name:                properties.DriverName,
		Properties:          properties,
		Features:            device.Features(),
		MemoryProperties:    device.MemoryProperties(),
		QueueFamilies:       device.QueueFamilyProperties(),
		AvailableExtensions: extensions,

		ExtensionsToEnable: append([]string{}, criteria.RequiredExtensions...),
		FeaturesToEnable:   criteria.RequiredFeatures,

		requestedChain:      requestedChain.Clone(),
		supportedChain:      &FeatureChain{},
		properties2Active:   instance.Properties2Active,
		portabilityActive:   instance.PortabilityActive,
		deferredSurfaceInit: criteria.DeferSurfaceInitialization,
		presentFamilyIndex:  -1,

		instance: instance,
	}

	if !requestedChain.IsEmpty() && instance.Properties2Active {
		supported, err := queryFeatureChain(instance, device, requestedChain)
		if err != nil {
			return nil, err
		}
		candidate.supportedChain = supported
	}

	if instance.Surface != nil && !criteria.DeferSurfaceInitialization {
		candidate.surfaceQueried = true
		candidate.presentFamilyIndex = presentQueueIndex(device, instance.Surface, len(candidate.QueueFamilies))

		formats, _, err := instance.Surface.PhysicalDeviceSurfaceFormats(device)
		if err != nil {
			candidate.surfaceQueryFailed = true
		} else {
			candidate.surfaceFormatCount = len(formats)
		}

		presentModes, _, err := instance.Surface.PhysicalDeviceSurfacePresentModes(device)
		if err != nil {
			candidate.surfaceQueryFailed = true
		} else {
			candidate.surfacePresentModeCount = len(presentModes)
		}
	}

	return candidate, nil
}

// queryFeatureChain asks the driver for supported values of every struct in
// the requested chain, against instance 1.1 when active or the properties2
// extension otherwise.
func queryFeatureChain(instance *Instance, device core1_0.PhysicalDevice, requested *FeatureChain) (*FeatureChain, error) {
	var properties2 khr_get_physical_device_properties2_shim.Shim

	instanceScopedDevice := core1_1.PromoteInstanceScopedPhysicalDevice(device)
	if instanceScopedDevice != nil {
		properties2 = instanceScopedDevice
	} else if instance.Handle.IsInstanceExtensionActive(khr_get_physical_device_properties2.ExtensionName) {
		extension := khr_get_physical_device_properties2.CreateExtensionFromInstance(instance.Handle)
		properties2 = khr_get_physical_device_properties2_shim.NewShim(extension, device)
	}

	if properties2 == nil {
		// Capability-struct querying is unavailable: leave the supported
		// chain empty so a chained requirement fails the match.
		return &FeatureChain{}, nil
	}

	head, supported := requested.queryChain()
	err := properties2.Features2(head)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to query chained device features"), ErrEnumerationFailed)
	}

	return supported, nil
}

// evaluateCandidate runs every criterion against the snapshot. The verdict
// starts Suitable and only ever moves toward Unsuitable.
func evaluateCandidate(candidate *PhysicalDevice, criteria *SelectionCriteria) Suitability {
	verdict := Suitable

	if criteria.Name != "" && criteria.Name != candidate.Name {
		return Unsuitable
	}

	requiredVersion := criteria.RequiredVersion
	if requiredVersion == 0 {
		requiredVersion = common.Vulkan1_0
	}
	if !candidate.Properties.APIVersion.IsAtLeast(requiredVersion) {
		return Unsuitable
	}

	if criteria.RequireDedicatedComputeQueue &&
		dedicatedQueueIndex(candidate.QueueFamilies, core1_0.QueueCompute, core1_0.QueueTransfer) < 0 {
		return Unsuitable
	}
	if criteria.RequireDedicatedTransferQueue &&
		dedicatedQueueIndex(candidate.QueueFamilies, core1_0.QueueTransfer, core1_0.QueueCompute) < 0 {
		return Unsuitable
	}
	if criteria.RequireSeparateComputeQueue &&
		separateQueueIndex(candidate.QueueFamilies, core1_0.QueueCompute, core1_0.QueueTransfer) < 0 {
		return Unsuitable
	}
	if criteria.RequireSeparateTransferQueue &&
		separateQueueIndex(candidate.QueueFamilies, core1_0.QueueTransfer, core1_0.QueueCompute) < 0 {
		return Unsuitable
	}

	requiresPresent := !criteria.NoPresentRequired && !criteria.DeferSurfaceInitialization
	if requiresPresent && candidate.presentFamilyIndex < 0 {
		return Unsuitable
	}

	for _, extensionName := range criteria.RequiredExtensions {
		if _, ok := candidate.AvailableExtensions[extensionName]; !ok {
			return Unsuitable
		}
	}

	if candidate.surfaceQueried {
		if candidate.surfaceQueryFailed || candidate.surfaceFormatCount == 0 || candidate.surfacePresentModeCount == 0 {
			return Unsuitable
		}
	}

	// Soft preference: a type mismatch downgrades rather than disqualifies,
	// so some device is still selected when nothing matches the preference.
	if criteria.OnlyPreferredType && candidate.Properties.DriverType != criteria.PreferredType {
		verdict = PartiallySuitable
	}

	if !supportsFeatures(&criteria.RequiredFeatures, candidate.Features) {
		return Unsuitable
	}
	if !candidate.requestedChain.IsEmpty() && !candidate.requestedChain.MatchesAll(candidate.supportedChain) {
		return Unsuitable
	}

	if criteria.RequiredDeviceLocalMemorySize > 0 {
		for _, heap := range candidate.MemoryProperties.MemoryHeaps {
			if heap.Flags&core1_0.MemoryHeapDeviceLocal == 0 {
				continue
			}
			if heap.Size < criteria.RequiredDeviceLocalMemorySize {
				return Unsuitable
			}
		}
	}

	return verdict
}

// portabilitySubsetExtension returns the portability-subset extension name
// when the compatibility mode is on and the device advertises it.
func (d *PhysicalDevice) portabilitySubsetExtension() (string, bool) {
	if !d.portabilityActive {
		return "", false
	}
	if _, ok := d.AvailableExtensions[khr_portability_subset.ExtensionName]; !ok {
		return "", false
	}
	return khr_portability_subset.ExtensionName, true
}
