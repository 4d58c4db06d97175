package bootstrap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
)

// ValidationLayerName is the standard Khronos validation layer enabled when
// validation is requested.
const ValidationLayerName = "VK_LAYER_KHRONOS_validation"

// SystemInfo describes what the local Vulkan runtime can offer before any
// instance exists: available layers and instance extensions, plus a few
// pre-computed answers that instance creation cares about.
type SystemInfo struct {
	// Loader is the system loader the info was gathered from. Instance
	// creation reuses it so the library only dlopens the runtime once.
	Loader *core.VulkanLoader

	// AvailableLayers maps layer names to their properties.
	AvailableLayers map[string]*core1_0.LayerProperties
	// AvailableExtensions maps instance extension names to their properties,
	// including extensions provided by implicit layers.
	AvailableExtensions map[string]*core1_0.ExtensionProperties

	// ValidationLayersAvailable is true when ValidationLayerName can be enabled.
	ValidationLayersAvailable bool
	// DebugUtilsAvailable is true when ext_debug_utils can be enabled.
	DebugUtilsAvailable bool

	// InstanceAPIVersion is the highest instance-level Vulkan version the
	// loader supports. Loaders predating vkEnumerateInstanceVersion report 1.0.
	InstanceAPIVersion common.APIVersion
}

// GetSystemInfo creates a system loader and gathers the runtime's layer and
// instance extension support.
func GetSystemInfo() (*SystemInfo, error) {
	loader, err := core.CreateSystemLoader()
	if err != nil {
		return nil, errors.Wrap(ErrVulkanUnavailable, err.Error())
	}

	return GetSystemInfoFromLoader(loader)
}

// GetSystemInfoFromLoader gathers layer and instance extension support from an
// existing loader.
func GetSystemInfoFromLoader(loader *core.VulkanLoader) (*SystemInfo, error) {
	layers, _, err := loader.AvailableLayers()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to enumerate instance layers")
	}

	extensions, _, err := loader.AvailableExtensions()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to enumerate instance extensions")
	}

	// Layers can expose extensions the runtime itself does not.
	for layerName := range layers {
		layerExtensions, _, err := loader.AvailableExtensionsForLayer(layerName)
		if err != nil {
			continue
		}

		for extensionName, properties := range layerExtensions {
			if _, ok := extensions[extensionName]; !ok {
				extensions[extensionName] = properties
			}
		}
	}

	info := &SystemInfo{
		Loader:              loader,
		AvailableLayers:     layers,
		AvailableExtensions: extensions,
		InstanceAPIVersion:  loader.APIVersion(),
	}
	info.ValidationLayersAvailable = info.IsLayerAvailable(ValidationLayerName)
	info.DebugUtilsAvailable = info.IsExtensionAvailable(ext_debug_utils.ExtensionName)

	return info, nil
}

// IsLayerAvailable returns true when a layer with the given name can be enabled.
func (i *SystemInfo) IsLayerAvailable(layerName string) bool {
	_, ok := i.AvailableLayers[layerName]
	return ok
}

// AreLayersAvailable returns true when every named layer can be enabled.
func (i *SystemInfo) AreLayersAvailable(layerNames []string) bool {
	for _, layerName := range layerNames {
		if !i.IsLayerAvailable(layerName) {
			return false
		}
	}

	return true
}

// IsExtensionAvailable returns true when an instance extension with the given
// name can be enabled.
func (i *SystemInfo) IsExtensionAvailable(extensionName string) bool {
	_, ok := i.AvailableExtensions[extensionName]
	return ok
}

// AreExtensionsAvailable returns true when every named instance extension can
// be enabled.
func (i *SystemInfo) AreExtensionsAvailable(extensionNames []string) bool {
	for _, extensionName := range extensionNames {
		if !i.IsExtensionAvailable(extensionName) {
			return false
		}
	}

	return true
}
