package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v2/khr_get_physical_device_properties2"
	"github.com/vkngwrapper/extensions/v2/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
)

func TestResolveAPIVersionRequiredSatisfied(t *testing.T) {
	version, err := resolveAPIVersion(common.Vulkan1_2, common.Vulkan1_1, 0)
	require.NoError(t, err)
	require.Equal(t, common.Vulkan1_1, version)

	// An unset requirement means 1.0.
	version, err = resolveAPIVersion(common.Vulkan1_0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, common.Vulkan1_0, version)
}

func TestResolveAPIVersionMinimumFallback(t *testing.T) {
	version, err := resolveAPIVersion(common.Vulkan1_1, common.Vulkan1_2, common.Vulkan1_1)
	require.NoError(t, err)
	require.Equal(t, common.Vulkan1_1, version)
}

func TestResolveAPIVersionUnavailable(t *testing.T) {
	_, err := resolveAPIVersion(common.Vulkan1_0, common.Vulkan1_1, 0)
	require.ErrorIs(t, err, ErrVersion11Unavailable)
	require.ErrorIs(t, err, ErrVersionUnavailable)

	_, err = resolveAPIVersion(common.Vulkan1_1, common.Vulkan1_2, common.Vulkan1_2)
	require.ErrorIs(t, err, ErrVersion12Unavailable)
	require.ErrorIs(t, err, ErrVersionUnavailable)

	// The version sentinels themselves resolve to the general sentinel.
	require.ErrorIs(t, ErrVersion11Unavailable, ErrVersionUnavailable)
	require.ErrorIs(t, ErrVersion12Unavailable, ErrVersionUnavailable)
}

func TestAssembleLayersValidatesAvailability(t *testing.T) {
	info := testSystemInfo()

	layers, err := assembleLayers(info, InstanceOptions{Layers: []string{ValidationLayerName}})
	require.NoError(t, err)
	require.Equal(t, []string{ValidationLayerName}, layers)

	_, err = assembleLayers(info, InstanceOptions{Layers: []string{"VK_LAYER_LUNARG_api_dump"}})
	require.ErrorIs(t, err, ErrLayersNotPresent)
}

func TestAssembleLayersValidationRequestVsRequire(t *testing.T) {
	info := testSystemInfo()

	layers, err := assembleLayers(info, InstanceOptions{RequestValidationLayers: true})
	require.NoError(t, err)
	require.Equal(t, []string{ValidationLayerName}, layers)

	// Requesting tolerates absence; requiring does not.
	delete(info.AvailableLayers, ValidationLayerName)
	info.ValidationLayersAvailable = false

	layers, err = assembleLayers(info, InstanceOptions{RequestValidationLayers: true})
	require.NoError(t, err)
	require.Empty(t, layers)

	_, err = assembleLayers(info, InstanceOptions{RequireValidationLayers: true})
	require.ErrorIs(t, err, ErrLayersNotPresent)
}

func TestAssembleExtensionsHeadless(t *testing.T) {
	info := testSystemInfo()

	extensions, properties2Active, portabilityActive, err := assembleExtensions(info, InstanceOptions{
		Headless: true,
	}, common.Vulkan1_1)
	require.NoError(t, err)
	require.Empty(t, extensions)
	require.True(t, properties2Active)
	require.False(t, portabilityActive)
}

func TestAssembleExtensionsAddsSurfaceAndWindowing(t *testing.T) {
	info := testSystemInfo()
	info.AvailableExtensions["VK_KHR_xcb_surface"] = &core1_0.ExtensionProperties{}

	extensions, _, _, err := assembleExtensions(info, InstanceOptions{
		WindowingExtensions: []string{"VK_KHR_xcb_surface"},
	}, common.Vulkan1_1)
	require.NoError(t, err)
	require.Contains(t, extensions, khr_surface.ExtensionName)
	require.Contains(t, extensions, "VK_KHR_xcb_surface")
}

func TestAssembleExtensionsMissingWindowing(t *testing.T) {
	info := testSystemInfo()

	_, _, _, err := assembleExtensions(info, InstanceOptions{
		WindowingExtensions: []string{"VK_KHR_xcb_surface"},
	}, common.Vulkan1_1)
	require.ErrorIs(t, err, ErrWindowingNotPresent)
}

func TestAssembleExtensionsMissingRequested(t *testing.T) {
	info := testSystemInfo()

	_, _, _, err := assembleExtensions(info, InstanceOptions{
		Headless:   true,
		Extensions: []string{ext_debug_utils.ExtensionName, "VK_KHR_display"},
	}, common.Vulkan1_1)
	require.ErrorIs(t, err, ErrExtensionsNotPresent)
}

func TestAssembleExtensionsProperties2BelowOneOne(t *testing.T) {
	info := testSystemInfo()

	// Without the extension, a 1.0 instance cannot query capability chains.
	_, properties2Active, _, err := assembleExtensions(info, InstanceOptions{Headless: true}, common.Vulkan1_0)
	require.NoError(t, err)
	require.False(t, properties2Active)

	info.AvailableExtensions[khr_get_physical_device_properties2.ExtensionName] = &core1_0.ExtensionProperties{}
	extensions, properties2Active, _, err := assembleExtensions(info, InstanceOptions{Headless: true}, common.Vulkan1_0)
	require.NoError(t, err)
	require.True(t, properties2Active)
	require.Contains(t, extensions, khr_get_physical_device_properties2.ExtensionName)
}

func TestAssembleExtensionsPortability(t *testing.T) {
	info := testSystemInfo()

	// Unavailable: requesting the mode is a no-op rather than a failure.
	extensions, _, portabilityActive, err := assembleExtensions(info, InstanceOptions{
		Headless:          true,
		EnablePortability: true,
	}, common.Vulkan1_1)
	require.NoError(t, err)
	require.False(t, portabilityActive)
	require.Empty(t, extensions)

	info.AvailableExtensions[khr_portability_enumeration.ExtensionName] = &core1_0.ExtensionProperties{}
	extensions, _, portabilityActive, err = assembleExtensions(info, InstanceOptions{
		Headless:          true,
		EnablePortability: true,
	}, common.Vulkan1_1)
	require.NoError(t, err)
	require.True(t, portabilityActive)
	require.Contains(t, extensions, khr_portability_enumeration.ExtensionName)
}
