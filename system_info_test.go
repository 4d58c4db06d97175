package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
)

func testSystemInfo() *SystemInfo {
	info := &SystemInfo{
		AvailableLayers: map[string]*core1_0.LayerProperties{
			ValidationLayerName: {},
		},
		AvailableExtensions: map[string]*core1_0.ExtensionProperties{
			khr_surface.ExtensionName:     {},
			ext_debug_utils.ExtensionName: {},
		},
	}
	info.ValidationLayersAvailable = info.IsLayerAvailable(ValidationLayerName)
	info.DebugUtilsAvailable = info.IsExtensionAvailable(ext_debug_utils.ExtensionName)
	return info
}

func TestSystemInfoLayerAvailability(t *testing.T) {
	info := testSystemInfo()

	require.True(t, info.IsLayerAvailable(ValidationLayerName))
	require.False(t, info.IsLayerAvailable("VK_LAYER_LUNARG_api_dump"))

	require.True(t, info.AreLayersAvailable([]string{ValidationLayerName}))
	require.False(t, info.AreLayersAvailable([]string{ValidationLayerName, "VK_LAYER_LUNARG_api_dump"}))
	require.True(t, info.AreLayersAvailable(nil))
}

func TestSystemInfoExtensionAvailability(t *testing.T) {
	info := testSystemInfo()

	require.True(t, info.IsExtensionAvailable(khr_surface.ExtensionName))
	require.False(t, info.IsExtensionAvailable("VK_KHR_display"))

	require.True(t, info.AreExtensionsAvailable([]string{khr_surface.ExtensionName, ext_debug_utils.ExtensionName}))
	require.False(t, info.AreExtensionsAvailable([]string{khr_surface.ExtensionName, "VK_KHR_display"}))
}

func TestSystemInfoPrecomputedFlags(t *testing.T) {
	info := testSystemInfo()
	require.True(t, info.ValidationLayersAvailable)
	require.True(t, info.DebugUtilsAvailable)

	bare := &SystemInfo{
		AvailableLayers:     map[string]*core1_0.LayerProperties{},
		AvailableExtensions: map[string]*core1_0.ExtensionProperties{},
	}
	require.False(t, bare.IsLayerAvailable(ValidationLayerName))
	require.False(t, bare.IsExtensionAvailable(ext_debug_utils.ExtensionName))
}
