package bootstrap

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
)

func TestChooseSurfaceFormatPrefersDesiredOrder(t *testing.T) {
	desired := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	available := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format, err := chooseSurfaceFormat(desired, available, false)
	require.NoError(t, err)
	require.Equal(t, core1_0.FormatB8G8R8A8SRGB, format.Format)
}

func TestChooseSurfaceFormatFallbackSelectsSupported(t *testing.T) {
	desired := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	available := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format, err := chooseSurfaceFormat(desired, available, false)
	require.NoError(t, err)
	require.Equal(t, core1_0.FormatR8G8B8A8SRGB, format.Format)
}

func TestChooseSurfaceFormatLastResortIsFirstAvailable(t *testing.T) {
	desired := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	available := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format, err := chooseSurfaceFormat(desired, available, false)
	require.NoError(t, err)
	require.Equal(t, available[0], format)
}

func TestChooseSurfaceFormatRequiredFailsWithBothLists(t *testing.T) {
	desired := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	available := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	_, err := chooseSurfaceFormat(desired, available, true)
	require.Error(t, err)

	var formatErr *NoSuitableFormatError
	require.True(t, errors.As(err, &formatErr))
	require.Equal(t, desired, formatErr.Desired)
	require.Equal(t, available, formatErr.Available)

	_, err = chooseSurfaceFormat(desired, nil, false)
	require.Error(t, err)
}

func TestChoosePresentModeIntersection(t *testing.T) {
	available := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeImmediate,
	}

	mode := choosePresentMode([]khr_surface.PresentMode{
		khr_surface.PresentModeMailbox,
		khr_surface.PresentModeImmediate,
	}, available)
	require.Equal(t, khr_surface.PresentModeImmediate, mode)
}

func TestChoosePresentModeFallsBackToFIFO(t *testing.T) {
	available := []khr_surface.PresentMode{khr_surface.PresentModeFIFO}

	mode := choosePresentMode([]khr_surface.PresentMode{khr_surface.PresentModeMailbox}, available)
	require.Equal(t, khr_surface.PresentModeFIFO, mode)
}

func TestChooseExtentHonorsSentinel(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: noCurrentExtent, Height: noCurrentExtent},
		MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
	}

	extent := chooseExtent(capabilities, core1_0.Extent2D{Width: 800, Height: 600})
	require.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, extent)
}

func TestChooseExtentUsesCurrentExtent(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: 1024, Height: 768},
		MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
	}

	extent := chooseExtent(capabilities, core1_0.Extent2D{Width: 800, Height: 600})
	require.Equal(t, core1_0.Extent2D{Width: 1024, Height: 768}, extent)
}

func TestChooseExtentClampsToSurfaceLimits(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: noCurrentExtent, Height: noCurrentExtent},
		MinImageExtent: core1_0.Extent2D{Width: 200, Height: 200},
		MaxImageExtent: core1_0.Extent2D{Width: 1000, Height: 500},
	}

	extent := chooseExtent(capabilities, core1_0.Extent2D{Width: 1920, Height: 100})
	require.Equal(t, core1_0.Extent2D{Width: 1000, Height: 200}, extent)
}

func TestChooseImageCountDefaultsToMinPlusOne(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 4}

	count, err := chooseImageCount(capabilities, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestChooseImageCountClampsToMax(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{MinImageCount: 4, MaxImageCount: 4}

	count, err := chooseImageCount(capabilities, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestChooseImageCountUnboundedMax(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 0}

	count, err := chooseImageCount(capabilities, 8, 0)
	require.NoError(t, err)
	require.Equal(t, 8, count)
}

func TestChooseImageCountDesiredBelowMinClampsUp(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 8}

	count, err := chooseImageCount(capabilities, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestChooseImageCountRequiredBelowMinFails(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 8}

	_, err := chooseImageCount(capabilities, 0, 2)
	require.ErrorIs(t, err, ErrMinImageCountTooLow)

	count, err := chooseImageCount(capabilities, 0, 3)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestChooseArrayLayers(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{MaxImageArrayLayers: 2}

	require.Equal(t, 1, chooseArrayLayers(capabilities, 0))
	require.Equal(t, 2, chooseArrayLayers(capabilities, 2))
	require.Equal(t, 2, chooseArrayLayers(capabilities, 6))
}

func TestValidateUsageClassicModes(t *testing.T) {
	supported := core1_0.ImageUsageColorAttachment | core1_0.ImageUsageTransferDst

	err := validateUsage(khr_surface.PresentModeFIFO, core1_0.ImageUsageColorAttachment, supported)
	require.NoError(t, err)

	err = validateUsage(khr_surface.PresentModeMailbox, core1_0.ImageUsageStorage, supported)
	require.ErrorIs(t, err, ErrUsageNotSupported)
}

func TestValidateUsageSkipsExtensionModes(t *testing.T) {
	supported := core1_0.ImageUsageColorAttachment

	// Shared-present modes define their own usage semantics, so an
	// unsupported usage passes through for the driver to judge.
	sharedDemandRefresh := khr_surface.PresentMode(1000111000)
	err := validateUsage(sharedDemandRefresh, core1_0.ImageUsageStorage, supported)
	require.NoError(t, err)
}
