package bootstrap

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v2/khr_get_physical_device_properties2"
	"github.com/vkngwrapper/extensions/v2/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"golang.org/x/exp/slog"
)

// SurfaceProvider creates the window surface for a freshly-created instance.
// CreateInstance invokes it after the khr_surface extension object exists, so
// windowing integrations (SDL2, GLFW) stay out of this library.
type SurfaceProvider func(instance core1_0.Instance, surfaceExtension khr_surface.Extension) (khr_surface.Surface, error)

// InstanceOptions configures CreateInstance. The zero value produces a
// headful Vulkan 1.0 instance with no layers, no debug messenger, and no
// surface.
type InstanceOptions struct {
	// ApplicationName is the application name reported to the driver.
	ApplicationName string
	// ApplicationVersion is the application version reported to the driver.
	ApplicationVersion common.Version
	// EngineName is the engine name reported to the driver.
	EngineName string
	// EngineVersion is the engine version reported to the driver.
	EngineVersion common.Version

	// RequiredAPIVersion is the instance version the application cannot run
	// without. Instance creation fails when the loader does not support it.
	// When unset, Vulkan 1.0 is required.
	RequiredAPIVersion common.APIVersion
	// MinimumAPIVersion, when set, permits falling back to the loader's
	// version when it is at least this version but below RequiredAPIVersion.
	MinimumAPIVersion common.APIVersion

	// Layers are additional layer names to enable. Instance creation fails
	// when any is unavailable.
	Layers []string
	// Extensions are additional instance extension names to enable. Instance
	// creation fails when any is unavailable.
	Extensions []string

	// RequestValidationLayers enables the Khronos validation layer when it is
	// available and silently continues when it is not.
	RequestValidationLayers bool
	// RequireValidationLayers enables the Khronos validation layer and fails
	// instance creation when it is unavailable.
	RequireValidationLayers bool

	// UseDebugMessenger installs an ext_debug_utils messenger on the instance.
	// Validation layer requests imply it.
	UseDebugMessenger bool
	// DebugCallback overrides the default slog-backed messenger callback.
	DebugCallback func(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool
	// DebugMessageSeverity overrides the messenger severity mask. Defaults to
	// warnings and errors.
	DebugMessageSeverity ext_debug_utils.DebugUtilsMessageSeverityFlags
	// DebugMessageType overrides the messenger type mask. Defaults to all
	// message types.
	DebugMessageType ext_debug_utils.DebugUtilsMessageTypeFlags

	// Headless skips surface-related extension work entirely. No khr_surface
	// extension is enabled and SurfaceProvider must be nil.
	Headless bool
	// WindowingExtensions are the instance extensions the windowing system
	// requires for surface creation, for instance from SDL's
	// Window.VulkanGetInstanceExtensions. Ignored when Headless is set.
	WindowingExtensions []string
	// SurfaceProvider, when set, is called to create the window surface. The
	// surface is retained on the Instance and destroyed with it.
	SurfaceProvider SurfaceProvider

	// EnablePortability enables khr_portability_enumeration when available so
	// portability-translation devices (MoltenVK) are enumerated.
	EnablePortability bool

	// SystemInfo, when set, is reused instead of creating a new loader and
	// re-querying layer and extension support.
	SystemInfo *SystemInfo
}

// Instance owns a created Vulkan instance and the companion objects bootstrap
// attached to it.
type Instance struct {
	// Handle is the created instance.
	Handle core1_0.Instance
	// Loader is the system loader the instance was created from.
	Loader *SystemInfo

	// APIVersion is the instance version that was actually requested, after
	// required/minimum resolution against the loader.
	APIVersion common.APIVersion

	// Messenger is the debug messenger, or nil when none was installed.
	Messenger ext_debug_utils.DebugUtilsMessenger
	// SurfaceExtension is the khr_surface extension object, or nil in
	// headless mode.
	SurfaceExtension khr_surface.Extension
	// Surface is the surface created by the SurfaceProvider, or nil.
	Surface khr_surface.Surface

	// Properties2Active is true when capability structs can be queried via
	// features2/properties2, either through instance 1.1 or through the
	// khr_get_physical_device_properties2 extension.
	Properties2Active bool
	// PortabilityActive is true when portability enumeration was enabled.
	PortabilityActive bool

	logger *slog.Logger
}

// CreateInstance creates a Vulkan instance per the options, together with its
// debug messenger and window surface when requested. A nil logger discards
// log output.
func CreateInstance(logger *slog.Logger, options InstanceOptions) (*Instance, error) {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}

	info := options.SystemInfo
	if info == nil {
		var err error
		info, err = GetSystemInfo()
		if err != nil {
			return nil, err
		}
	}

	apiVersion, err := resolveAPIVersion(info.InstanceAPIVersion, options.RequiredAPIVersion, options.MinimumAPIVersion)
	if err != nil {
		return nil, err
	}

	layers, err := assembleLayers(info, options)
	if err != nil {
		return nil, err
	}

	extensions, properties2Active, portabilityActive, err := assembleExtensions(info, options, apiVersion)
	if err != nil {
		return nil, err
	}

	useMessenger := (options.UseDebugMessenger || options.RequestValidationLayers || options.RequireValidationLayers) &&
		info.DebugUtilsAvailable
	if useMessenger {
		extensions = appendUnique(extensions, ext_debug_utils.ExtensionName)
	}

	var createFlags core1_0.InstanceCreateFlags
	if portabilityActive {
		createFlags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	logger.Debug("creating instance",
		slog.String("apiVersion", apiVersion.String()),
		slog.Any("layers", layers),
		slog.Any("extensions", extensions),
	)

	instanceHandle, _, err := info.Loader.CreateInstance(nil, core1_0.InstanceCreateInfo{
		ApplicationName:       options.ApplicationName,
		ApplicationVersion:    options.ApplicationVersion,
		EngineName:            options.EngineName,
		EngineVersion:         options.EngineVersion,
		APIVersion:            apiVersion,
		EnabledLayerNames:     layers,
		EnabledExtensionNames: extensions,
		Flags:                 createFlags,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to create instance"), ErrInstanceCreateFailed)
	}

	instance := &Instance{
		Handle:            instanceHandle,
		Loader:            info,
		APIVersion:        apiVersion,
		Properties2Active: properties2Active,
		PortabilityActive: portabilityActive,
		logger:            logger,
	}

	if useMessenger {
		err = instance.createMessenger(options)
		if err != nil {
			instance.Destroy()
			return nil, err
		}
	}

	if !options.Headless {
		instance.SurfaceExtension = khr_surface.CreateExtensionFromInstance(instanceHandle)
	}

	if options.SurfaceProvider != nil {
		if options.Headless {
			instance.Destroy()
			return nil, errors.New("a surface provider was set on a headless instance")
		}

		instance.Surface, err = options.SurfaceProvider(instanceHandle, instance.SurfaceExtension)
		if err != nil {
			instance.Destroy()
			return nil, errors.Mark(errors.Wrapf(err, "the surface provider failed"), ErrSurfaceCreateFailed)
		}
	}

	return instance, nil
}

func (i *Instance) createMessenger(options InstanceOptions) error {
	severity := options.DebugMessageSeverity
	if severity == 0 {
		severity = ext_debug_utils.SeverityWarning | ext_debug_utils.SeverityError
	}
	messageType := options.DebugMessageType
	if messageType == 0 {
		messageType = ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance
	}
	callback := options.DebugCallback
	if callback == nil {
		callback = i.logDebugMessage
	}

	debugExtension := ext_debug_utils.CreateExtensionFromInstance(i.Handle)
	messenger, _, err := debugExtension.CreateDebugUtilsMessenger(i.Handle, nil, ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: severity,
		MessageType:     messageType,
		UserCallback:    callback,
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to create debug messenger"), ErrMessengerCreateFailed)
	}

	i.Messenger = messenger
	return nil
}

// logDebugMessage is the default messenger callback. It forwards driver
// messages to the instance's logger at a level matching the severity.
func (i *Instance) logDebugMessage(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelDebug
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	} else if severity&ext_debug_utils.SeverityWarning != 0 {
		level = slog.LevelWarn
	} else if severity&ext_debug_utils.SeverityInfo != 0 {
		level = slog.LevelInfo
	}

	i.logger.LogAttrs(context.Background(), level, data.Message, slog.String("messageType", msgType.String()))
	return false
}

// Destroy tears down everything the instance owns, in reverse creation order:
// surface, then messenger, then the instance itself.
func (i *Instance) Destroy() {
	if i.Surface != nil {
		i.Surface.Destroy(nil)
		i.Surface = nil
	}
	if i.Messenger != nil {
		i.Messenger.Destroy(nil)
		i.Messenger = nil
	}
	if i.Handle != nil {
		i.Handle.Destroy(nil)
		i.Handle = nil
	}
}

// resolveAPIVersion picks the instance version to request, given what the
// loader supports.
func resolveAPIVersion(loaderVersion, required, minimum common.APIVersion) (common.APIVersion, error) {
	if required < common.Vulkan1_0 {
		required = common.Vulkan1_0
	}

	if loaderVersion.IsAtLeast(required) {
		return required, nil
	}

	if minimum != 0 && loaderVersion.IsAtLeast(minimum) {
		return loaderVersion, nil
	}

	err := ErrVersionUnavailable
	switch {
	case required.IsAtLeast(common.Vulkan1_2):
		err = ErrVersion12Unavailable
	case required.IsAtLeast(common.Vulkan1_1):
		err = ErrVersion11Unavailable
	}

	return 0, errors.Wrapf(err, "the loader supports %s", loaderVersion)
}

func assembleLayers(info *SystemInfo, options InstanceOptions) ([]string, error) {
	layers := make([]string, 0, len(options.Layers)+1)
	layers = append(layers, options.Layers...)

	for _, layerName := range options.Layers {
		if !info.IsLayerAvailable(layerName) {
			return nil, errors.Wrapf(ErrLayersNotPresent, "layer %s", layerName)
		}
	}

	if options.RequireValidationLayers && !info.ValidationLayersAvailable {
		return nil, errors.Wrapf(ErrLayersNotPresent, "layer %s", ValidationLayerName)
	}
	if (options.RequireValidationLayers || options.RequestValidationLayers) && info.ValidationLayersAvailable {
		layers = appendUnique(layers, ValidationLayerName)
	}

	return layers, nil
}

func assembleExtensions(info *SystemInfo, options InstanceOptions, apiVersion common.APIVersion) (extensions []string, properties2Active, portabilityActive bool, err error) {
	extensions = make([]string, 0, len(options.Extensions)+4)
	extensions = append(extensions, options.Extensions...)

	for _, extensionName := range options.Extensions {
		if !info.IsExtensionAvailable(extensionName) {
			return nil, false, false, errors.Wrapf(ErrExtensionsNotPresent, "extension %s", extensionName)
		}
	}

	if !options.Headless {
		windowing := append([]string{khr_surface.ExtensionName}, options.WindowingExtensions...)
		for _, extensionName := range windowing {
			if !info.IsExtensionAvailable(extensionName) {
				return nil, false, false, errors.Wrapf(ErrWindowingNotPresent, "extension %s", extensionName)
			}
			extensions = appendUnique(extensions, extensionName)
		}
	}

	// Below 1.1, capability chains need the properties2 extension.
	properties2Active = apiVersion.IsAtLeast(common.Vulkan1_1)
	if !properties2Active && info.IsExtensionAvailable(khr_get_physical_device_properties2.ExtensionName) {
		extensions = appendUnique(extensions, khr_get_physical_device_properties2.ExtensionName)
		properties2Active = true
	}

	if options.EnablePortability && info.IsExtensionAvailable(khr_portability_enumeration.ExtensionName) {
		extensions = appendUnique(extensions, khr_portability_enumeration.ExtensionName)
		portabilityActive = true
	}

	return extensions, properties2Active, portabilityActive, nil
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
