package bootstrap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"golang.org/x/exp/slog"
)

// DeviceOptions configures CreateDevice. The zero value creates one queue per
// family at priority 1.0 with the extension and feature set negotiated during
// selection.
type DeviceOptions struct {
	// QueuePriorities overrides the queues created for individual families,
	// keyed by family index. Each entry creates one queue per priority.
	// Families without an entry get a single queue at priority 1.0.
	QueuePriorities map[int][]float32
}

// Device owns a created logical device and resolves queue roles to queue
// handles.
type Device struct {
	// Handle is the created logical device.
	Handle core1_0.Device
	// PhysicalDevice is the snapshot the device was created from.
	PhysicalDevice *PhysicalDevice
	// Surface is the surface the device will present to, or nil.
	Surface khr_surface.Surface
	// SurfaceExtension is the instance's khr_surface extension object, or nil
	// in headless mode.
	SurfaceExtension khr_surface.Extension
	// APIVersion is the device's usable API version: the device version
	// capped to the instance version.
	APIVersion common.APIVersion

	logger *slog.Logger
}

// CreateDevice creates a logical device from a selected physical device. One
// queue is created for every queue family so queue retrieval never fails for
// a family the device reported; the negotiated extension set is augmented
// with the swapchain extension when a surface is in play and with the
// portability-subset extension when the compatibility mode applies.
func CreateDevice(physicalDevice *PhysicalDevice, options DeviceOptions) (*Device, error) {
	instance := physicalDevice.instance

	queueCreateInfos := make([]core1_0.DeviceQueueCreateInfo, 0, len(physicalDevice.QueueFamilies))
	for familyIndex := range physicalDevice.QueueFamilies {
		priorities := []float32{1.0}
		if override, ok := options.QueuePriorities[familyIndex]; ok && len(override) > 0 {
			priorities = override
		}

		queueCreateInfos = append(queueCreateInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: familyIndex,
			QueuePriorities:  priorities,
		})
	}

	extensions := append([]string{}, physicalDevice.ExtensionsToEnable...)
	if instance.Surface != nil || physicalDevice.deferredSurfaceInit {
		extensions = appendUnique(extensions, khr_swapchain.ExtensionName)
	}
	if portabilityExtension, ok := physicalDevice.portabilitySubsetExtension(); ok {
		extensions = appendUnique(extensions, portabilityExtension)
	}

	createInfo := core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueCreateInfos,
		EnabledExtensionNames: extensions,
	}

	flatFeatures := physicalDevice.FeaturesToEnable
	if physicalDevice.properties2Active {
		// Features ride the features2 chain; the flat field must stay unset.
		createInfo.NextOptions = common.NextOptions{
			Next: physicalDevice.requestedChain.deviceCreateOptions(flatFeatures),
		}
	} else {
		createInfo.EnabledFeatures = &flatFeatures
	}

	instance.logger.Debug("creating device",
		slog.String("device", physicalDevice.Name),
		slog.Any("extensions", extensions),
	)

	deviceHandle, _, err := physicalDevice.Handle.CreateDevice(nil, createInfo)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create a device from %s", physicalDevice.Name)
	}

	apiVersion := physicalDevice.Properties.APIVersion
	if instance.APIVersion < apiVersion {
		apiVersion = instance.APIVersion
	}

	return &Device{
		Handle:           deviceHandle,
		PhysicalDevice:   physicalDevice,
		Surface:          instance.Surface,
		SurfaceExtension: instance.SurfaceExtension,
		APIVersion:       apiVersion,

		logger: instance.logger,
	}, nil
}

// QueueIndex resolves a queue role to a queue family index.
func (d *Device) QueueIndex(queueType QueueType) (int, error) {
	families := d.PhysicalDevice.QueueFamilies

	index := -1
	var roleErr error
	switch queueType {
	case QueueTypePresent:
		index = d.PhysicalDevice.presentFamilyIndex
		if index < 0 && d.Surface != nil {
			index = presentQueueIndex(d.PhysicalDevice.Handle, d.Surface, len(families))
		}
		roleErr = ErrPresentUnavailable
	case QueueTypeGraphics:
		index = firstQueueIndex(families, core1_0.QueueGraphics)
		roleErr = ErrGraphicsUnavailable
	case QueueTypeCompute:
		index = separateQueueIndex(families, core1_0.QueueCompute, core1_0.QueueTransfer)
		roleErr = ErrComputeUnavailable
	case QueueTypeTransfer:
		index = separateQueueIndex(families, core1_0.QueueTransfer, core1_0.QueueCompute)
		roleErr = ErrTransferUnavailable
	case QueueTypeDedicatedCompute:
		index = dedicatedQueueIndex(families, core1_0.QueueCompute, core1_0.QueueTransfer)
		roleErr = ErrComputeUnavailable
	case QueueTypeDedicatedTransfer:
		index = dedicatedQueueIndex(families, core1_0.QueueTransfer, core1_0.QueueCompute)
		roleErr = ErrTransferUnavailable
	default:
		return -1, errors.Newf("unknown queue type %d", queueType)
	}

	if index < 0 {
		return -1, errors.Wrapf(roleErr, "queue type %s", queueType)
	}
	return index, nil
}

// Queue resolves a queue role to the first queue of its family.
func (d *Device) Queue(queueType QueueType) (core1_0.Queue, error) {
	familyIndex, err := d.QueueIndex(queueType)
	if err != nil {
		return nil, err
	}

	return d.Handle.GetQueue(familyIndex, 0), nil
}

// Destroy destroys the logical device. The surface and instance outlive it
// and are torn down by Instance.Destroy.
func (d *Device) Destroy() {
	if d.Handle != nil {
		d.Handle.Destroy(nil)
		d.Handle = nil
	}
}
