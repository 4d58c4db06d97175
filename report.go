package bootstrap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// DeviceInfoString renders the capability snapshot as a JSON document, for
// logging and bug reports.
func (d *PhysicalDevice) DeviceInfoString() string {
	writer := jwriter.NewWriter()
	d.printDeviceInfo(&writer)

	return string(writer.Bytes())
}

func (d *PhysicalDevice) printDeviceInfo(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("Name").String(d.Name)
	obj.Name("Type").String(d.Properties.DriverType.String())
	obj.Name("ApiVersion").String(d.Properties.APIVersion.String())
	obj.Name("Verdict").String(d.Verdict.String())

	heaps := obj.Name("MemoryHeaps").Array()
	for _, heap := range d.MemoryProperties.MemoryHeaps {
		heapObj := heaps.Object()
		heapObj.Name("Size").Int(heap.Size)
		heapObj.Name("DeviceLocal").Bool(heap.Flags&core1_0.MemoryHeapDeviceLocal != 0)
		heapObj.End()
	}
	heaps.End()

	families := obj.Name("QueueFamilies").Array()
	for _, family := range d.QueueFamilies {
		familyObj := families.Object()
		familyObj.Name("Flags").String(family.QueueFlags.String())
		familyObj.Name("Count").Int(family.QueueCount)
		familyObj.End()
	}
	families.End()

	extensions := obj.Name("EnabledExtensions").Array()
	for _, extensionName := range d.ExtensionsToEnable {
		extensions.String(extensionName)
	}
	extensions.End()
}
