// Package testrig assembles the mock Vulkan object graph the unit tests drive
// the protocol against.
package testrig

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/common"
	mock_driver "github.com/vkngwrapper/core/v2/driver/mocks"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/golang/mock/gomock"
)

// MockRig wires a mock instance, physical device, and device together the way
// the sample framework hands them to the protocol: all three report the given
// core version, and extension activation queries are answered from the
// provided lists. Proc addresses resolve to nil, so extension objects created
// from the rig's device can be constructed but not driven.
func MockRig(ctrl *gomock.Controller, version common.APIVersion, instanceExtensions []string, deviceExtensions []string) (*mocks.MockInstance, *mocks.MockPhysicalDevice, *mocks.MockDevice) {
	coreDriver := mock_driver.NewMockDriver(ctrl)
	coreDriver.EXPECT().LoadProcAddr(gomock.Any()).Return(unsafe.Pointer(nil)).AnyTimes()

	instance := mocks.NewMockInstance(ctrl)
	instance.EXPECT().APIVersion().Return(version).AnyTimes()
	instance.EXPECT().IsInstanceExtensionActive(gomock.Any()).DoAndReturn(
		func(extensionName string) bool {
			return containsExtension(instanceExtensions, extensionName)
		}).AnyTimes()

	physicalDevice := mocks.NewMockPhysicalDevice(ctrl)

	device := mocks.NewMockDevice(ctrl)
	device.EXPECT().APIVersion().Return(version).AnyTimes()
	device.EXPECT().Driver().Return(coreDriver).AnyTimes()
	device.EXPECT().IsDeviceExtensionActive(gomock.Any()).DoAndReturn(
		func(extensionName string) bool {
			return containsExtension(deviceExtensions, extensionName)
		}).AnyTimes()

	return instance, physicalDevice, device
}

func containsExtension(extensions []string, name string) bool {
	for _, extension := range extensions {
		if extension == name {
			return true
		}
	}

	return false
}
