package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/adapter"
	"github.com/andewx/dieselshare/internal/vkext"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

const (
	validationLayer       = "VK_LAYER_KHRONOS_validation"
	debugReportExtension  = "VK_EXT_debug_report"
	swapchainExtension    = "VK_KHR_swapchain"
	portabilityExtension  = "VK_KHR_portability_enumeration"
	portabilityEnumerable = 0x00000001 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR

	defaultIdleTimeout = time.Second
)

type ContextOptions struct {
	AppName    string
	Validation bool
	// InstanceExtensions are required on top of the external memory ones,
	// typically what the window system asks for.
	InstanceExtensions []string
	DeviceExtensions   []string
	// Surface creates the presentation surface once the instance exists.
	// A nil Surface makes a headless context.
	Surface func(instance vk.Instance) (vk.Surface, error)
	// IdleTimeout bounds how long Destroy waits for submitted work.
	// Zero means one second.
	IdleTimeout time.Duration
	Logger      *logrus.Logger
}

// Context is one Vulkan instance and device with a single queue, plus the
// external memory entry points loaded for that device.
type Context struct {
	log *logrus.Entry

	instance    vk.Instance
	gpu         vk.PhysicalDevice
	device      vk.Device
	surface     vk.Surface
	queueFamily uint32
	queue       vk.Queue
	// The transfer queue is the primary queue when both families match.
	transferFamily uint32
	transferQueue  vk.Queue

	gpuName       string
	memoryTypes   []adapter.MemoryFlags
	debugCallback vk.DebugReportCallback
	ext           *vkext.Table

	// owned is false when instance and device belong to a host.
	owned bool

	idleTimeout time.Duration
	// drain waits for submitted work; nil means drainQueues.
	drain func(timeout time.Duration) error
}

// NewContext creates an instance and device able to share surfaces.
// LoadCoreFunctions must have succeeded first.
func NewContext(opts ContextOptions) (ctx *Context, err error) {
	procAddr := coreProcAddr()
	if procAddr == nil {
		return nil, fmt.Errorf("%w: core functions not loaded", ds.ErrUnavailable)
	}
	c := &Context{
		log:         ds.Component(opts.Logger, "vulkan"),
		owned:       true,
		idleTimeout: opts.IdleTimeout,
	}
	defer func() {
		if err != nil {
			c.Destroy()
		}
	}()

	layers, err := c.createInstance(opts)
	if err != nil {
		return nil, err
	}
	instance := c.instance

	// Make sure the surface is here if required
	withSurface := opts.Surface != nil
	c.surface = vk.NullSurface
	if withSurface {
		surface, err := opts.Surface(instance)
		if err != nil {
			return nil, err
		}
		if surface == vk.NullSurface {
			return nil, errors.New("vulkan error: surface required but not provided")
		}
		c.surface = surface
	}

	// Find a suitable GPU
	deviceExtensions := AugmentDeviceExtensions(opts.DeviceExtensions)
	if withSurface {
		deviceExtensions = append(deviceExtensions, swapchainExtension)
	}
	adapters, err := Adapters(instance, c.surface)
	if err != nil {
		return nil, err
	}
	index := adapter.FindPhysicalDevice(adapters, withSurface, deviceExtensions)
	if index < 0 {
		return nil, fmt.Errorf("%w among %d adapters", ds.ErrNoDevice, len(adapters))
	}
	chosen := adapters[index].(*physicalAdapter)
	family, transfer, err := queueFamilies(chosen, withSurface)
	if err != nil {
		return nil, err
	}
	c.gpu = chosen.gpu
	c.gpuName = chosen.Name()
	c.memoryTypes = chosen.MemoryTypes()
	c.queueFamily = family
	c.transferFamily = transfer
	c.log.Infof("using %s, queue family %d, transfer family %d", c.gpuName, family, transfer)

	queueInfos := queueCreateInfos(c.queueFamily, c.transferFamily)
	var device vk.Device
	ret := vk.CreateDevice(c.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: safeStrings(deviceExtensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
		}},
	}, nil, &device)
	if isError(ret) {
		return nil, NewError(ret)
	}
	c.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, c.queueFamily, 0, &queue)
	c.queue = queue
	c.transferQueue = queue
	if c.transferFamily != c.queueFamily {
		var transferQueue vk.Queue
		vk.GetDeviceQueue(device, c.transferFamily, 0, &transferQueue)
		c.transferQueue = transferQueue
	}

	if err := c.loadExtensions(procAddr); err != nil {
		return nil, err
	}
	return c, nil
}

// queueFamilies resolves the primary and transfer queue families of a.
// Missing either one is a configuration error.
func queueFamilies(a adapter.Adapter, withSurface bool) (primary, transfer uint32, err error) {
	p := adapter.DefaultQueueFamilyIndex(a, withSurface)
	if p < 0 {
		return 0, 0, fmt.Errorf("%w on %s", ds.ErrNoQueueFamily, a.Name())
	}
	t := adapter.TransferQueueFamilyIndex(a)
	if t < 0 {
		return 0, 0, fmt.Errorf("%w: no transfer family on %s", ds.ErrNoQueueFamily, a.Name())
	}
	return uint32(p), uint32(t), nil
}

// queueCreateInfos asks for one queue of the primary family and one of the
// transfer family when it is a different one.
func queueCreateInfos(primary, transfer uint32) []vk.DeviceQueueCreateInfo {
	infos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: primary,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	if transfer != primary {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: transfer,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	return infos
}

// createInstance creates the instance, with the debug report callback when
// validating, and returns the enabled layers.
func (c *Context) createInstance(opts ContextOptions) (layers []string, err error) {
	// Select instance extensions
	wanted := AugmentInstanceExtensions(opts.InstanceExtensions)
	if opts.Validation {
		wanted = append(wanted, debugReportExtension)
	}
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		wanted = append(wanted, portabilityExtension)
		flags = vk.InstanceCreateFlags(portabilityEnumerable)
	}
	actual, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	instanceExtensions, missing := checkExisting(actual, wanted)
	if missing > 0 {
		return nil, fmt.Errorf("%w: %d required instance extensions missing", ds.ErrUnavailable, missing)
	}
	c.log.Infof("enabling %d instance extensions", len(instanceExtensions))

	// Select instance layers
	if opts.Validation {
		actualLayers, err := ValidationLayers()
		if err != nil {
			return nil, err
		}
		layers, missing = checkExisting(actualLayers, []string{validationLayer})
		if missing > 0 {
			c.log.Warnf("validation requested but %s is not installed", validationLayer)
		}
	}

	appName := opts.AppName
	if appName == "" {
		appName = "dieselshare"
	}
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		Flags: flags,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(appName),
			PEngineName:        "dieselshare\x00",
		},
		EnabledExtensionCount:   uint32(len(instanceExtensions)),
		PpEnabledExtensionNames: instanceExtensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if isError(ret) {
		return nil, NewError(ret)
	}
	c.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ds.ErrUnavailable, err)
	}

	if opts.Validation && len(layers) > 0 {
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: c.debugReport,
		}, nil, &c.debugCallback)
		if isError(ret) {
			return nil, NewError(ret)
		}
		c.log.Debug("debug report callback enabled")
	}

	return layers, nil
}

// HostContext is an instance and device owned by an embedding host. The
// device must have been created with AugmentDeviceExtensions applied.
type HostContext struct {
	Instance       vk.Instance
	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device
	Queue          vk.Queue
	QueueFamily    uint32
	// TransferQueue may be nil, the primary queue then serves transfers.
	TransferQueue  vk.Queue
	TransferFamily uint32
}

// WrapContext loads the external memory entry points for a host's device.
// Destroy on the result only unloads them.
func WrapContext(host HostContext, log *logrus.Logger) (*Context, error) {
	procAddr := coreProcAddr()
	if procAddr == nil {
		return nil, fmt.Errorf("%w: core functions not loaded", ds.ErrUnavailable)
	}
	c := &Context{
		log:            ds.Component(log, "vulkan"),
		instance:       host.Instance,
		gpu:            host.PhysicalDevice,
		device:         host.Device,
		queue:          host.Queue,
		queueFamily:    host.QueueFamily,
		transferQueue:  host.Queue,
		transferFamily: host.QueueFamily,
		surface:        vk.NullSurface,
		memoryTypes:    memoryTypes(host.PhysicalDevice),
	}
	if host.TransferQueue != nil {
		c.transferQueue = host.TransferQueue
		c.transferFamily = host.TransferFamily
	}
	if err := vk.InitInstance(host.Instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ds.ErrUnavailable, err)
	}
	if err := c.loadExtensions(procAddr); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) loadExtensions(procAddr unsafe.Pointer) error {
	ext, err := vkext.Load(procAddr, unsafe.Pointer(c.instance), unsafe.Pointer(c.device))
	if err != nil {
		return fmt.Errorf("%w: %v", ds.ErrUnavailable, err)
	}
	c.ext = ext
	return nil
}

func (c *Context) Instance() vk.Instance             { return c.instance }
func (c *Context) PhysicalDevice() vk.PhysicalDevice { return c.gpu }
func (c *Context) Device() vk.Device                 { return c.device }
func (c *Context) Queue() vk.Queue                   { return c.queue }
func (c *Context) QueueFamilyIndex() uint32          { return c.queueFamily }
func (c *Context) TransferQueue() vk.Queue           { return c.transferQueue }
func (c *Context) TransferFamilyIndex() uint32       { return c.transferFamily }
func (c *Context) Surface() vk.Surface               { return c.surface }
func (c *Context) Logger() *logrus.Entry             { return c.log }

// Destroy releases everything the context created, newest first. It first
// waits for submitted work, bounded by the idle timeout; if that work does
// not finish the device and instance are left alive.
func (c *Context) Destroy() {
	if c.device != nil {
		if err := c.idle(); err != nil {
			c.log.Warnf("leaving device alive: %v", err)
			c.ext.Unload()
			c.ext = nil
			return
		}
	}
	c.ext.Unload()
	c.ext = nil
	if !c.owned {
		c.device = nil
		return
	}
	if c.device != nil {
		vk.DestroyDevice(c.device, nil)
		c.device = nil
	}
	if c.surface != vk.NullSurface {
		vk.DestroySurface(c.instance, c.surface, nil)
		c.surface = vk.NullSurface
	}
	if c.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(c.instance, c.debugCallback, nil)
		c.debugCallback = vk.NullDebugReportCallback
	}
	if c.instance != nil {
		vk.DestroyInstance(c.instance, nil)
		c.instance = nil
	}
}

func (c *Context) idle() error {
	timeout := c.idleTimeout
	if timeout <= 0 {
		timeout = defaultIdleTimeout
	}
	return c.drainIdle(timeout)
}

func (c *Context) drainIdle(timeout time.Duration) error {
	if c.drain != nil {
		return c.drain(timeout)
	}
	return c.drainQueues(timeout)
}

// drainQueues waits at most timeout for the work already submitted to the
// context's queues. An empty batch's fence signals once everything queued
// before it has completed.
func (c *Context) drainQueues(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for _, queue := range c.queues() {
		fence, err := NewFence(c.device)
		if err != nil {
			return err
		}
		if ret := vk.QueueSubmit(queue, 0, nil, fence.handle); isError(ret) {
			fence.Destroy()
			return NewError(ret)
		}
		done, err := fence.Wait(time.Until(deadline))
		if err != nil {
			return err
		}
		if !done {
			// The fence is still pending and cannot be destroyed.
			return fmt.Errorf("vulkan: work still queued after %s", timeout)
		}
		fence.Destroy()
	}
	return nil
}

func (c *Context) queues() []vk.Queue {
	var queues []vk.Queue
	if c.queue != nil {
		queues = append(queues, c.queue)
	}
	if c.transferQueue != nil && c.transferQueue != c.queue {
		queues = append(queues, c.transferQueue)
	}
	return queues
}

func (c *Context) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	entry := c.log.WithFields(logrus.Fields{"layer": pLayerPrefix, "code": messageCode})
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		entry.Error(pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		entry.Warn(pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		entry.Warnf("performance: %s", pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		entry.Debug(pMessage)
	default:
		entry.Info(pMessage)
	}
	return vk.Bool32(vk.False)
}
