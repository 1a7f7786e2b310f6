package adapter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockAdapter struct {
	name        string
	families    []QueueFamily
	present     map[int]bool
	extensions  []string
	formats     int
	modes       int
	anisotropy  bool
	depth32     bool
	memoryTypes []MemoryFlags
}

func (m *mockAdapter) Name() string                 { return m.name }
func (m *mockAdapter) QueueFamilies() []QueueFamily { return m.families }
func (m *mockAdapter) SupportsPresent(i int) bool   { return m.present[i] }
func (m *mockAdapter) Extensions() []string         { return m.extensions }
func (m *mockAdapter) SurfaceFormatCount() int      { return m.formats }
func (m *mockAdapter) PresentModeCount() int        { return m.modes }
func (m *mockAdapter) SamplerAnisotropy() bool      { return m.anisotropy }
func (m *mockAdapter) DepthAttachment32F() bool     { return m.depth32 }
func (m *mockAdapter) MemoryTypes() []MemoryFlags   { return m.memoryTypes }

var required = []string{"VK_KHR_external_memory_fd", "VK_KHR_external_semaphore_fd"}

func good(name string) *mockAdapter {
	return &mockAdapter{
		name:       name,
		families:   []QueueFamily{{Flags: QueueGraphics | QueueCompute | QueueTransfer, Count: 1}},
		present:    map[int]bool{0: true},
		extensions: append([]string{"VK_KHR_swapchain"}, required...),
		formats:    2,
		modes:      1,
		anisotropy: true,
		depth32:    true,
	}
}

func TestFindPhysicalDeviceSingleQualifier(t *testing.T) {
	noGraphics := good("compute-only")
	noGraphics.families = []QueueFamily{{Flags: QueueCompute, Count: 1}}
	noExt := good("no-ext")
	noExt.extensions = []string{"VK_KHR_swapchain"}
	noAniso := good("no-aniso")
	noAniso.anisotropy = false
	noDepth := good("no-depth")
	noDepth.depth32 = false
	noSurface := good("no-surface-formats")
	noSurface.formats = 0

	adapters := []Adapter{noGraphics, noExt, noAniso, noDepth, noSurface, good("winner")}
	assert.Equal(t, 5, FindPhysicalDevice(adapters, true, required))

	// Each failing adapter fails exactly one predicate, so any order of
	// evaluation rejects it.
	checks := Checklist(true, required)
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		rng.Shuffle(len(checks), func(i, j int) { checks[i], checks[j] = checks[j], checks[i] })
		picked := -1
		for i, a := range adapters {
			if Suitable(a, checks) {
				picked = i
				break
			}
		}
		assert.Equal(t, 5, picked)
	}
}

func TestFindPhysicalDeviceFirstMatch(t *testing.T) {
	adapters := []Adapter{good("a"), good("b")}
	assert.Equal(t, 0, FindPhysicalDevice(adapters, false, required))
}

func TestFindPhysicalDeviceNone(t *testing.T) {
	bad := good("bad")
	bad.depth32 = false
	assert.Equal(t, -1, FindPhysicalDevice([]Adapter{bad}, false, required))
	assert.Equal(t, -1, FindPhysicalDevice(nil, false, required))
}

func TestSurfaceChecksOnlyWithSurface(t *testing.T) {
	headless := good("headless")
	headless.formats = 0
	headless.modes = 0
	headless.present = nil
	assert.Equal(t, 0, FindPhysicalDevice([]Adapter{headless}, false, required))
	assert.Equal(t, -1, FindPhysicalDevice([]Adapter{headless}, true, required))
}

func TestDefaultQueueFamilyIndex(t *testing.T) {
	a := good("a")
	a.families = []QueueFamily{
		{Flags: QueueGraphics, Count: 0},
		{Flags: QueueTransfer, Count: 2},
		{Flags: QueueGraphics | QueueTransfer, Count: 1},
		{Flags: QueueGraphics, Count: 4},
	}
	a.present = map[int]bool{3: true}
	assert.Equal(t, 2, DefaultQueueFamilyIndex(a, false))
	assert.Equal(t, 3, DefaultQueueFamilyIndex(a, true))

	a.families = []QueueFamily{{Flags: QueueTransfer, Count: 1}}
	assert.Equal(t, -1, DefaultQueueFamilyIndex(a, false))
}

func TestTransferQueueFamilyIndex(t *testing.T) {
	a := good("a")
	a.families = []QueueFamily{
		{Flags: QueueGraphics | QueueCompute | QueueTransfer, Count: 16},
		{Flags: QueueCompute | QueueTransfer, Count: 8},
		{Flags: QueueTransfer, Count: 2},
	}
	assert.Equal(t, 2, TransferQueueFamilyIndex(a))

	a.families = a.families[:2]
	assert.Equal(t, 0, TransferQueueFamilyIndex(a))

	a.families = []QueueFamily{{Flags: QueueGraphics, Count: 1}}
	assert.Equal(t, -1, TransferQueueFamilyIndex(a))
}

func TestFindMemoryTypeIndex(t *testing.T) {
	types := []MemoryFlags{
		MemoryHostVisible | MemoryHostCoherent,
		MemoryDeviceLocal,
		MemoryDeviceLocal | MemoryHostVisible,
		MemoryDeviceLocal,
	}
	tests := []struct {
		name     string
		bits     uint32
		required MemoryFlags
		want     int
	}{
		{"lowest device local", 0b1111, MemoryDeviceLocal, 1},
		{"mask skips lower types", 0b1100, MemoryDeviceLocal, 2},
		{"superset required", 0b1111, MemoryDeviceLocal | MemoryHostVisible, 2},
		{"no required flags", 0b1000, 0, 3},
		{"none in mask", 0b0001, MemoryDeviceLocal, -1},
		{"empty mask", 0, 0, -1},
		{"mask beyond types", 1 << 10, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindMemoryTypeIndex(types, tt.bits, tt.required))
		})
	}
}

func TestMissingExtensions(t *testing.T) {
	a := good("a")
	a.extensions = []string{"VK_KHR_external_memory_fd"}
	assert.Equal(t, []string{"VK_KHR_external_semaphore_fd"}, MissingExtensions(a, required))
}
