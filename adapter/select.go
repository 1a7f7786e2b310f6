package adapter

// Check is one named predicate of the device checklist.
type Check struct {
	Name string
	Pass func(a Adapter) bool
}

// Checklist returns the predicates a device must pass, in evaluation order.
func Checklist(withSurface bool, required []string) []Check {
	checks := []Check{
		{"graphics queue", func(a Adapter) bool { return DefaultQueueFamilyIndex(a, withSurface) >= 0 }},
		{"extensions", func(a Adapter) bool { return len(MissingExtensions(a, required)) == 0 }},
	}
	if withSurface {
		checks = append(checks, Check{"surface support", func(a Adapter) bool {
			return a.SurfaceFormatCount() > 0 && a.PresentModeCount() > 0
		}})
	}
	checks = append(checks,
		Check{"sampler anisotropy", func(a Adapter) bool { return a.SamplerAnisotropy() }},
		Check{"d32 depth attachment", func(a Adapter) bool { return a.DepthAttachment32F() }},
	)
	return checks
}

// Suitable reports whether a passes every check.
func Suitable(a Adapter, checks []Check) bool {
	for _, c := range checks {
		if !c.Pass(a) {
			return false
		}
	}
	return true
}

// FindPhysicalDevice returns the index of the first adapter passing the
// checklist, or -1. Enumeration order decides between several suitable ones.
func FindPhysicalDevice(adapters []Adapter, withSurface bool, required []string) int {
	checks := Checklist(withSurface, required)
	for i, a := range adapters {
		if Suitable(a, checks) {
			return i
		}
	}
	return -1
}

// MissingExtensions lists required names the adapter does not expose.
func MissingExtensions(a Adapter, required []string) []string {
	have := make(map[string]struct{})
	for _, name := range a.Extensions() {
		have[name] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// DefaultQueueFamilyIndex is the first family with graphics capability and at
// least one queue, that can also present when withSurface is set. -1 if none.
func DefaultQueueFamilyIndex(a Adapter, withSurface bool) int {
	for i, f := range a.QueueFamilies() {
		if f.Count == 0 || f.Flags&QueueGraphics == 0 {
			continue
		}
		if withSurface && !a.SupportsPresent(i) {
			continue
		}
		return i
	}
	return -1
}

// TransferQueueFamilyIndex prefers a family offering transfer without graphics
// or compute, then any transfer capable family. -1 if none.
func TransferQueueFamilyIndex(a Adapter) int {
	fallback := -1
	for i, f := range a.QueueFamilies() {
		if f.Count == 0 || f.Flags&QueueTransfer == 0 {
			continue
		}
		if f.Flags&(QueueGraphics|QueueCompute) == 0 {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback
}

// FindMemoryTypeIndex returns the lowest memory type index allowed by
// typeBits whose flags include all of required, or -1.
func FindMemoryTypeIndex(types []MemoryFlags, typeBits uint32, required MemoryFlags) int {
	for i := 0; i < len(types) && i < 32; i++ {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if types[i]&required == required {
			return i
		}
	}
	return -1
}
