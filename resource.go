package dieselshare

// API tags the graphics API a Resource was bound into.
type API int

const (
	APIOpenGL API = iota + 1
	APIVulkan
)

func (a API) String() string {
	switch a {
	case APIOpenGL:
		return "opengl"
	case APIVulkan:
		return "vulkan"
	}
	return "unknown"
}

// Resource is a shared surface bound into one graphics context: one image,
// one memory object and one semaphore, all imported from a Descriptor.
// The concrete type is chosen by the Binder and never changes.
type Resource interface {
	API() API
	// Native is the handle a host uses to reference the image: a GL texture
	// name or a VkImage.
	Native() uint64
	// Released reports whether all three objects have been destroyed.
	Released() bool
}

// Binder imports descriptors into a specific graphics context.
type Binder interface {
	API() API
	Bind(d Descriptor) (Resource, error)
	// Unbind releases memory, then image, then semaphore. Calling it on a
	// partially bound or already released resource is allowed.
	Unbind(r Resource) error
}
