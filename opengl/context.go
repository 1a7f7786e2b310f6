// Package opengl binds shared surfaces into a GL context and renders into
// them. Every call must be made on the thread the context is current on.
package opengl

import (
	"fmt"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/internal/glext"
	"github.com/go-gl/gl/v3.2-core/gl"
	"github.com/sirupsen/logrus"
)

// Context is the current GL context with the shared surface entry points
// resolved.
type Context struct {
	ext      *glext.Table
	renderer string
	log      *logrus.Entry
}

// NewContext loads the GL bindings and the external memory entry points
// through getProcAddr, usually glfw.GetProcAddress. The context must be
// current.
func NewContext(getProcAddr glext.ProcAddrFunc, log *logrus.Logger) (*Context, error) {
	if err := gl.InitWithProcAddrFunc(getProcAddr); err != nil {
		return nil, fmt.Errorf("%w: gl init: %v", ds.ErrUnavailable, err)
	}
	c := &Context{
		renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
		log:      ds.Component(log, "opengl"),
	}
	if missing := missingNames(Extensions(), glext.Extensions); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s lacks GL extensions %v", ds.ErrUnavailable, c.renderer, missing)
	}
	ext, err := glext.Load(getProcAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ds.ErrUnavailable, err)
	}
	c.ext = ext
	c.log.Infof("GL %s on %s", gl.GoStr(gl.GetString(gl.VERSION)), c.renderer)
	return c, nil
}

// Extensions lists the extensions of the current context.
func Extensions() []string {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	names := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		names = append(names, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}
	return names
}

func missingNames(actual, required []string) []string {
	have := make(map[string]struct{}, len(actual))
	for _, name := range actual {
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

func (c *Context) Renderer() string { return c.renderer }

func (c *Context) Logger() *logrus.Entry { return c.log }

// Destroy forgets the entry points. The GL context itself belongs to the
// window system.
func (c *Context) Destroy() {
	c.ext.Unload()
	c.ext = nil
}
