package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/andewx/dieselshare/handoff"
	"github.com/andewx/dieselshare/opengl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"
)

var glCmd = &cobra.Command{
	Use:   "gl",
	Short: "Render a rotating triangle into the shared surface with OpenGL",
	Long: `Opens the named surface, creating it if no other process publishes it,
imports it into an OpenGL 4.5 context and renders a rotating triangle into it
every frame. The surface is also blitted to this process's window.`,
	RunE: runGL,
}

func init() {
	rootCmd.AddCommand(glCmd)
}

func runGL(cmd *cobra.Command, args []string) error {
	// glfw and the GL context belong to the main thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 5)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	window, err := newWindow()
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	glfw.SwapInterval(1)

	glctx, err := opengl.NewContext(glfw.GetProcAddress, log)
	if err != nil {
		return err
	}
	defer glctx.Destroy()

	binder, err := opengl.NewBinder(glctx)
	if err != nil {
		return err
	}
	h, err := openHost(context.Background(), binder)
	if err != nil {
		return err
	}
	defer h.close()

	res, _ := h.resource()
	shared, ok := res.(*opengl.Resource)
	if !ok {
		return fmt.Errorf("surface %q did not bind as an OpenGL texture", cfg.Surface.Name)
	}
	producer, err := opengl.NewProducer(glctx, shared, cfg.Handoff.FenceTimeout)
	if err != nil {
		return err
	}
	defer func() {
		logStats("gl", producer.Stats())
		if err := producer.Destroy(drainTimeout); err != nil {
			log.WithError(err).Warn("producer teardown")
		}
	}()

	return renderLoop(window, func(t float32) (handoff.Outcome, error) {
		out, err := producer.Frame(t)
		if err != nil {
			return out, err
		}
		fbw, fbh := window.GetFramebufferSize()
		producer.Present(int32(fbw), int32(fbh))
		window.SwapBuffers()
		return out, nil
	})
}
