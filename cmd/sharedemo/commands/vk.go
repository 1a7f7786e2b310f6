package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/andewx/dieselshare/handoff"
	"github.com/andewx/dieselshare/vulkan"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"
)

var (
	produce bool
	flipY   bool
)

var vkCmd = &cobra.Command{
	Use:   "vk",
	Short: "Display the shared surface in a Vulkan window",
	Long: `Opens the named surface, creating it if no other process publishes it,
imports it into a Vulkan device and copies it to the window's swapchain every
frame. With --produce this process also renders the triangle itself.`,
	RunE: runVK,
}

func init() {
	vkCmd.Flags().BoolVar(&produce, "produce", false, "render into the surface from this process too")
	vkCmd.Flags().BoolVar(&flipY, "flip-y", true, "read the surface bottom up, as written by GL")
	rootCmd.AddCommand(vkCmd)
}

func runVK(cmd *cobra.Command, args []string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()
	if !glfw.VulkanSupported() {
		return errors.New("glfw reports no Vulkan support")
	}
	if err := vulkan.LoadCoreFunctions(glfw.GetVulkanGetInstanceProcAddress()); err != nil {
		return err
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := newWindow()
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()

	display := vulkan.NewDisplay(window)
	vkctx, err := vulkan.NewContext(vulkan.ContextOptions{
		AppName:            cfg.Vulkan.AppName,
		Validation:         cfg.Vulkan.Validation,
		InstanceExtensions: display.InstanceExtensions(),
		Surface:            display.CreateSurface,
		IdleTimeout:        drainTimeout,
		Logger:             log,
	})
	if err != nil {
		return err
	}
	defer vkctx.Destroy()

	binder, err := vulkan.NewBinder(vkctx)
	if err != nil {
		return err
	}
	h, err := openHost(context.Background(), binder)
	if err != nil {
		return err
	}
	defer h.close()

	res, _ := h.resource()
	shared, ok := res.(*vulkan.Resource)
	if !ok {
		return fmt.Errorf("surface %q did not bind as a Vulkan image", cfg.Surface.Name)
	}

	swapchain := vulkan.NewSwapchain(vkctx, display)
	defer func() {
		if err := swapchain.Destroy(drainTimeout); err != nil {
			log.WithError(err).Warn("swapchain teardown")
		}
	}()

	var producer *vulkan.Producer
	if produce {
		producer, err = vulkan.NewProducer(vkctx, shared, vulkan.ShaderPaths{
			Vertex:   cfg.Vulkan.VertexShader,
			Fragment: cfg.Vulkan.FragmentShader,
		}, cfg.Handoff.FenceTimeout)
		if err != nil {
			return err
		}
		defer func() {
			logStats("vk-producer", producer.Stats())
			if err := producer.Destroy(drainTimeout); err != nil {
				log.WithError(err).Warn("producer teardown")
			}
		}()
	}

	consumer, err := vulkan.NewConsumer(vkctx, swapchain, shared, cfg.Handoff.FenceTimeout, flipY && !produce)
	if err != nil {
		return err
	}
	defer func() {
		logStats("vk-consumer", consumer.Stats())
		if err := consumer.Destroy(drainTimeout); err != nil {
			log.WithError(err).Warn("consumer teardown")
		}
	}()

	return renderLoop(window, func(t float32) (handoff.Outcome, error) {
		if producer != nil {
			if _, err := producer.Frame(t); err != nil {
				return handoff.Skipped, err
			}
		}
		return consumer.Frame()
	})
}
