package commands

import (
	"context"
	"time"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/broker"
	"github.com/andewx/dieselshare/handoff"
	"github.com/andewx/dieselshare/plugin"
	"github.com/andewx/dieselshare/vulkan"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/sirupsen/logrus"
)

// drainTimeout bounds waiting for in-flight work at teardown.
const drainTimeout = time.Second

// host is what every demo side shares: the exporter behind the broker and
// the session the side binds through.
type host struct {
	exporter *vulkan.Exporter
	session  *plugin.Session
	ref      ds.Ref
	native   uint64
}

// openHost builds a broker and session for binder, then opens or creates
// the configured surface and binds it. An exporter is only required when
// this process ends up creating the surface.
func openHost(ctx context.Context, binder ds.Binder) (*host, error) {
	h := &host{}
	var exporter broker.Exporter
	if err := vulkan.LoadCoreFunctions(nil); err != nil {
		log.WithError(err).Warn("no Vulkan loader, this process can only open surfaces")
	} else if h.exporter, err = vulkan.NewExporter(cfg.Vulkan.AppName, log); err != nil {
		log.WithError(err).Warn("no exporting device, this process can only open surfaces")
	} else {
		exporter = h.exporter
	}

	b := broker.New(exporter, broker.Options{
		OpenTimeout: cfg.Broker.OpenTimeout,
		Duplication: broker.Duplication(cfg.Broker.Duplication),
		Logger:      log,
	})
	session, err := plugin.New(plugin.Options{Broker: b, Binder: binder, Logger: log})
	if err != nil {
		h.close()
		return nil, err
	}
	h.session = session

	h.ref, err = session.OpenOrCreate(ctx, cfg.Surface.Name,
		int32(cfg.Surface.Width), int32(cfg.Surface.Height), cfg.SurfaceFormat())
	if err != nil {
		h.close()
		return nil, err
	}
	if h.native, err = session.BindToContext(h.ref); err != nil {
		h.close()
		return nil, err
	}
	return h, nil
}

func (h *host) resource() (ds.Resource, bool) {
	return h.session.Resource(h.native)
}

func (h *host) close() {
	if h.session != nil {
		if err := h.session.Shutdown(); err != nil {
			log.WithError(err).Warn("session shutdown")
		}
	}
	if h.exporter != nil {
		h.exporter.Destroy()
	}
}

// renderLoop calls frame until the window closes, frame fails or the
// configured number of frames has been attempted.
func renderLoop(window *glfw.Window, frame func(t float32) (handoff.Outcome, error)) error {
	start := time.Now()
	for n := 0; !window.ShouldClose(); n++ {
		if cfg.Handoff.Frames > 0 && n >= cfg.Handoff.Frames {
			break
		}
		glfw.PollEvents()
		outcome, err := frame(float32(time.Since(start).Seconds()))
		if err != nil {
			return err
		}
		if outcome == handoff.Skipped {
			log.Debugf("frame %d skipped", n)
		}
	}
	return nil
}

func logStats(side string, s handoff.Stats) {
	log.WithFields(logrus.Fields{
		"side":      side,
		"submitted": s.Submitted,
		"skipped":   s.Skipped,
	}).Info("handoff finished")
}

// newWindow creates the demo window; hints must already be set.
func newWindow() (*glfw.Window, error) {
	return glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
}
