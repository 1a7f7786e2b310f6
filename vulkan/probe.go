package vulkan

import (
	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/adapter"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// AdapterReport is how one physical device fares against the headless
// device checklist.
type AdapterReport struct {
	Name     string
	Suitable bool
	// Failed names the checks the device did not pass.
	Failed            []string
	MissingExtensions []string
	QueueFamily       int
	TransferFamily    int
	MemoryTypes       []adapter.MemoryFlags
}

// Probe creates a temporary instance and reports every adapter it
// enumerates. LoadCoreFunctions must have succeeded first.
func Probe(appName string, log *logrus.Logger) ([]AdapterReport, error) {
	c := &Context{log: ds.Component(log, "vulkan-probe"), owned: true}
	defer c.Destroy()
	if _, err := c.createInstance(ContextOptions{AppName: appName, Logger: log}); err != nil {
		return nil, err
	}
	adapters, err := Adapters(c.instance, vk.NullSurface)
	if err != nil {
		return nil, err
	}
	return reportAdapters(adapters, AugmentDeviceExtensions(nil)), nil
}

func reportAdapters(adapters []adapter.Adapter, required []string) []AdapterReport {
	checks := adapter.Checklist(false, required)
	reports := make([]AdapterReport, 0, len(adapters))
	for _, a := range adapters {
		r := AdapterReport{
			Name:              a.Name(),
			MissingExtensions: adapter.MissingExtensions(a, required),
			QueueFamily:       adapter.DefaultQueueFamilyIndex(a, false),
			TransferFamily:    adapter.TransferQueueFamilyIndex(a),
			MemoryTypes:       a.MemoryTypes(),
		}
		for _, check := range checks {
			if !check.Pass(a) {
				r.Failed = append(r.Failed, check.Name)
			}
		}
		r.Suitable = len(r.Failed) == 0
		reports = append(reports, r)
	}
	return reports
}
