package applets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"gitlab.com/tinyland/lab/minidisplay/pkg/applet"
	"gitlab.com/tinyland/lab/minidisplay/pkg/render"
)

const gib = 1 << 30

// Sample is one snapshot of the host for the info screen.
type Sample struct {
	Hostname string
	IP       string

	CPUPercent float64

	MemPercent float64
	MemFree    uint64 // bytes available

	DiskPercent float64
	DiskFree    uint64 // bytes
}

// Sampler takes host snapshots.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// SystemSampler reads the live host through gopsutil.
type SystemSampler struct {
	// DiskPath is the mount point reported on the DISK line.
	DiskPath string

	// IfacePrefix selects the interface whose IPv4 is shown, matched
	// case-insensitively against the interface name.
	IfacePrefix string

	interfaces func() ([]net.Interface, error)
}

// NewSystemSampler reports disk usage for diskPath and the address of the
// first interface named with ifacePrefix.
func NewSystemSampler(diskPath, ifacePrefix string) *SystemSampler {
	return &SystemSampler{DiskPath: diskPath, IfacePrefix: ifacePrefix, interfaces: net.Interfaces}
}

// Sample gathers every field it can. Partial failures are reported as an
// aggregated error alongside the partial sample.
func (s *SystemSampler) Sample(ctx context.Context) (Sample, error) {
	var out Sample
	var errs []error

	host, err := os.Hostname()
	if err != nil {
		errs = append(errs, fmt.Errorf("hostname: %w", err))
	}
	out.Hostname, _, _ = strings.Cut(host, ".")
	out.IP = s.address()

	// interval 0 compares against the previous call, so it never blocks.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else if len(pct) > 0 {
		out.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else if vm.Total > 0 {
		out.MemFree = vm.Available
		out.MemPercent = 100 * float64(vm.Total-vm.Available) / float64(vm.Total)
	}

	if du, err := disk.UsageWithContext(ctx, s.DiskPath); err != nil {
		errs = append(errs, fmt.Errorf("disk %s: %w", s.DiskPath, err))
	} else {
		out.DiskFree = du.Free
		out.DiskPercent = du.UsedPercent
	}

	return out, errors.Join(errs...)
}

// address returns the first IPv4 of the first matching interface that is
// up, or "" when there is none.
func (s *SystemSampler) address() string {
	ifaces, err := s.interfaces()
	if err != nil {
		return ""
	}
	prefix := strings.ToLower(s.IfacePrefix)
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || !strings.HasPrefix(strings.ToLower(iface.Name), prefix) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ip := ipv4(a.String()); ip != "" {
				return ip
			}
		}
	}
	return ""
}

// ipv4 strips the mask from "192.168.1.2/24" and rejects IPv6.
func ipv4(addr string) string {
	host, _, _ := strings.Cut(addr, "/")
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return ""
	}
	return ip.String()
}

// info shows a hostname and address header above CPU, memory and disk
// lines.
type info struct {
	sampler Sampler
	font    string
	timeout time.Duration
}

func newInfo(o applet.Options, env Env) (applet.Applet, error) {
	name, err := o.String("font", DefaultFont)
	if err != nil {
		return nil, err
	}
	sampler := env.Sampler
	diskPath, err := o.String("disk", "")
	if err != nil {
		return nil, err
	}
	prefix, err := o.String("interface", "")
	if err != nil {
		return nil, err
	}
	if diskPath != "" || prefix != "" {
		if diskPath == "" {
			diskPath = "/"
		}
		if prefix == "" {
			prefix = "w"
		}
		sampler = NewSystemSampler(diskPath, prefix)
	}
	return &info{sampler: sampler, font: name, timeout: time.Second}, nil
}

func (a *info) Render(rc *render.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	s, err := a.sampler.Sample(ctx)
	if err != nil && s == (Sample{}) {
		return err
	}

	d := rc.Display
	d.WriteText(fmt.Sprintf("%-11s", s.Hostname), 0, 0, face(rc, a.font, 10))
	d.WriteText(fmt.Sprintf("%16s", s.IP), 40, 7, face(rc, a.font, 9))

	body := face(rc, a.font, 12)
	for i, line := range infoLines(s) {
		d.WriteText(line, 0, 16+12*i, body)
	}
	return nil
}

func infoLines(s Sample) []string {
	return []string{
		fmt.Sprintf("CPU:  % 3d%%", int(s.CPUPercent)),
		fmt.Sprintf("MEM:  % 2d%% %.2fGB", int(s.MemPercent), float64(s.MemFree)/gib),
		fmt.Sprintf("DISK: % 2d%% %.2fGB", int(s.DiskPercent), float64(s.DiskFree)/gib),
	}
}
