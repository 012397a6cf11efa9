package gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
)

// accountant tracks live allocations against a byte budget and a handle limit.
type accountant struct {
	mu         sync.Mutex
	budget     uint64
	maxHandles int
	stats      Stats
}

func newAccountant(o deviceOptions) *accountant {
	return &accountant{budget: o.budget, maxHandles: o.maxHandles}
}

// reserve claims size bytes and one handle, or fails with ErrResourceExhaustion.
func (a *accountant) reserve(label string, size uint64, texture bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	live := a.stats.LiveBuffers + a.stats.LiveTextures
	if a.maxHandles > 0 && live >= a.maxHandles {
		return fmt.Errorf("gpu: %s: handle limit %d reached: %w", label, a.maxHandles, common.ErrResourceExhaustion)
	}
	if a.budget > 0 && a.stats.BytesInUse+size > a.budget {
		return fmt.Errorf("gpu: %s: %d bytes exceeds budget (%d of %d in use): %w",
			label, size, a.stats.BytesInUse, a.budget, common.ErrResourceExhaustion)
	}

	a.stats.BytesInUse += size
	a.stats.Allocations++
	if texture {
		a.stats.LiveTextures++
	} else {
		a.stats.LiveBuffers++
	}
	return nil
}

func (a *accountant) free(size uint64, texture bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.BytesInUse -= size
	a.stats.Releases++
	if texture {
		a.stats.LiveTextures--
	} else {
		a.stats.LiveBuffers--
	}
}

func (a *accountant) snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// handle carries the bookkeeping every resource shares: its label, size and a once-only release.
type handle struct {
	label   string
	size    uint64
	texture bool
	acct    *accountant
	once    sync.Once
	onFree  func()
}

func (h *handle) release() {
	h.once.Do(func() {
		if h.onFree != nil {
			h.onFree()
		}
		h.acct.free(h.size, h.texture)
	})
}

func validateStaging(label string, data common.TextureStagingData) error {
	if data.Width == 0 || data.Height == 0 {
		return fmt.Errorf("gpu: %s: empty texture %dx%d", label, data.Width, data.Height)
	}
	if want := int(data.Width) * int(data.Height) * 4; len(data.Pixels) != want {
		return fmt.Errorf("gpu: %s: have %d pixel bytes, want %d", label, len(data.Pixels), want)
	}
	return nil
}
