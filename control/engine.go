// control/engine.go
// Author: momentics <momentics@gmail.com>
//
// Debug probes over the DMA engine's registers.

package control

import (
	"fmt"

	"github.com/momentics/vdma-stream/dma"
)

// EngineView is the read-only part of dma.Controller the probes use.
type EngineView interface {
	State() dma.State
	Status() dma.Status
	Version() uint32
	CurrentWriteIndex() int
}

// RegisterEngineProbes exposes engine state under the dma. prefix. Probes
// read registers on demand; call DumpState from the goroutine that owns
// the controller.
func RegisterEngineProbes(dp *DebugProbes, e EngineView) {
	dp.RegisterProbe("dma.state", func() any {
		return e.State().String()
	})
	dp.RegisterProbe("dma.status", func() any {
		st := e.Status()
		return map[string]any{
			"raw":         fmt.Sprintf("0x%08x", st.Raw),
			"halted":      st.Halted,
			"errors":      st.Errors.String(),
			"frame_count": st.FrameCount,
		}
	})
	dp.RegisterProbe("dma.version", func() any {
		v := e.Version()
		return fmt.Sprintf("%x.%02x", v>>28, (v>>20)&0xFF)
	})
	dp.RegisterProbe("dma.write_index", func() any {
		return e.CurrentWriteIndex()
	})
}
