package dma

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/fake"
	"github.com/momentics/vdma-stream/internal/physmem"
	"github.com/momentics/vdma-stream/internal/regs"
)

type sessionRig struct {
	eng     *fake.Engine
	journal *fake.Journal
	regsMem *fake.Memory
	bufMem  *fake.Memory
	cfg     SessionConfig
}

func newSessionRig(n int) *sessionRig {
	j := &fake.Journal{}
	opts := DefaultOptions()
	opts.Sleep = func(time.Duration) {}
	return &sessionRig{
		eng:     fake.NewEngine(0x100),
		journal: j,
		regsMem: fake.NewMemory("registers", 0x100, j),
		bufMem:  fake.NewMemory("buffers", n*testGeom.FrameSize(), j),
		cfg: SessionConfig{
			PhysBase:   testPhys,
			Geometry:   testGeom,
			Buffers:    n,
			Controller: opts,
		},
	}
}

func (r *sessionRig) open() (*Session, error) {
	return NewSession(r.eng, r.regsMem, r.bufMem.Bytes(), r.bufMem, r.cfg)
}

func TestSessionLifecycle(t *testing.T) {
	rig := newSessionRig(3)
	s, err := rig.open()
	require.NoError(t, err)

	assert.Equal(t, 3, s.BufferCount())
	assert.Equal(t, testGeom, s.Geometry())
	assert.Equal(t, StateRunning, s.Controller().State())
	assert.NoError(t, s.Health())

	rig.eng.SetFrameCount(5)
	assert.Equal(t, 2, s.CurrentWriteIndex())
	assert.Len(t, s.Frame(0), testGeom.FrameSize())

	require.NoError(t, s.Shutdown())
	assert.Equal(t, []string{"close buffers", "close registers"}, rig.journal.Events())
	assert.Zero(t, rig.eng.Peek(regs.Control.Offset)&regs.CtrlRun)

	require.NoError(t, s.Shutdown())
	assert.Len(t, rig.journal.Events(), 2)
}

func TestSessionShutdownCollectsErrors(t *testing.T) {
	rig := newSessionRig(2)
	s, err := rig.open()
	require.NoError(t, err)

	boom := errors.New("munmap failed")
	rig.bufMem.SetCloseError(boom)
	err = s.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.True(t, rig.regsMem.Closed(), "registers are unmapped even when buffers fail")
}

func TestSessionStartHalted(t *testing.T) {
	rig := newSessionRig(2)
	rig.eng.FaultOnArm = regs.StatusIntErr
	_, err := rig.open()

	assert.ErrorIs(t, err, api.ErrEngineHalted)
	assert.Zero(t, rig.eng.Peek(regs.Control.Offset)&regs.CtrlRun)
	assert.Empty(t, rig.journal.Events())
}

func TestSessionResetTimeout(t *testing.T) {
	rig := newSessionRig(2)
	rig.eng.ResetReads = fake.NeverClear
	_, err := rig.open()
	assert.ErrorIs(t, err, api.ErrResetTimeout)
	assert.False(t, rig.eng.Armed())
}

func TestSessionConfigErrors(t *testing.T) {
	rig := newSessionRig(5)
	_, err := rig.open()
	assert.ErrorIs(t, err, api.ErrConfiguration)

	rig = newSessionRig(2)
	rig.cfg.Geometry.Height = 0
	_, err = rig.open()
	assert.ErrorIs(t, err, api.ErrConfiguration)

	rig = newSessionRig(2)
	rig.cfg.BufferSize = 4096
	_, err = rig.open()
	assert.ErrorIs(t, err, api.ErrConfiguration, "slots larger than the mapping")

	rig = newSessionRig(2)
	rig.cfg.Geometry = api.Geometry{Width: 1 << 30, Height: 1 << 31, Format: api.PixelYUYV}
	assert.NotPanics(t, func() { _, err = rig.open() })
	assert.ErrorIs(t, err, api.ErrConfiguration, "geometry beyond engine limits")
}

func TestOpenRejectsShortRegisterWindow(t *testing.T) {
	_, err := Open(SessionConfig{
		Registers: physmem.Region{Device: "/dev/null", Length: 0x40},
	})
	assert.ErrorIs(t, err, api.ErrConfiguration)
}
