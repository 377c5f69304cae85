// Package mic owns the hardware input stream. The device callback
// runs the gate and segmenter inline and forwards events through the
// bounded pipeline channel; it never blocks and stays allocation-free
// after warmup.
package mic

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"

	"vrcbabel/gate"
	"vrcbabel/seg"
)

type Config struct {
	// SampleRate and Channels are requested from the device; the
	// encoded segments carry the same values.
	SampleRate int
	Channels   int

	// Threshold and Hold configure the noise gate.
	Threshold float32
	Hold      time.Duration

	// SilenceFrames is the number of consecutive below-threshold
	// callbacks that close a segment.
	SilenceFrames int
}

// Capture holds the audio backend context and the running device.
type Capture struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	segmenter *seg.Segmenter
	events    chan<- seg.Event
	logger    *log.Logger
}

// Start opens the default capture device and begins feeding the
// segmenter. Failure to open the device or an unsupported format is
// fatal to startup and reported to the caller.
func Start(cfg Config, events chan seg.Event, logger *log.Logger) (*Capture, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("audio backend", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize audio backend: %w", err)
	}

	g := gate.New(cfg.Threshold, cfg.Hold)
	segmenter := seg.NewSegmenter(
		g,
		cfg.SilenceFrames,
		cfg.Channels,
		cfg.SampleRate,
		events,
	)

	capture := &Capture{
		ctx:       mctx,
		segmenter: segmenter,
		events:    events,
		logger:    logger,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	// Reused across callbacks so the hot path stays allocation-free.
	var scratch []float32

	onRecvFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		n := int(frameCount) * cfg.Channels
		if cap(scratch) < n {
			scratch = make([]float32, n)
		}
		block := scratch[:n]
		for i := range block {
			block[i] = math.Float32frombits(
				binary.LittleEndian.Uint32(inputSamples[i*4:]),
			)
		}
		segmenter.Feed(block)
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	capture.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	logger.Info("listening",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"gate_threshold", cfg.Threshold,
		"gate_hold", cfg.Hold,
	)

	return capture, nil
}

// Dropped reports how many pipeline events were discarded under
// overload.
func (c *Capture) Dropped() uint64 { return c.segmenter.Dropped() }

// EncodeFailures reports how many closed segments were discarded
// because they could not be encoded.
func (c *Capture) EncodeFailures() uint64 { return c.segmenter.EncodeFailures() }

// Close stops the device and closes the pipeline channel so the
// consumer can drain and exit.
func (c *Capture) Close() {
	if err := c.device.Stop(); err != nil {
		c.logger.Error("failed to stop capture device", "error", err)
	}
	c.device.Uninit()
	if err := c.ctx.Uninit(); err != nil {
		c.logger.Error("failed to uninit audio backend", "error", err)
	}
	c.ctx.Free()
	close(c.events)
}
