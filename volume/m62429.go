// Package volume drives the M62429 (FM62429) two-channel volume control
// IC. The part has no bus: an 11-bit word (D0..D9 plus a latch bit) is
// bit-banged over dedicated data/clock pins.
package volume

import (
	"errors"
	"time"

	"periphkit/core"
)

// Channel selectors for SetVolume and friends.
const (
	ChannelLeft  = 0
	ChannelRight = 1
	ChannelBoth  = 2
)

// maxAttn is the attenuation range of the part in whole dB.
const maxAttn = 87

var (
	// ErrChannel reports a channel selector above ChannelBoth.
	ErrChannel = errors.New("volume: invalid channel")

	// ErrMuted reports a volume change attempted while muted.
	ErrMuted = errors.New("volume: device is muted")
)

// Device is one M62429 with the 0..255 volume mapping and mute handling.
// For direct attenuation control use Raw instead.
type Device struct {
	wire  wire
	vol   [2]uint8
	muted bool
}

// New creates a Device on the given pins. clockDelay stretches every
// clock phase; zero is fine on hosts slower than the part's 1.6MHz
// limit.
func New(data, clock core.DigitalPin, clockDelay time.Duration) *Device {
	return &Device{wire: wire{data: data, clock: clock, delay: clockDelay}}
}

// SetClock replaces the timing source used for the clock delay.
func (d *Device) SetClock(clock core.Clock) { d.wire.timer = clock }

// Begin drives both pins low and silences both channels.
func (d *Device) Begin() {
	d.wire.idle()
	d.muted = false
	d.SetVolume(ChannelBoth, 0)
}

// SetVolume maps volume 0..255 onto the 0..87dB attenuator range and
// programs the selected channel(s). Fails while muted.
func (d *Device) SetVolume(channel int, vol uint8) error {
	if channel > ChannelBoth || channel < 0 {
		return ErrChannel
	}
	if d.muted {
		return ErrMuted
	}
	d.wire.send(channel, uint8(int(vol)*maxAttn/255))
	switch channel {
	case ChannelLeft:
		d.vol[0] = vol
	case ChannelRight:
		d.vol[1] = vol
	default:
		d.vol[0], d.vol[1] = vol, vol
	}
	return nil
}

// GetVolume returns the cached volume. For ChannelBoth it returns the
// left channel.
func (d *Device) GetVolume(channel int) (uint8, error) {
	if channel > ChannelBoth || channel < 0 {
		return 0, ErrChannel
	}
	return d.vol[channel&1], nil
}

// Incr raises the selected channel(s) one volume step, saturating at 255.
func (d *Device) Incr(channel int) error {
	if channel > ChannelBoth || channel < 0 {
		return ErrChannel
	}
	if d.muted {
		return ErrMuted
	}
	if (channel == ChannelLeft || channel == ChannelBoth) && d.vol[0] < 255 {
		d.SetVolume(ChannelLeft, d.vol[0]+1)
	}
	if (channel == ChannelRight || channel == ChannelBoth) && d.vol[1] < 255 {
		d.SetVolume(ChannelRight, d.vol[1]+1)
	}
	return nil
}

// Decr lowers the selected channel(s) one volume step, saturating at 0.
func (d *Device) Decr(channel int) error {
	if channel > ChannelBoth || channel < 0 {
		return ErrChannel
	}
	if d.muted {
		return ErrMuted
	}
	if (channel == ChannelLeft || channel == ChannelBoth) && d.vol[0] > 0 {
		d.SetVolume(ChannelLeft, d.vol[0]-1)
	}
	if (channel == ChannelRight || channel == ChannelBoth) && d.vol[1] > 0 {
		d.SetVolume(ChannelRight, d.vol[1]-1)
	}
	return nil
}

// Average sets both channels to the mean of their cached volumes.
func (d *Device) Average() error {
	if d.muted {
		return ErrMuted
	}
	return d.SetVolume(ChannelBoth, uint8((int(d.vol[0])+int(d.vol[1]))/2))
}

// MuteOn silences both channels unconditionally. Cached volumes survive
// for MuteOff.
func (d *Device) MuteOn() {
	if d.muted {
		return
	}
	d.muted = true
	d.wire.send(ChannelBoth, 0)
}

// MuteOff restores the cached volumes.
func (d *Device) MuteOff() {
	if !d.muted {
		return
	}
	d.muted = false
	if d.vol[0] > 0 {
		d.SetVolume(ChannelLeft, d.vol[0])
	}
	if d.vol[1] > 0 {
		d.SetVolume(ChannelRight, d.vol[1])
	}
}

// IsMuted reports the mute state.
func (d *Device) IsMuted() bool { return d.muted }

// Raw exposes the attenuator directly in dB steps, without the volume
// mapping or mute bookkeeping.
type Raw struct {
	wire wire
	attn [2]uint8
}

// NewRaw creates a Raw device on the given pins.
func NewRaw(data, clock core.DigitalPin, clockDelay time.Duration) *Raw {
	return &Raw{wire: wire{data: data, clock: clock, delay: clockDelay}}
}

// Begin drives both pins low and sets full attenuation on both channels.
func (r *Raw) Begin() {
	r.wire.idle()
	r.SetAttn(ChannelBoth, 0)
}

// SetAttn programs attenuation 0..87 (0 = fully attenuated, 87 = full
// volume) on the selected channel(s).
func (r *Raw) SetAttn(channel int, attn uint8) error {
	if channel > ChannelBoth || channel < 0 {
		return ErrChannel
	}
	r.wire.send(channel, attn)
	switch channel {
	case ChannelLeft:
		r.attn[0] = attn
	case ChannelRight:
		r.attn[1] = attn
	default:
		r.attn[0], r.attn[1] = attn, attn
	}
	return nil
}

// GetAttn returns the cached attenuation.
func (r *Raw) GetAttn(channel int) (uint8, error) {
	if channel > ChannelBoth || channel < 0 {
		return 0, ErrChannel
	}
	return r.attn[channel&1], nil
}

//
// WIRE FORMAT
//

// wire clocks the 11-bit control word out, LSB first.
type wire struct {
	data  core.DigitalPin
	clock core.DigitalPin
	delay time.Duration
	timer core.Clock
}

func (w *wire) idle() {
	w.data.Set(false)
	w.clock.Set(false)
}

func (w *wire) pause() {
	if w.delay <= 0 {
		return
	}
	if w.timer == nil {
		w.timer = core.SystemClock()
	}
	w.timer.Sleep(w.delay)
}

// send shifts out D0..D9 then the D10 latch bit. Datasheet: D0-D1 select
// the channel (11 = ch1, 10 = ch2, 00 = both), D2-D8 carry the
// attenuation, D9 and D10 are always high, and the latch requires clock
// to fall before data.
func (w *wire) send(channel int, attn uint8) {
	databits := uint16(0x0200)
	databits |= uint16(attn&0x03) << 7
	databits |= uint16(attn & 0x7C)
	switch channel {
	case ChannelLeft:
		databits |= 0x03
	case ChannelRight:
		databits |= 0x02
	}

	for i := 0; i < 10; i++ {
		w.data.Set(databits&0x01 != 0)
		databits >>= 1
		w.clock.Set(true)
		w.pause()
		w.data.Set(false)
		w.clock.Set(false)
		w.pause()
	}

	// latch bit
	w.data.Set(true)
	w.clock.Set(true)
	w.pause()
	w.clock.Set(false)
	w.pause()
	w.data.Set(false)
	w.pause()
}
