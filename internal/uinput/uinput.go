// Package uinput creates a virtual power-key input device and injects
// synthetic power-key presses through it.
package uinput

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/lunixbochs/struc"
)

// Ref: input-event-codes.h
const (
	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0x00
	keyPower  = 116
	busVirt   = 0x06
)

// Device identity of the virtual power key.
const (
	DefaultName = "touchwake_powerkey"
	DefaultPhys = "touchwake_powerkey/input0"
	DefaultPath = "/dev/uinput"
)

const maxNameSize = 80

// Emitter injects power-key events.
type Emitter interface {
	EmitPowerKey(down bool) error
}

type inputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// userDev mirrors struct uinput_user_dev.
type userDev struct {
	Name       [maxNameSize]byte
	ID         inputID
	EffectsMax uint32
	AbsMax     [64]int32
	AbsMin     [64]int32
	AbsFuzz    [64]int32
	AbsFlat    [64]int32
}

// event64 and event32 mirror struct input_event for 64-bit and 32-bit
// struct timeval.
type event64 struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

type event32 struct {
	Sec   int32
	Usec  int32
	Type  uint16
	Code  uint16
	Value int32
}

var packOpts = &struc.Options{Order: binary.LittleEndian}

func encodeUserDev(name string) ([]byte, error) {
	dev := userDev{ID: inputID{BusType: busVirt, Vendor: 0x1, Product: 0x1, Version: 1}}
	copy(dev.Name[:maxNameSize-1], name)
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, &dev, packOpts); err != nil {
		return nil, fmt.Errorf("pack uinput_user_dev: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeEvents packs input_event structs with a zero timestamp; the kernel
// stamps injected events itself. wordSize selects the timeval layout.
func encodeEvents(wordSize int, evs ...[3]int32) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range evs {
		var v interface{}
		if wordSize == 64 {
			v = &event64{Type: uint16(e[0]), Code: uint16(e[1]), Value: e[2]}
		} else {
			v = &event32{Type: uint16(e[0]), Code: uint16(e[1]), Value: e[2]}
		}
		if err := struc.PackWithOptions(&buf, v, packOpts); err != nil {
			return nil, fmt.Errorf("pack input_event: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// powerKeyEvents returns the key event plus sync report for one transition.
func powerKeyEvents(down bool) ([]byte, error) {
	var v int32
	if down {
		v = 1
	}
	return encodeEvents(strconv.IntSize,
		[3]int32{evKey, keyPower, v},
		[3]int32{evSyn, synReport, 0},
	)
}
