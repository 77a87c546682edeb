//go:build linux

package uinput

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var log = logrus.WithField("component", "uinput")

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

var (
	uiDevCreate  = ioc(iocNone, 'U', 1, 0)
	uiDevDestroy = ioc(iocNone, 'U', 2, 0)
	uiSetEvBit   = ioc(iocWrite, 'U', 100, 4)
	uiSetKeyBit  = ioc(iocWrite, 'U', 101, 4)
	uiSetPhys    = ioc(iocWrite, 'U', 108, uint32(unsafe.Sizeof(uintptr(0))))
)

func ioctl(fd uintptr, req, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg); errno != 0 {
		return errno
	}
	return nil
}

// Device is a virtual input device that only reports KEY_POWER.
type Device struct {
	f *os.File
}

// Open creates the virtual power-key device through the uinput node at path.
func Open(path, name, phys string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := f.Fd()

	setup := func() error {
		if err := ioctl(fd, uiSetEvBit, evKey); err != nil {
			return fmt.Errorf("UI_SET_EVBIT EV_KEY: %w", err)
		}
		if err := ioctl(fd, uiSetEvBit, evSyn); err != nil {
			return fmt.Errorf("UI_SET_EVBIT EV_SYN: %w", err)
		}
		if err := ioctl(fd, uiSetKeyBit, keyPower); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT KEY_POWER: %w", err)
		}
		if phys != "" {
			p := append([]byte(phys), 0)
			if err := ioctl(fd, uiSetPhys, uintptr(unsafe.Pointer(&p[0]))); err != nil {
				return fmt.Errorf("UI_SET_PHYS: %w", err)
			}
		}
		dev, err := encodeUserDev(name)
		if err != nil {
			return err
		}
		if _, err := f.Write(dev); err != nil {
			return fmt.Errorf("write uinput_user_dev: %w", err)
		}
		if err := ioctl(fd, uiDevCreate, 0); err != nil {
			return fmt.Errorf("UI_DEV_CREATE: %w", err)
		}
		return nil
	}
	if err := setup(); err != nil {
		f.Close()
		return nil, err
	}

	log.WithField("name", name).Info("virtual power key created")
	return &Device{f: f}, nil
}

// EmitPowerKey writes a KEY_POWER transition followed by SYN_REPORT.
func (d *Device) EmitPowerKey(down bool) error {
	b, err := powerKeyEvents(down)
	if err != nil {
		return err
	}
	if _, err := d.f.Write(b); err != nil {
		return fmt.Errorf("write power key event: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (d *Device) Close() error {
	var errs []error
	if err := ioctl(d.f.Fd(), uiDevDestroy, 0); err != nil {
		errs = append(errs, fmt.Errorf("UI_DEV_DESTROY: %w", err))
	}
	if err := d.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close uinput: %w", err))
	}
	return errors.Join(errs...)
}
