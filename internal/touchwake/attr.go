package touchwake

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Attribute names of the settings surface.
const (
	AttrEnabled = "enabled"
	AttrDelay   = "delay"
	AttrVersion = "version"
	AttrDebug   = "debug"
)

// Attrs lists the attributes in display order.
var Attrs = []string{AttrEnabled, AttrDelay, AttrVersion, AttrDebug}

var (
	ErrUnknownAttr = errors.New("touchwake: unknown attribute")
	ErrReadOnly    = errors.New("touchwake: attribute is read-only")
)

// ReadAttr renders an attribute as newline-terminated text.
func (c *Controller) ReadAttr(name string) (string, error) {
	switch name {
	case AttrEnabled:
		return fmt.Sprintf("%d\n", boolToUint(c.Enabled())), nil
	case AttrDelay:
		return fmt.Sprintf("%d\n", c.Delay().Milliseconds()), nil
	case AttrVersion:
		return Version + "\n", nil
	case AttrDebug:
		return fmt.Sprintf("timed_out : %d\n", boolToUint(c.TimedOut())), nil
	}
	return "", ErrUnknownAttr
}

// WriteAttr stores text into a writable attribute. Input that does not start
// with an unsigned decimal, or an enabled value other than 0 or 1, is
// discarded and the previous value kept; that is not an error.
func (c *Controller) WriteAttr(name, text string) error {
	switch name {
	case AttrEnabled:
		v, ok := parseUint(text)
		if !ok {
			log.WithField("input", text).Debug("enabled: invalid input")
			return nil
		}
		switch v {
		case 0:
			c.SetEnabled(false)
		case 1:
			c.SetEnabled(true)
		default:
			log.WithField("value", v).Debug("enabled: invalid input range")
		}
		return nil
	case AttrDelay:
		v, ok := parseUint(text)
		if !ok {
			log.WithField("input", text).Debug("delay: invalid input")
			return nil
		}
		c.SetDelay(time.Duration(v) * time.Millisecond)
		return nil
	case AttrVersion, AttrDebug:
		return ErrReadOnly
	}
	return ErrUnknownAttr
}

// parseUint reads a leading unsigned 32-bit decimal, ignoring leading white
// space and anything after the digits.
func parseUint(s string) (uint64, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	s = strings.TrimPrefix(s, "+")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}

func boolToUint(b bool) uint {
	if b {
		return 1
	}
	return 0
}
