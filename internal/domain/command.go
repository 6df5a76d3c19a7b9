package domain

import (
	"fmt"
	"math"
)

// CommandKind selects the outbound command type.
type CommandKind int

const (
	// CommandSingle is an on/off actuation (C_SC_NA_1).
	CommandSingle CommandKind = iota + 1
	// CommandSetpointScaled is a scaled set-point (C_SE_NB_1).
	CommandSetpointScaled
)

// qualifierSelect is the S/E bit of SCO and QOS.
const qualifierSelect = 0x80

func (k CommandKind) String() string {
	switch k {
	case CommandSingle:
		return "single"
	case CommandSetpointScaled:
		return "setpoint-scaled"
	default:
		return "unknown"
	}
}

// TypeID returns the ASDU type the command is sent as.
func (k CommandKind) TypeID() TypeID {
	switch k {
	case CommandSingle:
		return C_SC_NA_1
	case CommandSetpointScaled:
		return C_SE_NB_1
	default:
		return 0
	}
}

// Command is a typed control request.
type Command struct {
	Kind          CommandKind
	CommonAddress uint16
	IOA           uint32
	Value         int32
	// Select requests select-before-operate; false executes directly.
	Select bool
}

// Validate checks the command can be translated into an ASDU.
func (c Command) Validate() error {
	switch c.Kind {
	case CommandSingle:
		if c.Value != 0 && c.Value != 1 {
			return fmt.Errorf("%w: single command value must be 0 or 1, got %d", ErrInvalidCommand, c.Value)
		}
	case CommandSetpointScaled:
		if c.Value < math.MinInt16 || c.Value > math.MaxInt16 {
			return fmt.Errorf("%w: scaled value %d out of int16 range", ErrInvalidCommand, c.Value)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidCommand, c.Kind)
	}
	if c.IOA > MaxIOA {
		return fmt.Errorf("%w: ioa %d exceeds %d", ErrInvalidCommand, c.IOA, MaxIOA)
	}
	return nil
}

// ASDU builds the activation ASDU for the command. The returned value is
// pooled and must be released by the caller.
func (c Command) ASDU(originator uint8) *ASDU {
	a := NewASDU(c.Kind.TypeID(), CauseActivation, c.CommonAddress)
	a.Originator = originator

	var qualifier uint8
	value := c.Value
	if c.Kind == CommandSingle {
		qualifier = uint8(value & 0x01)
		value = 0
	}
	if c.Select {
		qualifier |= qualifierSelect
	}
	a.Add(c.IOA, value, qualifier)
	return a
}

// IsSelect reports whether an information object carries the S/E bit.
func (o InformationObject) IsSelect() bool {
	return o.Quality&qualifierSelect != 0
}

// SingleState returns the SCS bit of a single command qualifier.
func (o InformationObject) SingleState() bool {
	return o.Quality&0x01 != 0
}
