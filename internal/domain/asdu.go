package domain

import (
	"sync"
	"time"
)

// MaxIOA is the largest information object address a three-octet IOA can carry.
const MaxIOA = 1<<24 - 1

// InformationObject is a single element record of an ASDU.
type InformationObject struct {
	IOA   uint32 `json:"ioa" msgpack:"ioa"`
	Value int32  `json:"value" msgpack:"value"`
	// Quality holds the quality descriptor in monitor direction and the
	// command qualifier (SCO/QOS) in control direction.
	Quality uint8 `json:"quality,omitempty" msgpack:"quality,omitempty"`
}

// ASDU is a decoded application service data unit.
type ASDU struct {
	Type          TypeID
	COT           CauseOfTransmission
	CommonAddress uint16
	Originator    uint8
	Negative      bool
	Test          bool
	Sequence      bool
	Time          time.Time
	Objects       []InformationObject
}

var asduPool = sync.Pool{
	New: func() any { return &ASDU{} },
}

// NewASDU takes an empty ASDU from the pool. The caller owns it until Release.
func NewASDU(typ TypeID, cot CauseOfTransmission, commonAddress uint16) *ASDU {
	a := asduPool.Get().(*ASDU)
	a.Type = typ
	a.COT = cot
	a.CommonAddress = commonAddress
	return a
}

// Add appends an information object.
func (a *ASDU) Add(ioa uint32, value int32, quality uint8) {
	a.Objects = append(a.Objects, InformationObject{IOA: ioa, Value: value, Quality: quality})
}

// Clone returns an independent pooled copy. The original may be reused or
// discarded by its owner as soon as Clone returns.
func (a *ASDU) Clone() *ASDU {
	c := asduPool.Get().(*ASDU)
	objects := c.Objects[:0]
	*c = *a
	c.Objects = append(objects, a.Objects...)
	return c
}

// Release returns the ASDU to the pool.
func (a *ASDU) Release() {
	objects := a.Objects[:0]
	*a = ASDU{Objects: objects}
	asduPool.Put(a)
}

// IsConfirmation reports whether the ASDU acknowledges an activation or deactivation.
func (a *ASDU) IsConfirmation() bool {
	return a.COT == CauseActivationCon || a.COT == CauseDeactivationCon
}
