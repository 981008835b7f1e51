package kx13x

// I2C addresses selected by the ADDR pin.
const (
	DefaultAddress   uint16 = 0x1F
	AlternateAddress uint16 = 0x1E
)

// WHO_AM_I values.
const (
	WhoAmIKX132 = 0x3D
	WhoAmIKX134 = 0x46
)

// Register addresses
const (
	regXOutL   = 0x08
	regWhoAmI  = 0x13
	regIntRel  = 0x1A
	regCntl1   = 0x1B
	regODCntl  = 0x21
	regInc1    = 0x22
	regInc4    = 0x25
	rawDataLen = 6
)

// CNTL1 bits
const (
	cntl1PC1   = 0x80 // operating mode
	cntl1Res   = 0x40 // high performance
	cntl1DRDYE = 0x20 // data ready engine
	cntl1GSel  = 0x18
)

// INC1 bits
const (
	inc1IEN1 = 0x20 // physical interrupt pin 1 enable
	inc1IEA1 = 0x10 // active high
	inc1IEL1 = 0x08 // pulsed
)

// INC4 bits
const inc4DRDYI1 = 0x10 // route data ready to INT1
