package mcir

import (
	"testing"

	"github.com/microlower/mcbackend/internal/testing/require"
)

func TestRelocKindWire(t *testing.T) {
	require.Equal(t, uint8(ImageRelAMD64Addr64), RelocAbs64.Wire())
	require.Equal(t, uint8(ImageRelAMD64Rel32), RelocRel32.Wire())

	r := require.CapturePanic(func() { RelocInvalid.Wire() })
	require.NotNil(t, r)
}

func TestCodeRelocationAppendWire(t *testing.T) {
	rec := CodeRelocation{
		Kind:       RelocRel32,
		Symbol:     IdentRef(7),
		CodeOffset: 0x01020304,
		Addend:     -4,
	}
	got := rec.AppendWire(nil)
	require.Equal(t, []byte{
		0x02,                   // kind: Rel32
		0x04, 0x03, 0x02, 0x01, // code offset
		0x07, 0x00, 0x00, 0x00, // symbol index
		0xFC, 0xFF, 0xFF, 0xFF, // addend, two's complement
	}, got)

	// Appending extends rather than replaces.
	got2 := rec.AppendWire([]byte{0xAA})
	require.Equal(t, byte(0xAA), got2[0])
	require.Len(t, got2, 14)
}
