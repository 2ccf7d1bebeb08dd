package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressValue(t *testing.T) {
	var x string

	val := NewAddress(&x, ":9000")

	require.Equal(t, ":9000", val.String())
	require.NoError(t, val.Validate())
	require.False(t, val.IsEmpty())

	val.Set("6000")
	require.Equal(t, ":6000", x)
	require.NoError(t, val.Validate())

	val.Set("localhost:srt")
	require.Error(t, val.Validate())

	val.Set("")
	require.NoError(t, val.Validate())
	require.True(t, val.IsEmpty())
}

func TestMulticastAddressValue(t *testing.T) {
	var x string

	val := NewMulticastAddress(&x, "239.0.0.1:1234")
	require.NoError(t, val.Validate())

	val.Set("192.168.1.1:1234")
	require.Error(t, val.Validate())

	val.Set("239.0.0.1")
	require.Error(t, val.Validate())
}

func TestAdapterValue(t *testing.T) {
	var x string

	val := NewAdapter(&x, "")
	require.NoError(t, val.Validate())
	require.True(t, val.IsEmpty())

	val.Set("eth0")
	require.NoError(t, val.Validate())

	val.Set("10.0.0.2")
	require.NoError(t, val.Validate())

	val.Set("::1")
	require.Error(t, val.Validate())
}

func TestCIDRListValue(t *testing.T) {
	var x []string

	val := NewCIDRList(&x, []string{}, " ")

	require.Equal(t, "(empty)", val.String())
	require.NoError(t, val.Validate())
	require.True(t, val.IsEmpty())

	x = []string{"127.0.0.1/32", "127.0.0.2/32"}

	require.Equal(t, "127.0.0.1/32 127.0.0.2/32", val.String())
	require.NoError(t, val.Validate())

	val.Set("129.0.0.1/32 129.0.0.2/32")
	require.Equal(t, []string{"129.0.0.1/32", "129.0.0.2/32"}, x)

	val.Set("129.0.0.1")
	require.Error(t, val.Validate())
}
