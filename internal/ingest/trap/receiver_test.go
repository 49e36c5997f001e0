package trap

import (
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

func TestTrapIdentityV1EnterpriseSpecific(t *testing.T) {
	packet := &gosnmp.SnmpPacket{
		Version: gosnmp.Version1,
		SnmpTrap: gosnmp.SnmpTrap{
			Enterprise:   ".1.3.6.1.4.1.318",
			GenericTrap:  6,
			SpecificTrap: 5,
		},
	}

	trapOID, enterpriseOID := trapIdentity(packet)
	assert.Equal(t, "1.3.6.1.4.1.318.0.5", trapOID)
	assert.Equal(t, "1.3.6.1.4.1.318", enterpriseOID)
}

func TestTrapIdentityV1GenericMapsToStandardTree(t *testing.T) {
	packet := &gosnmp.SnmpPacket{
		Version: gosnmp.Version1,
		SnmpTrap: gosnmp.SnmpTrap{
			Enterprise:  "1.3.6.1.4.1.9",
			GenericTrap: 2, // linkDown
		},
	}

	trapOID, _ := trapIdentity(packet)
	assert.Equal(t, "1.3.6.1.6.3.1.1.5.3", trapOID)
}

func TestTrapIdentityV2c(t *testing.T) {
	packet := &gosnmp.SnmpPacket{
		Version: gosnmp.Version2c,
		Variables: []gosnmp.SnmpPDU{
			{
				Name:  ".1.3.6.1.6.3.1.1.4.1.0",
				Type:  gosnmp.ObjectIdentifier,
				Value: ".1.3.6.1.4.1.9.9.41.2.0.1",
			},
		},
	}

	trapOID, enterpriseOID := trapIdentity(packet)
	assert.Equal(t, "1.3.6.1.4.1.9.9.41.2.0.1", trapOID)
	assert.Equal(t, "1.3.6.1.4.1.9.9.41", enterpriseOID)
}

func TestTrapIdentityV2cMissingTrapOID(t *testing.T) {
	packet := &gosnmp.SnmpPacket{
		Version: gosnmp.Version2c,
		Variables: []gosnmp.SnmpPDU{
			{Name: "1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(12345)},
		},
	}

	trapOID, _ := trapIdentity(packet)
	assert.Empty(t, trapOID)
}

func TestStripComponents(t *testing.T) {
	assert.Equal(t, "1.3.6.1.4.1.9.9.41", stripComponents("1.3.6.1.4.1.9.9.41.2.0", 2))
	assert.Equal(t, "1.3", stripComponents("1.3.6", 1))
	assert.Equal(t, "1", stripComponents("1", 2))
}

func TestIsClearTrap(t *testing.T) {
	addon := &models.Addon{
		ID: "apc",
		Manifest: &models.Manifest{
			SNMPTrap: &models.SNMPTrapSpec{
				TrapDefinitions: map[string]models.TrapDefinition{
					"1.3.6.1.4.1.318.0.5": {AlertType: "on_battery", ClearOID: ".1.3.6.1.4.1.318.0.9"},
				},
			},
		},
	}

	assert.True(t, isClearTrap(addon, "1.3.6.1.4.1.318.0.9"))
	assert.False(t, isClearTrap(addon, "1.3.6.1.4.1.318.0.5"))
	assert.False(t, isClearTrap(&models.Addon{}, "1.3.6.1.4.1.318.0.9"))
}

func TestVarbindString(t *testing.T) {
	cases := []struct {
		pdu  gosnmp.SnmpPDU
		want string
	}{
		{gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("hello")}, "hello"},
		{gosnmp.SnmpPDU{Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1"}, "1.3.6.1"},
		{gosnmp.SnmpPDU{Type: gosnmp.IPAddress, Value: "10.0.0.1"}, "10.0.0.1"},
		{gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: 42}, "42"},
		{gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: uint64(1 << 40)}, "1099511627776"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, varbindString(tc.pdu))
	}
}

func TestCollectVarbinds(t *testing.T) {
	packet := &gosnmp.SnmpPacket{
		Variables: []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.2.1.1.5.0", Type: gosnmp.OctetString, Value: []byte("core-sw-01")},
			{Name: "1.3.6.1.2.1.2.2.1.1.12", Type: gosnmp.Integer, Value: 12},
		},
	}

	varbinds := collectVarbinds(packet)
	assert.Equal(t, "core-sw-01", varbinds["1.3.6.1.2.1.1.5.0"])
	assert.Equal(t, "12", varbinds["1.3.6.1.2.1.2.2.1.1.12"])
}
