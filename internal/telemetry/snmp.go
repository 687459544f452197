package telemetry

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	oidSysName      = ".1.3.6.1.2.1.1.5.0"
	oidSerial       = ".1.3.6.1.2.1.43.5.1.1.17.1"
	oidModel        = ".1.3.6.1.2.1.25.3.2.1.3.1"
	oidPageCounter  = ".1.3.6.1.2.1.43.10.2.1.4.1.1"
	oidSupplyDesc   = ".1.3.6.1.2.1.43.11.1.1.6.1"
	oidSupplyMax    = ".1.3.6.1.2.1.43.11.1.1.8.1"
	oidSupplyLevel  = ".1.3.6.1.2.1.43.11.1.1.9.1"
	defaultSNMPPort = "161"
)

// SNMPProber reads the host and Printer-MIB over SNMP v2c
type SNMPProber struct {
	Community string
	Timeout   time.Duration
}

func (p *SNMPProber) Probe(ctx context.Context, address string) (*Reading, error) {
	host, port, err := hostPort(address, defaultSNMPPort)
	if err != nil {
		return nil, err
	}

	params := p.params(ctx, host, port)
	if err := params.Connect(); err != nil {
		return nil, err
	}
	defer params.Conn.Close()

	reading := &Reading{Supplies: map[string]int{}, PolledAt: time.Now()}

	result, err := params.Get([]string{oidSysName, oidSerial, oidModel, oidPageCounter})
	if err != nil {
		return nil, err
	}
	for _, v := range result.Variables {
		switch v.Name {
		case oidSysName:
			reading.SysName = snmpString(v.Value)
		case oidSerial:
			reading.Serial = snmpString(v.Value)
		case oidModel:
			reading.Model = snmpString(v.Value)
		case oidPageCounter:
			if n, ok := snmpToInt(v.Value); ok {
				reading.PageTotal = int64(n)
			}
		}
	}

	desc := map[string]string{}
	maxCap := map[string]int{}
	level := map[string]int{}
	_ = params.BulkWalk(oidSupplyDesc, func(pdu gosnmp.SnmpPDU) error {
		if idx := snmpIndex(pdu.Name, oidSupplyDesc); idx != "" {
			desc[idx] = snmpString(pdu.Value)
		}
		return nil
	})
	_ = params.BulkWalk(oidSupplyMax, func(pdu gosnmp.SnmpPDU) error {
		if idx := snmpIndex(pdu.Name, oidSupplyMax); idx != "" {
			if n, ok := snmpToInt(pdu.Value); ok {
				maxCap[idx] = n
			}
		}
		return nil
	})
	_ = params.BulkWalk(oidSupplyLevel, func(pdu gosnmp.SnmpPDU) error {
		if idx := snmpIndex(pdu.Name, oidSupplyLevel); idx != "" {
			if n, ok := snmpToInt(pdu.Value); ok {
				level[idx] = n
			}
		}
		return nil
	})

	for idx, lvl := range level {
		name := strings.ToLower(strings.TrimSpace(desc[idx]))
		if name == "" {
			name = "supply " + idx
		}
		if percent, ok := supplyPercent(lvl, maxCap[idx]); ok {
			reading.Supplies[name] = percent
		}
	}
	return reading, nil
}

func (p *SNMPProber) params(ctx context.Context, host, port string) *gosnmp.GoSNMP {
	community := p.Community
	if community == "" {
		community = "public"
	}
	params := &gosnmp.GoSNMP{
		Target:    host,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   2 * time.Second,
		Retries:   1,
		Context:   ctx,
	}
	if p.Timeout > 0 {
		params.Timeout = p.Timeout
	}
	if n, err := strconv.Atoi(port); err == nil && n > 0 && n < 65536 {
		params.Port = uint16(n)
	}
	return params
}

// supplyPercent converts a Printer-MIB level to a percentage. Negative levels
// are the MIB's "other" and "unknown" markers, except -3 which means some remains.
func supplyPercent(level, max int) (int, bool) {
	switch {
	case level == -3:
		return 100, true
	case level < 0:
		return 0, false
	case max > 0:
		percent := level * 100 / max
		if percent > 100 {
			percent = 100
		}
		return percent, true
	case level <= 100:
		return level, true
	default:
		return 0, false
	}
}

func snmpIndex(name, base string) string {
	name = "." + strings.TrimPrefix(name, ".")
	if strings.HasPrefix(name, base+".") {
		return strings.TrimPrefix(name, base+".")
	}
	return ""
}

func snmpString(val any) string {
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(strings.TrimRight(string(v), "\x00"))
	default:
		return ""
	}
}

func snmpToInt(val any) (int, bool) {
	if val == nil {
		return 0, false
	}
	if bi := gosnmp.ToBigInt(val); bi != nil {
		return int(bi.Int64()), true
	}
	return 0, false
}
