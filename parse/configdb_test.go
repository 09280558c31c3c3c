package parse

import (
	"strings"
	"testing"

	"github.com/remora-net/remora/model"
)

const configDBJSON = `{
  "DEVICE_METADATA": {
    "localhost": {"hostname": "sonic1", "hwsku": "Force10-S6000"}
  },
  "INTERFACE": {
    "Ethernet0": {},
    "Ethernet0|10.0.1.1/31": {},
    "Ethernet4|10.0.2.1/31": {}
  },
  "ACL_TABLE": {
    "DATAACL": {"stage": "ingress", "type": "L3", "ports": ["Ethernet0", "Ethernet4"]}
  },
  "ACL_RULE": {
    "DATAACL|RULE_10": {"PRIORITY": "9990", "PACKET_ACTION": "FORWARD", "IP_PROTOCOL": "6", "DST_IP": "10.9.0.0/16", "L4_DST_PORT": "443"},
    "DATAACL|RULE_20": {"PRIORITY": "9980", "PACKET_ACTION": "DROP", "SRC_IP": "10.0.1.0/24"},
    "DATAACL|DEFAULT_RULE": {"PRIORITY": 1, "PACKET_ACTION": "FORWARD"}
  },
  "STATIC_ROUTE": {
    "0.0.0.0/0": {"nexthop": "10.0.2.0"},
    "default|10.8.0.0/16": {"ifname": "Ethernet0"}
  },
  "SYSLOG_SERVER": {
    "10.9.9.9": {}
  }
}`

func TestExtractConfigDB(t *testing.T) {
	w := &Warnings{}
	cfg, partial, err := extractConfigDB("config_db.json", configDBJSON, w)
	if err != nil {
		t.Fatal(err)
	}
	if partial {
		t.Fatalf("unexpected partial extraction, warnings: %+v", w)
	}
	if cfg.Hostname != "sonic1" {
		t.Errorf("hostname: %q", cfg.Hostname)
	}

	e0, ok := cfg.Interface("Ethernet0")
	if !ok || e0.Addr != mustPrefix(t, "10.0.1.1/31") || e0.InACL != "DATAACL" {
		t.Errorf("Ethernet0: %+v", e0)
	}
	e4, ok := cfg.Interface("Ethernet4")
	if !ok || e4.Addr != mustPrefix(t, "10.0.2.1/31") || e4.InACL != "DATAACL" {
		t.Errorf("Ethernet4: %+v", e4)
	}

	acl, ok := cfg.ACL("DATAACL")
	if !ok || len(acl.Lines) != 3 {
		t.Fatalf("DATAACL: %+v", acl)
	}
	// priority order: 9990, 9980, 1
	r0, r1, r2 := acl.Lines[0], acl.Lines[1], acl.Lines[2]
	if r0.Action != model.Permit || r0.Protocol != model.TCP ||
		r0.Dst != mustPrefix(t, "10.9.0.0/16") ||
		len(r0.DstPorts) != 1 || r0.DstPorts[0] != model.Port(443) {
		t.Errorf("rule 0: %+v", r0)
	}
	if r1.Action != model.Deny || r1.Src != mustPrefix(t, "10.0.1.0/24") {
		t.Errorf("rule 1: %+v", r1)
	}
	if r2.Action != model.Permit || r2.Protocol != model.AnyProtocol ||
		r2.Src != mustPrefix(t, "0.0.0.0/0") || r2.Dst != mustPrefix(t, "0.0.0.0/0") {
		t.Errorf("rule 2: %+v", r2)
	}

	if len(cfg.Routes) != 2 {
		t.Fatalf("routes: %+v", cfg.Routes)
	}
	// Ethernet4's /31 covers next hop 10.0.2.0
	if cfg.Routes[0] != (model.Route{Prefix: mustPrefix(t, "0.0.0.0/0"), Iface: "Ethernet4"}) {
		t.Errorf("route 0: %+v", cfg.Routes[0])
	}
	if cfg.Routes[1] != (model.Route{Prefix: mustPrefix(t, "10.8.0.0/16"), Iface: "Ethernet0"}) {
		t.Errorf("route 1: %+v", cfg.Routes[1])
	}

	if len(w.Pedantic) != 1 || !strings.Contains(w.Pedantic[0], "SYSLOG_SERVER") {
		t.Errorf("pedantic: %+v", w.Pedantic)
	}
}

func TestExtractConfigDBBadJSON(t *testing.T) {
	w := &Warnings{}
	_, _, err := extractConfigDB("config_db.json", `{"DEVICE_METADATA": [`, w)
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtractConfigDBBadRule(t *testing.T) {
	text := `{
  "DEVICE_METADATA": {"localhost": {"hostname": "s2"}},
  "ACL_TABLE": {"T": {"type": "L3", "ports": ["Ethernet0"]}},
  "ACL_RULE": {"T|R1": {"PRIORITY": "10", "PACKET_ACTION": "MIRROR"}}
}`
	w := &Warnings{}
	cfg, partial, err := extractConfigDB("config_db.json", text, w)
	if err != nil {
		t.Fatal(err)
	}
	if !partial {
		t.Error("bad rule should mark extraction partial")
	}
	acl, _ := cfg.ACL("T")
	if len(acl.Lines) != 0 {
		t.Errorf("lines: %+v", acl.Lines)
	}
	if len(w.RedFlags) != 1 || !strings.Contains(w.RedFlags[0], "MIRROR") {
		t.Errorf("red flags: %+v", w.RedFlags)
	}
}
