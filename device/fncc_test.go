package device

import "testing"

func TestFNCCStatusString(t *testing.T) {
	cases := map[FNCCStatus]string{
		FNCCStatusOK:                  "OK",
		FNCCStatusModbusFrameError:    "MODBUS_FRAME_ERROR",
		FNCCStatusModbusStuck:         "MODBUS_STUCK",
		FNCCStatusModbusFrameErrStuck: "MODBUS_FRAME_ERROR_STUCK",
		FNCCStatusUnknown:             "UNKNOWN",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("FNCCStatus(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestFNCCPollMapDecodesBusStatusAndFieldNode(t *testing.T) {
	f := NewFNCC(nil, 31, nil)
	m := NewMap(fnccPollFields1())
	first, last := m.Span()
	words := make([]int, last-first+1)
	words[fnccRegStatus-first] = int(FNCCStatusModbusStuck)
	words[18-first] = 42 // FIELD_NODE_NUMBER
	decoded, err := m.Decode(first, words)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	f.BusStatus = FNCCStatus(decoded["SYS_STATUS"].(int))
	f.FieldNodeNumber = decoded["FIELD_NODE_NUMBER"].(int)

	if f.BusStatus != FNCCStatusModbusStuck {
		t.Errorf("BusStatus = %v, want FNCCStatusModbusStuck", f.BusStatus)
	}
	if f.FieldNodeNumber != 42 {
		t.Errorf("FieldNodeNumber = %d, want 42", f.FieldNodeNumber)
	}
}
