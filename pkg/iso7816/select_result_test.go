package iso7816

import (
	"strings"
	"testing"

	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

var odfFCP = tlv.Hex(
	"62 19",
	"82 02 4121",
	"83 02 5031",
	"A5 03 800171",
	"8A 01 05",
	"8B 03 6F0602",
	"80 02 0038",
)

func TestSelectResult_Describe(t *testing.T) {
	cls, _ := ChannelClass(1)
	cmdSelect := SelectPath(cls, PathFromMF(0x7FFF, 0x5031))

	t.Run("Verify Exact Report Format", func(t *testing.T) {
		trace := Trace{
			{
				Command:  cmdSelect,
				Response: &ResponseAPDU{Status: NewStatusWord(0x61, 0x1B)},
			},
			{
				Command: NewCommandAPDU(cls, mustInstruction(INS_GET_RESPONSE), 0, 0, nil, 27),
				Response: &ResponseAPDU{
					Data:   odfFCP,
					Status: SW_NO_ERROR,
				},
			},
		}

		res, err := NewSelectResult(trace)
		if err != nil {
			t.Fatalf("NewSelectResult failed: %v", err)
		}
		report := res.Describe()

		expectedLines := []string{
			"=== SELECT COMMAND REPORT ===",
			"[1] Command: SELECT FILE (Initial Request, channel 1)",
			"    + Method:  08 -> Select Path from MF",
			"    + Control: 04 -> First/Only | Return FCP",
			`    + Data:    7FFF5031 ("..P1")`,
			"    + Result:  [61 1B] [OK] 1B (27) bytes still available",
			"",
			"[2] Protocol: Auto-handling (Sequence of 2 steps)",
			"    + Action:  Sending GET RESPONSE",
			"    + Result:  [9000] [OK] Final Status",
			"    + Payload: 27 bytes received",
			"      Dump:    62198202412183025031A5038001718A01058B036F060280020038",
			"[=] FINAL OUTCOME:",
			"    - Structure: FCP",
			"    - File:      Transparent, 56 bytes",
			"    - FCP.FileSize (80): 0038 (Dec: 56)",
			"    - FCP.FileDescriptor (82): 4121",
			"    - FCP.FileIdentifier (83): 5031",
			"    - FCP.LifeCycleStatus (8A): 05 (Dec: 5)",
			"    - FCP.SecAttrRefExpanded (8B): 6F0602",
			"    - FCP.ProprietaryInfo (A5): 800171",
		}

		for _, line := range expectedLines {
			if !strings.Contains(report, line) {
				t.Errorf("Report missing line: %q\nReport:\n%s", line, report)
			}
		}
	})

	t.Run("File Not Found", func(t *testing.T) {
		trace := Trace{
			{
				Command:  cmdSelect,
				Response: &ResponseAPDU{Status: SW_ERR_FILE_NOT_FOUND},
			},
		}

		res, _ := NewSelectResult(trace)
		if _, err := res.FCI(); err == nil {
			t.Error("FCI() succeeded on a failed selection")
		}

		report := res.Describe()
		for _, line := range []string{
			"    + Result:  [6A 82] [!!] [6A82] SW_ERR_FILE_NOT_FOUND",
			"    - No Data returned to parse.",
		} {
			if !strings.Contains(report, line) {
				t.Errorf("Report missing line: %q\nReport:\n%s", line, report)
			}
		}
	})
}

func TestNewSelectResult_Validation(t *testing.T) {
	if _, err := NewSelectResult(nil); err == nil {
		t.Error("NewSelectResult(nil) succeeded")
	}

	cls, _ := ChannelClass(1)
	trace := Trace{{Command: ReadBinary(cls, 0, MaxShortLe), Response: &ResponseAPDU{Status: SW_NO_ERROR}}}
	if _, err := NewSelectResult(trace); err == nil {
		t.Error("NewSelectResult accepted a trace starting with READ BINARY")
	}
}
