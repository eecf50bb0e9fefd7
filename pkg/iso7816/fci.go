package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/sim-bootstrap/pkg/bits"
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// FILE CONTROL INFORMATION (FCI) Logic according to ISO/IEC 7816-4.
//
// When a SELECT command is issued, the card returns data describing the selected file.
// The format of this data is controlled by the P2 parameter of the command.
//
// STRUCTURES:
// 1. FCI (File Control Information) - Tag '6F': A wrapper template.
// 2. FCP (File Control Parameters) - Tag '62': Technical attributes.
// 3. FMD (File Management Data) - Tag '64': Administrative data.
//
// P2 SELECTION CONTROL (Bits 4-3):
// - 00: Return FCI (Optional '6F' wrapper containing '62' and/or '64').
// - 01: Return FCP (Mandatory '62').
// - 10: Return FMD (Mandatory '64').
// - 11: No Data returned.

// FCPTemplate (File Control Parameters) - Tag '62'.
// Field set follows ETSI TS 102 221 clause 11.1.1.3 for UICC files.
type FCPTemplate struct {
	FileSize             []byte `tlv:"80" fmt:"int"`
	TotalFileSize        []byte `tlv:"81" fmt:"int"`
	FileDescriptor       []byte `tlv:"82"`
	FileIdentifier       []byte `tlv:"83"`
	DFName               []byte `tlv:"84" fmt:"ascii"`
	ShortFileIdentifier  []byte `tlv:"88"`
	LifeCycleStatus      []byte `tlv:"8A" fmt:"int"`
	SecAttrRefExpanded   []byte `tlv:"8B"`
	SecurityAttrCompact  []byte `tlv:"8C"`
	ProprietaryInfo      []byte `tlv:"A5"`
	SecurityAttrExpanded []byte `tlv:"AB"`
	PINStatusTemplate    []byte `tlv:"C6"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FileStructure is the EF structure coded in bits 3-1 of the file descriptor byte.
type FileStructure byte

const (
	StructureNone        FileStructure = 0b000 // DF or no information
	StructureTransparent FileStructure = 0b001
	StructureLinearFixed FileStructure = 0b010
	StructureCyclic      FileStructure = 0b110
)

func (f FileStructure) String() string {
	switch f {
	case StructureNone:
		return "DF / No information"
	case StructureTransparent:
		return "Transparent"
	case StructureLinearFixed:
		return "Linear fixed"
	case StructureCyclic:
		return "Cyclic"
	default:
		return fmt.Sprintf("Unknown Structure (0x%02X)", byte(f))
	}
}

// Size returns the number of data bytes of an EF (tag '80'), 0 if absent.
func (fcp *FCPTemplate) Size() int {
	if fcp == nil {
		return 0
	}
	return int(tlv.BigEndian(fcp.FileSize))
}

// IsDF reports whether the descriptor describes a dedicated file (ADF or DF).
func (fcp *FCPTemplate) IsDF() bool {
	if fcp == nil || len(fcp.FileDescriptor) == 0 {
		return false
	}
	return bits.GetRange(fcp.FileDescriptor[0], 6, 1) == 0b111000
}

// Structure decodes the EF structure from the first descriptor byte.
func (fcp *FCPTemplate) Structure() FileStructure {
	if fcp == nil || len(fcp.FileDescriptor) == 0 || fcp.IsDF() {
		return StructureNone
	}
	return FileStructure(bits.GetRange(fcp.FileDescriptor[0], 3, 1))
}

// FMDTemplate (File Management Data) - Tag '64'.
type FMDTemplate struct {
	ApplicationIdentifier []byte `tlv:"84" fmt:"ascii"`
	ApplicationLabel      []byte `tlv:"50" fmt:"ascii"`
	ProprietaryData53     []byte `tlv:"53"`
	ProprietaryData73     []byte `tlv:"73"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FileControlInfo represents the parsed result of a SELECT command.
type FileControlInfo struct {
	FCP *FCPTemplate
	FMD *FMDTemplate

	// Unknown contains TLV tags that did not match FCP or FMD definitions
	Unknown []bertlv.TLV // (only populated in "flat" FCI parsing mode).

	ProprietaryRawData []byte
}

// GetAID attempts to retrieve the Application ID (Tag 84).
func (fci *FileControlInfo) GetAID() []byte {
	if fci.FCP != nil && len(fci.FCP.DFName) > 0 {
		return fci.FCP.DFName
	}
	if fci.FMD != nil && len(fci.FMD.ApplicationIdentifier) > 0 {
		return fci.FMD.ApplicationIdentifier
	}
	return nil
}

// DFName returns the Dedicated File Name (Tag 84) from FCP.
func (fci *FileControlInfo) DFName() []byte {
	if fci.FCP != nil {
		return fci.FCP.DFName
	}
	return nil
}

// ApplicationLabel returns the Application Label (Tag 50) from FMD.
func (fci *FileControlInfo) ApplicationLabel() []byte {
	if fci.FMD != nil {
		return fci.FMD.ApplicationLabel
	}
	return nil
}

// ParseSelectData parses the data field from a SELECT response according to P2.
func ParseSelectData(data []byte, p2 byte) (*FileControlInfo, error) {
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] >= 0xC0 {
		return &FileControlInfo{ProprietaryRawData: data}, nil
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}

	fci := &FileControlInfo{
		FCP: &FCPTemplate{},
		FMD: &FMDTemplate{},
	}

	control := bits.GetRange(p2, 4, 3)

	switch control {
	case 1:
		fci.FMD = nil
		return fci, handleMandatoryTemplate(packets, "62", fci.FCP)

	case 2:
		fci.FCP = nil
		return fci, handleMandatoryTemplate(packets, "64", fci.FMD)

	case 0:

		workingPackets := packets

		for _, p := range packets {
			if strings.EqualFold(p.Tag, "6F") {
				workingPackets = p.TLVs
				break
			}
		}

		foundFCP := unmarshalIfTagExists(workingPackets, "62", fci.FCP)
		foundFMD := unmarshalIfTagExists(workingPackets, "64", fci.FMD)

		// If explicit templates were found, we are done (unknowns remain nested in FCP/FMD).
		// If NO explicit template is found, we assume a "flat" structure.
		if !foundFCP && !foundFMD {
			if err := tlv.UnmarshalFromPackets(workingPackets, fci.FCP); err != nil {
				return nil, fmt.Errorf("flat FCP unmarshal failed: %w", err)
			}

			remainingUnknowns := fci.FCP.Unknown
			fci.FCP.Unknown = nil

			if err := tlv.UnmarshalFromPackets(remainingUnknowns, fci.FMD); err != nil {
				return nil, fmt.Errorf("flat FMD unmarshal failed: %w", err)
			}

			finalUnknowns := fci.FMD.Unknown
			fci.FMD.Unknown = nil
			fci.Unknown = finalUnknowns
		}

		return fci, nil

	default:
		return nil, nil
	}
}

func handleMandatoryTemplate(packets []bertlv.TLV, requiredTag string, target interface{}) error {
	if found := unmarshalIfTagExists(packets, requiredTag, target); !found {
		return fmt.Errorf("mandatory tag '%s' not found", requiredTag)
	}
	return nil
}

func unmarshalIfTagExists(packets []bertlv.TLV, tag string, target interface{}) bool {
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			if err := tlv.UnmarshalFromPackets(p.TLVs, target); err != nil {
				return false
			}
			return true
		}
	}
	return false
}
