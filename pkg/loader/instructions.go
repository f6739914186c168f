package loader

import "fmt"

// IRLength is the instruction register width of a single 7-series die.
const IRLength = 6

// Instruction is a 7-series JTAG opcode.
type Instruction uint8

const (
	Extest        Instruction = 0x26
	ExtestPulse   Instruction = 0x3C
	ExtestTrain   Instruction = 0x3D
	Sample        Instruction = 0x01
	User1         Instruction = 0x02
	User2         Instruction = 0x03
	User3         Instruction = 0x22
	User4         Instruction = 0x23
	CfgOut        Instruction = 0x04
	CfgIn         Instruction = 0x05
	UserCode      Instruction = 0x08
	IDCode        Instruction = 0x09
	HighZIO       Instruction = 0x0A
	JProgram      Instruction = 0x0B
	JStart        Instruction = 0x0C
	JShutdown     Instruction = 0x0D
	XADCDRP       Instruction = 0x37
	ISCEnable     Instruction = 0x10
	ISCProgram    Instruction = 0x11
	XSCProgramKey Instruction = 0x12
	XSCDNA        Instruction = 0x17
	FuseDNA       Instruction = 0x32
	ISCNoop       Instruction = 0x14
	ISCDisable    Instruction = 0x16
	Bypass        Instruction = 0x2F
)

var instructionNames = map[Instruction]string{
	Extest:        "EXTEST",
	ExtestPulse:   "EXTEST_PULSE",
	ExtestTrain:   "EXTEST_TRAIN",
	Sample:        "SAMPLE",
	User1:         "USER1",
	User2:         "USER2",
	User3:         "USER3",
	User4:         "USER4",
	CfgOut:        "CFG_OUT",
	CfgIn:         "CFG_IN",
	UserCode:      "USERCODE",
	IDCode:        "IDCODE",
	HighZIO:       "HIGHZ_IO",
	JProgram:      "JPROGRAM",
	JStart:        "JSTART",
	JShutdown:     "JSHUTDOWN",
	XADCDRP:       "XADC_DRP",
	ISCEnable:     "ISC_ENABLE",
	ISCProgram:    "ISC_PROGRAM",
	XSCProgramKey: "XSC_PROGRAM_KEY",
	XSCDNA:        "XSC_DNA",
	FuseDNA:       "FUSE_DNA",
	ISCNoop:       "ISC_NOOP",
	ISCDisable:    "ISC_DISABLE",
	Bypass:        "BYPASS",
}

func (i Instruction) String() string {
	if name, ok := instructionNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Instruction(%#02x)", uint8(i))
}
