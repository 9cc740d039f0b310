package decode

// Primary opcodes, as defined by the architecture (and cross-checked
// against the reference decode table referenced in §6).
const (
	OpPAL00  = 0x00
	OpLDA    = 0x08
	OpLDAH   = 0x09
	OpLDBU   = 0x0A
	OpLDQ_U  = 0x0B
	OpLDWU   = 0x0C
	OpSTW    = 0x0D
	OpSTB    = 0x0E
	OpSTQ_U  = 0x0F
	OpINTA   = 0x10
	OpINTL   = 0x11
	OpINTS   = 0x12
	OpINTM   = 0x13
	OpITFP   = 0x14
	OpFLTV   = 0x15
	OpFLTI   = 0x16
	OpFLTL   = 0x17
	OpMISC   = 0x18
	OpHWMFPR = 0x19
	OpJSR    = 0x1A
	OpHWLD   = 0x1B
	OpFPTI   = 0x1C
	OpHWMTPR = 0x1D
	OpHWREI  = 0x1E
	OpHWST   = 0x1F
	OpLDF    = 0x20
	OpLDG    = 0x21
	OpLDS    = 0x22
	OpLDT    = 0x23
	OpSTF    = 0x24
	OpSTG    = 0x25
	OpSTS    = 0x26
	OpSTT    = 0x27
	OpLDL    = 0x28
	OpLDQ    = 0x29
	OpLDL_L  = 0x2A
	OpLDQ_L  = 0x2B
	OpSTL    = 0x2C
	OpSTQ    = 0x2D
	OpSTL_C  = 0x2E
	OpSTQ_C  = 0x2F
	OpBR     = 0x30
	OpFBEQ   = 0x31
	OpFBLT   = 0x32
	OpFBLE   = 0x33
	OpBSR    = 0x34
	OpFBNE   = 0x35
	OpFBGE   = 0x36
	OpFBGT   = 0x37
	OpBLBC   = 0x38
	OpBEQ    = 0x39
	OpBLT    = 0x3A
	OpBLE    = 0x3B
	OpBLBS   = 0x3C
	OpBNE    = 0x3D
	OpBGE    = 0x3E
	OpBGT    = 0x3F
)

// OpcodeInfo describes the static, opcode-level properties of an
// instruction: its format, its function-table class (if any), and which
// execution clusters can run it.
type OpcodeInfo struct {
	Name    string
	Format  Format
	Class   Class
	Clsuter ClusterSet
}

// ClusterSet is the pipeline-eligibility bitset (§4.3): which of the four
// integer clusters (L0, L1, U0, U1) or two FP clusters (Multiply, Other)
// may execute an entry.
type ClusterSet uint8

const (
	L0 ClusterSet = 1 << iota
	L1
	U0
	U1
	Multiply
	Other
)

// AllInteger is the cluster set for instructions any integer cluster can
// run (the common case for simple ALU ops); AllFP is the analogous set
// for floating-point clusters.
const (
	AllInteger = L0 | L1 | U0 | U1
	AllFP      = Multiply | Other
)

// opcodeTable is the fixed 64-entry primary decode table (§6). Entries
// left at the zero value (ClassNone, FormatReserved) decode as
// illegal-instruction.
var opcodeTable = [64]OpcodeInfo{
	OpPAL00:  {Name: "CALL_PAL", Format: FormatPAL},
	OpLDA:    {Name: "LDA", Format: FormatMemory, Clsuter: AllInteger},
	OpLDAH:   {Name: "LDAH", Format: FormatMemory, Clsuter: AllInteger},
	OpLDBU:   {Name: "LDBU", Format: FormatMemory, Clsuter: L0 | L1},
	OpLDQ_U:  {Name: "LDQ_U", Format: FormatMemory, Clsuter: L0 | L1},
	OpLDWU:   {Name: "LDWU", Format: FormatMemory, Clsuter: L0 | L1},
	OpSTW:    {Name: "STW", Format: FormatMemory, Clsuter: L0 | L1},
	OpSTB:    {Name: "STB", Format: FormatMemory, Clsuter: L0 | L1},
	OpSTQ_U:  {Name: "STQ_U", Format: FormatMemory, Clsuter: L0 | L1},
	OpINTA:   {Name: "INTA", Format: FormatOperate, Class: ClassINTA, Clsuter: AllInteger},
	OpINTL:   {Name: "INTL", Format: FormatOperate, Class: ClassINTL, Clsuter: AllInteger},
	OpINTS:   {Name: "INTS", Format: FormatOperate, Class: ClassINTS, Clsuter: U0 | U1},
	OpINTM:   {Name: "INTM", Format: FormatOperate, Class: ClassINTM, Clsuter: U0 | U1},
	OpITFP:   {Name: "ITFP", Format: FormatFPOperate, Class: ClassITFP, Clsuter: AllFP},
	OpFLTV:   {Name: "FLTV", Format: FormatFPOperate, Class: ClassFLTV, Clsuter: AllFP},
	OpFLTI:   {Name: "FLTI", Format: FormatFPOperate, Class: ClassFLTI, Clsuter: AllFP},
	OpFLTL:   {Name: "FLTL", Format: FormatFPOperate, Class: ClassFLTL, Clsuter: AllFP},
	OpMISC:   {Name: "MISC", Format: FormatMemory, Class: ClassMISC, Clsuter: U0 | U1},
	OpHWMFPR: {Name: "HW_MFPR", Format: FormatHWLoadStore, Class: ClassHWMFPR, Clsuter: AllInteger},
	OpJSR:    {Name: "JSR", Format: FormatMemory, Clsuter: U0 | U1},
	OpHWLD:   {Name: "HW_LD", Format: FormatHWLoadStore, Clsuter: L0 | L1},
	OpFPTI:   {Name: "FPTI", Format: FormatFPOperate, Class: ClassFPTI, Clsuter: AllInteger},
	OpHWMTPR: {Name: "HW_MTPR", Format: FormatHWLoadStore, Class: ClassHWMTPR, Clsuter: AllInteger},
	OpHWREI:  {Name: "HW_REI", Format: FormatHWLoadStore, Class: ClassHWRET, Clsuter: U0 | U1},
	OpHWST:   {Name: "HW_ST", Format: FormatHWLoadStore, Clsuter: L0 | L1},
	OpLDF:    {Name: "LDF", Format: FormatMemory, Clsuter: AllFP},
	OpLDG:    {Name: "LDG", Format: FormatMemory, Clsuter: AllFP},
	OpLDS:    {Name: "LDS", Format: FormatMemory, Clsuter: AllFP},
	OpLDT:    {Name: "LDT", Format: FormatMemory, Clsuter: AllFP},
	OpSTF:    {Name: "STF", Format: FormatMemory, Clsuter: AllFP},
	OpSTG:    {Name: "STG", Format: FormatMemory, Clsuter: AllFP},
	OpSTS:    {Name: "STS", Format: FormatMemory, Clsuter: AllFP},
	OpSTT:    {Name: "STT", Format: FormatMemory, Clsuter: AllFP},
	OpLDL:    {Name: "LDL", Format: FormatMemory, Clsuter: L0 | L1},
	OpLDQ:    {Name: "LDQ", Format: FormatMemory, Clsuter: L0 | L1},
	OpLDL_L:  {Name: "LDL_L", Format: FormatMemory, Clsuter: L0 | L1},
	OpLDQ_L:  {Name: "LDQ_L", Format: FormatMemory, Clsuter: L0 | L1},
	OpSTL:    {Name: "STL", Format: FormatMemory, Clsuter: L0 | L1},
	OpSTQ:    {Name: "STQ", Format: FormatMemory, Clsuter: L0 | L1},
	OpSTL_C:  {Name: "STL_C", Format: FormatMemory, Clsuter: L0 | L1},
	OpSTQ_C:  {Name: "STQ_C", Format: FormatMemory, Clsuter: L0 | L1},
	OpBR:     {Name: "BR", Format: FormatBranch, Clsuter: U0 | U1},
	OpFBEQ:   {Name: "FBEQ", Format: FormatBranch, Clsuter: AllFP},
	OpFBLT:   {Name: "FBLT", Format: FormatBranch, Clsuter: AllFP},
	OpFBLE:   {Name: "FBLE", Format: FormatBranch, Clsuter: AllFP},
	OpBSR:    {Name: "BSR", Format: FormatBranch, Clsuter: U0 | U1},
	OpFBNE:   {Name: "FBNE", Format: FormatBranch, Clsuter: AllFP},
	OpFBGE:   {Name: "FBGE", Format: FormatBranch, Clsuter: AllFP},
	OpFBGT:   {Name: "FBGT", Format: FormatBranch, Clsuter: AllFP},
	OpBLBC:   {Name: "BLBC", Format: FormatBranch, Clsuter: U0 | U1},
	OpBEQ:    {Name: "BEQ", Format: FormatBranch, Clsuter: U0 | U1},
	OpBLT:    {Name: "BLT", Format: FormatBranch, Clsuter: U0 | U1},
	OpBLE:    {Name: "BLE", Format: FormatBranch, Clsuter: U0 | U1},
	OpBLBS:   {Name: "BLBS", Format: FormatBranch, Clsuter: U0 | U1},
	OpBNE:    {Name: "BNE", Format: FormatBranch, Clsuter: U0 | U1},
	OpBGE:    {Name: "BGE", Format: FormatBranch, Clsuter: U0 | U1},
	OpBGT:    {Name: "BGT", Format: FormatBranch, Clsuter: U0 | U1},
}

// Lookup returns the static decode info for a primary opcode, and ok=false
// if the opcode is reserved/unassigned (illegal-instruction).
func Lookup(opcode uint8) (OpcodeInfo, bool) {
	if int(opcode) >= len(opcodeTable) {
		return OpcodeInfo{}, false
	}
	info := opcodeTable[opcode]
	if info.Name == "" {
		return OpcodeInfo{}, false
	}
	return info, true
}
