package quanta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQASM = `// Bell pair
OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
creg c[2];
h q[0];
cx q[0],q[1];
measure q -> c;
`

const sampleStim = `# repetition code fragment
H 0
CX 0 1
M 0 1
DETECTOR rec[-1]
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInspect_QASMFile(t *testing.T) {
	path := writeTemp(t, "bell.qasm", sampleQASM)

	info, err := FromFile(path).inspect()
	require.NoError(t, err)

	assert.Equal(t, TypeQASM, info.Type)
	assert.Equal(t, 2, info.Qubits)
	assert.Equal(t, 3, info.Ops) // h, cx, measure
}

func TestInspect_QASMMultipleRegisters(t *testing.T) {
	path := writeTemp(t, "multi.qasm", `OPENQASM 2.0;
qreg a[2];
qreg b[3];
h a[0];
`)

	info, err := FromFile(path).inspect()
	require.NoError(t, err)
	assert.Equal(t, 5, info.Qubits)
	assert.Equal(t, 1, info.Ops)
}

func TestInspect_StimFile(t *testing.T) {
	path := writeTemp(t, "rep.stim", sampleStim)

	info, err := FromFile(path).inspect()
	require.NoError(t, err)

	assert.Equal(t, TypeStim, info.Type)
	assert.Equal(t, 2, info.Qubits) // targets 0 and 1
	assert.Equal(t, 4, info.Ops)
}

func TestInspect_StimRepeatBlock(t *testing.T) {
	path := writeTemp(t, "loop.stim", `H 0
REPEAT 100 {
    CX 0 1
    M 1
}
M 0
`)

	info, err := FromFile(path).inspect()
	require.NoError(t, err)

	assert.Equal(t, TypeStim, info.Type)
	// The repetition count is not a qubit target.
	assert.Equal(t, 2, info.Qubits)
	assert.Equal(t, 5, info.Ops) // H, REPEAT, CX, M, M
}

func TestInspect_StimLeadingComments(t *testing.T) {
	path := writeTemp(t, "c.stim", "# comment\n\n# another\nX_ERROR(0.25) 3\nM 3\n")

	info, err := FromFile(path).inspect()
	require.NoError(t, err)
	assert.Equal(t, TypeStim, info.Type)
	assert.Equal(t, 4, info.Qubits)
}

func TestInspect_UnrecognizedFormat(t *testing.T) {
	path := writeTemp(t, "circuit.txt", "this is not a circuit\n")

	_, err := FromFile(path).inspect()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "neither")
}

func TestInspect_QASMWrongVersion(t *testing.T) {
	// OPENQASM 3 is not the supported dialect and "OPENQASM" is not a
	// stim opcode either.
	path := writeTemp(t, "v3.qasm", "OPENQASM 3.0;\nqubit[2] q;\n")

	_, err := FromFile(path).inspect()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestInspect_MissingFile(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "absent.qasm")).inspect()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestInspect_InMemoryCircuit(t *testing.T) {
	info, err := FromCircuit(twoQubitCircuit()).inspect()
	require.NoError(t, err)
	assert.Equal(t, TypeProto, info.Type)
	assert.Equal(t, 2, info.Qubits)
	assert.Equal(t, 2, info.Ops)
}

func TestCircuit_BinaryRoundTrip(t *testing.T) {
	original := &Circuit{
		NumQubits: 3,
		Ops: []GateOp{
			{Gate: "h", Targets: []int{0}},
			{Gate: "rz", Targets: []int{1}, Params: []float64{0.5}},
			{Gate: "ccx", Targets: []int{0, 1, 2}},
		},
	}

	data, err := original.MarshalBinary()
	require.NoError(t, err)

	var decoded Circuit
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, original, &decoded)
}

func TestCircuitType_Ext(t *testing.T) {
	assert.Equal(t, ".pb", TypeProto.Ext())
	assert.Equal(t, ".qasm", TypeQASM.Ext())
	assert.Equal(t, ".stim", TypeStim.Ext())
}
