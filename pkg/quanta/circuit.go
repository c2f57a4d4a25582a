package quanta

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// CircuitType identifies the on-wire representation of a staged circuit.
type CircuitType string

const (
	// TypeProto is the binary encoding of an in-memory Circuit.
	TypeProto CircuitType = "proto"
	// TypeQASM is an OpenQASM 2.0 text file.
	TypeQASM CircuitType = "qasm"
	// TypeStim is a stim circuit text file.
	TypeStim CircuitType = "stim"
)

// Ext returns the staging file extension for the circuit type.
func (t CircuitType) Ext() string {
	switch t {
	case TypeQASM:
		return ".qasm"
	case TypeStim:
		return ".stim"
	default:
		return ".pb"
	}
}

// GateOp is one operation in an in-memory circuit.
type GateOp struct {
	Gate    string    `msgpack:"gate" json:"gate"`
	Targets []int     `msgpack:"targets" json:"targets"`
	Params  []float64 `msgpack:"params,omitempty" json:"params,omitempty"`
}

// Circuit is a minimal in-memory circuit value. The full circuit DSL
// (builders, decomposition, drawing) lives outside this library; this type
// only carries enough structure to validate and serialize a submission.
type Circuit struct {
	NumQubits int      `msgpack:"num_qubits" json:"num_qubits"`
	Ops       []GateOp `msgpack:"ops" json:"ops"`
}

// circuitWire is a method-less alias so the msgpack codec encodes the
// struct fields instead of re-entering MarshalBinary/UnmarshalBinary.
type circuitWire Circuit

// MarshalBinary encodes the circuit with the binary circuit codec.
func (c *Circuit) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*circuitWire)(c))
}

// UnmarshalBinary decodes a circuit produced by MarshalBinary.
func (c *Circuit) UnmarshalBinary(data []byte) error {
	return msgpack.Unmarshal(data, (*circuitWire)(c))
}

// CircuitSource is one circuit to submit: either an in-memory Circuit or a
// path to a textual circuit description whose dialect is detected at build
// time. A source is read-only and consumed once per submission.
type CircuitSource struct {
	circuit *Circuit
	path    string
}

// FromCircuit wraps an in-memory circuit.
func FromCircuit(c *Circuit) CircuitSource {
	return CircuitSource{circuit: c}
}

// FromFile wraps a path to a QASM 2.0 or stim circuit file.
func FromFile(path string) CircuitSource {
	return CircuitSource{path: path}
}

// Path returns the file path for file sources, or "" for in-memory ones.
func (s CircuitSource) Path() string { return s.path }

// circuitInfo is what validation and staging need to know about a source.
type circuitInfo struct {
	Type   CircuitType
	Qubits int
	Ops    int
}

// inspect classifies the source and extracts its qubit and operation
// counts. File sources that match neither dialect produce a ValidationError.
func (s CircuitSource) inspect() (circuitInfo, error) {
	if s.circuit != nil {
		return circuitInfo{Type: TypeProto, Qubits: s.circuit.NumQubits, Ops: len(s.circuit.Ops)}, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return circuitInfo{}, &ValidationError{
			Field:  "circuit",
			Reason: fmt.Sprintf("cannot read %s: %v", s.path, err),
		}
	}

	text := string(data)
	if isQASM(text) {
		info, err := scanQASM(text)
		if err != nil {
			return circuitInfo{}, err
		}
		return info, nil
	}
	if isStim(text) {
		return scanStim(text), nil
	}

	return circuitInfo{}, &ValidationError{
		Field:  "circuit",
		Reason: fmt.Sprintf("%s is neither OpenQASM 2.0 nor a stim circuit", s.path),
	}
}

// firstSignificantLine returns the first line that is neither blank nor a
// comment, where comment lines start with the given prefix.
func firstSignificantLine(text, commentPrefix string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		return line
	}
	return ""
}

func isQASM(text string) bool {
	return strings.HasPrefix(firstSignificantLine(text, "//"), "OPENQASM 2.0;")
}

func isStim(text string) bool {
	line := firstSignificantLine(text, "#")
	if line == "" {
		return false
	}
	op := strings.ToUpper(strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '('
	})[0])
	_, ok := stimOpcodes[op]
	return ok
}

var qregPattern = regexp.MustCompile(`^qreg\s+\w+\s*\[\s*(\d+)\s*\]\s*;`)

// scanQASM extracts the total qubit count (summed over qreg declarations)
// and the number of operation statements from an OpenQASM 2.0 source.
func scanQASM(text string) (circuitInfo, error) {
	info := circuitInfo{Type: TypeQASM}
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if m := qregPattern.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return info, &ValidationError{Field: "circuit", Reason: "malformed qreg declaration: " + line}
			}
			info.Qubits += n
			continue
		}
		switch {
		case strings.HasPrefix(line, "OPENQASM"),
			strings.HasPrefix(line, "include"),
			strings.HasPrefix(line, "creg"),
			strings.HasPrefix(line, "gate "),
			strings.HasPrefix(line, "}"),
			strings.HasPrefix(line, "{"):
			// declarations and gate-definition bodies are not operations
		default:
			info.Ops++
		}
	}
	return info, nil
}

// scanStim extracts the qubit count (1 + highest plain-integer target) and
// the operation count from a stim circuit. Coordinate annotations do not
// count as operations.
func scanStim(text string) circuitInfo {
	info := circuitInfo{Type: TypeStim}
	maxTarget := -1
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		op := strings.ToUpper(fields[0])
		if i := strings.IndexByte(op, '('); i >= 0 {
			op = op[:i]
		}
		if op != "QUBIT_COORDS" && op != "SHIFT_COORDS" && op != "}" {
			info.Ops++
		}
		// REPEAT's argument is a repetition count, not a qubit target.
		if op == "REPEAT" {
			continue
		}
		for _, f := range fields[1:] {
			if n, err := strconv.Atoi(f); err == nil && n > maxTarget {
				maxTarget = n
			}
		}
	}
	info.Qubits = maxTarget + 1
	return info
}

// stimOpcodes is the vocabulary used to classify stim circuit files.
var stimOpcodes = map[string]struct{}{
	"H": {}, "X": {}, "Y": {}, "Z": {}, "I": {},
	"S": {}, "S_DAG": {},
	"SQRT_X": {}, "SQRT_X_DAG": {}, "SQRT_Y": {}, "SQRT_Y_DAG": {},
	"SQRT_Z": {}, "SQRT_Z_DAG": {},
	"H_XY": {}, "H_XZ": {}, "H_YZ": {}, "C_XYZ": {}, "C_ZYX": {},
	"CX": {}, "CNOT": {}, "CY": {}, "CZ": {},
	"XCX": {}, "XCY": {}, "XCZ": {}, "YCX": {}, "YCY": {}, "YCZ": {},
	"ZCX": {}, "ZCY": {}, "ZCZ": {},
	"SWAP": {}, "ISWAP": {}, "ISWAP_DAG": {},
	"M": {}, "MX": {}, "MY": {}, "MZ": {}, "MR": {}, "MRX": {}, "MRY": {}, "MRZ": {},
	"R": {}, "RX": {}, "RY": {}, "RZ": {}, "MPP": {},
	"CORRELATED_ERROR": {}, "E": {}, "ELSE_CORRELATED_ERROR": {},
	"DEPOLARIZE1": {}, "DEPOLARIZE2": {},
	"X_ERROR": {}, "Y_ERROR": {}, "Z_ERROR": {},
	"PAULI_CHANNEL_1": {}, "PAULI_CHANNEL_2": {},
	"DETECTOR": {}, "OBSERVABLE_INCLUDE": {},
	"QUBIT_COORDS": {}, "SHIFT_COORDS": {},
	"TICK": {}, "REPEAT": {},
}
