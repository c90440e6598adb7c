// Package sockfilter implements the in-kernel packet filter loader:
// parsing the textual BPF instruction form, structural validation, and
// attach/detach against a packet-family socket.
//
// Grounded on the original dabba project's sock-filter.c (text grammar)
// and sock_filter.c (attach/detach via sock_fprog).
package sockfilter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/packetd/dabba/internal/errs"
)

// Instruction is one BPF virtual-machine instruction: an opcode, two
// branch targets, and a literal operand.
type Instruction struct {
	Code uint16
	JT   uint8
	JF   uint8
	K    uint32
}

// Program is an ordered sequence of instructions. An empty Program
// means "no filter".
type Program []Instruction

// bpfClass and bpfRet mirror the low bits of linux/filter.h's BPF_CLASS
// and the BPF_RET class value; only what structural validation needs.
const (
	bpfClassMask = 0x07
	bpfClassJmp  = 0x05
	bpfClassRet  = 0x06
)

// Parse reads the line-oriented textual filter form. A line not
// beginning with '{' is a comment and is skipped. A valid line has the
// form `{ 0xHH, N, N, 0xHHHHHHHH },`; anything else fails the entire
// parse with errs.InvalidFormat.
func Parse(r io.Reader) (Program, error) {
	var prog Program
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(text, "{") {
			continue
		}

		var code, jt, jf uint32
		var k uint32
		n, err := fmt.Sscanf(text, "{ 0x%x, %d, %d, 0x%x },", &code, &jt, &jf, &k)
		if err != nil || n != 4 {
			return nil, errs.New(errs.InvalidFormat, "sockfilter.Parse",
				fmt.Errorf("line %d: malformed instruction %q", line, text))
		}

		prog = append(prog, Instruction{Code: uint16(code), JT: uint8(jt), JF: uint8(jf), K: k})
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.Io, "sockfilter.Parse", err)
	}
	return prog, nil
}

// Validate checks structural well-formedness: every jump-class
// instruction's branch targets must land inside the program, and the
// terminal instruction must be a return. An empty program is valid (no
// filter).
func Validate(p Program) bool {
	if len(p) == 0 {
		return true
	}

	last := p[len(p)-1]
	if last.Code&bpfClassMask != bpfClassRet {
		return false
	}

	for i, ins := range p {
		if ins.Code&bpfClassMask != bpfClassJmp {
			continue
		}
		jtTarget := i + 1 + int(ins.JT)
		jfTarget := i + 1 + int(ins.JF)
		if jtTarget >= len(p) || jfTarget >= len(p) {
			return false
		}
	}
	return true
}

// Attach installs prog on sock as a kernel-evaluated filter. Attaching
// an empty program is a no-op success (it reads as "no filter").
func Attach(sock int, prog Program) error {
	if len(prog) == 0 {
		return nil
	}
	if !Validate(prog) {
		return errs.New(errs.InvalidFormat, "sockfilter.Attach", nil)
	}

	raw := make([]unix.SockFilter, len(prog))
	for i, ins := range prog {
		raw[i] = unix.SockFilter{Code: ins.Code, Jt: ins.JT, Jf: ins.JF, K: ins.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(raw)),
		Filter: &raw[0],
	}

	if err := unix.SetsockoptSockFprog(sock, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		return errs.New(errs.Io, "sockfilter.Attach", err)
	}
	return nil
}

// Detach clears any filter installed on sock.
func Detach(sock int) error {
	dummy := 0
	if err := unix.SetsockoptInt(sock, unix.SOL_SOCKET, unix.SO_DETACH_FILTER, dummy); err != nil {
		return errs.New(errs.Io, "sockfilter.Detach", err)
	}
	return nil
}
