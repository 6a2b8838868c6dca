// Package mips implements a MIPS32 integer core and assembler for SuperMIPS.
//
// The core executes one instruction per Tick against segmented guest
// memory, with no branch delay slots and no overflow traps. A syscall
// instruction hands a snapshot of the register file to a bridge.Handler
// and resumes with the registers it returns.
//
// The assembler reads MIPS assembly with the usual register names, plus
// macros, labels, equates, and compile-time expression evaluation.
package mips
