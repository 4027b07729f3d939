// Package compiler lowers Hassel source units to 6502 assembly and, through
// pkg/asm, to a memory image.
//
// Pipeline: source → Lex → Parse → Check (resolve, fold, type) → optional
// Optimizer passes → Generate → Assemble
package compiler
