// Package vm implements the Push virtual machine.
//
// This package contains:
//   - Code trees and their canonical text and CBOR forms
//   - Typed stacks and named attachments
//   - The instruction table and per-run configuration
//   - The execution engine and the standard instruction set
//   - Random code generation and the genetic operators
package vm
