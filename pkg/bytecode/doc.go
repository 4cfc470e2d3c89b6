// Package bytecode defines the instruction set executed by the Rholang VM
// and the artifacts a compiler hands to it.
//
// The bytecode system consists of several components:
//
//   - Opcodes: stack-based instructions covering literals, arithmetic,
//     comparison, collections, locals, label-based control flow, RSpace
//     channel operations and continuations. Pattern matching, evaluation
//     and reference opcodes are reserved: they decode but the VM rejects
//     them at execution time.
//
//   - ConstantPool: a deduplicating, append-only table of string, integer,
//     boolean, URI, byte-array, identifier and value-literal constants.
//     PUSH_STR and PUSH_NAME carry pool indexes, resolved when executed.
//
//   - Environment: chained lexical frames for closure capture.
//
//   - Module: a pool plus named process bodies, serialized as CBOR behind
//     a "RHBC" header carrying the format version and an xxh3 checksum.
//
//   - Assembler and disassembler for a line-oriented text form.
//
// # Control Flow
//
// Branch targets are absolute instruction indexes looked up by label
// name. The label is a Str pushed before the condition:
//
//	PUSH_STR "done"
//	PUSH_BOOL true
//	BRANCH_TRUE
package bytecode
