// Package classfile reads and writes JVM class files.
//
// Parse decodes the constant pool, class structure, member attributes and
// annotations into a Class record. Method bodies are decoded into insn lists
// with explicit label nodes at every branch target, exception range, line
// number and frame offset. Short load/store forms, ldc_w, ldc2_w, goto_w and
// wide are normalized so equal code compares equal regardless of encoding.
//
// # Parsing
//
//	c, err := classfile.ParseThin(data) // structure and annotations only
//	c, err := classfile.ParseFull(data) // with instructions, lines and frames
//
// All failures are reported as errors of kind malformed_input.
//
// # Encoding
//
// Class.Encode writes a record back as a class file with a fresh constant pool.
// It is used to produce fixtures and for round trips; it does not compute
// stack map frames or max stack values.
package classfile
