// Package toolkit describes installed game-asset toolchains.
//
// A [Profile] names one installation: its base directory, the paths of its
// executables and the [Variant] it belongs to. A Variant is a capability
// descriptor for a toolchain generation. It supplies command verbs and
// policy flags (multi-instance lightmaps, legacy startup delay, assert-free
// tool builds) instead of encoding each generation as its own type.
//
// Three variants are built in ([VariantStandard], [VariantH2Codez],
// [VariantMCC]). Additional variants can be described in YAML and loaded with
// [LoadVariantDir].
package toolkit
