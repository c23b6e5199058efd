//go:build amd64 || arm64 || ppc64 || ppc64le || mips64 || mips64le || riscv64 || s390x || loong64 || wasm

package listmap

// hashPrime is the 64-bit Golden Ratio mixing constant.
// 0x9E3779B185EBCA87 = floor(2^64 / golden ratio).
const hashPrime = 0x9E3779B185EBCA87
