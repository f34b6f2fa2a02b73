package codec

// Check indica si el bit i de n está encendido.
func Check(n uint64, i uint) bool {
	return (n>>i)&1 == 1
}

// Between extrae los bits [from, to) de n.
func Between(n uint64, from, to uint) uint64 {
	return (n >> from) & (1<<(to-from) - 1)
}

// From devuelve n desplazado i bits, es decir los bits [i, 64).
func From(n uint64, i uint) uint64 {
	return n >> i
}

// To devuelve los bits [0, i) de n.
func To(n uint64, i uint) uint64 {
	return n & (1<<i - 1)
}
