package cryptoutils

// CMAC computes the AES-CMAC (RFC 4493) of data under an AES-128/192/256 key.
func CMAC(key, data []byte) ([]byte, error) {
	block, err := newAESCipher(key)
	if err != nil {
		return nil, err
	}
	blockSize := block.BlockSize()

	// L = AES-K(0^n); K1 and K2 follow RFC 4493 section 2.3.
	zero := make([]byte, blockSize)
	l := make([]byte, blockSize)
	block.Encrypt(l, zero)

	k1 := subkeyGenerate(l)
	k2 := subkeyGenerate(k1)

	head := data
	var last []byte // (M_n XOR K1) or (padded M_n XOR K2)

	switch {
	case len(data) == 0:
		padded := make([]byte, blockSize)
		padded[0] = 0x80
		last = xorBlock(padded, k2)
		head = nil
	case len(data)%blockSize == 0:
		last = xorBlock(data[len(data)-blockSize:], k1)
		head = data[:len(data)-blockSize]
	default:
		partial := len(data) % blockSize

		padded := make([]byte, blockSize)
		copy(padded, data[len(data)-partial:])
		padded[partial] = 0x80

		last = xorBlock(padded, k2)
		head = data[:len(data)-partial]
	}

	// CBC-MAC with a zero IV over M_1..M_{n-1}.
	x := make([]byte, blockSize)
	for i := 0; i < len(head); i += blockSize {
		block.Encrypt(x, xorBlock(x, head[i:i+blockSize]))
	}
	block.Encrypt(x, xorBlock(x, last))

	return x, nil
}

// subkeyGenerate shifts block left by 1 bit and XORs with Rb if MSB was set.
func subkeyGenerate(b []byte) []byte {
	const rb = 0x87
	n := len(b)
	out := make([]byte, n)
	carry := byte(0)

	for i := n - 1; i >= 0; i-- {
		out[i] = (b[i] << 1) | carry
		carry = (b[i] >> 7) & 0x01
	}

	if (b[0] & 0x80) != 0 {
		out[n-1] ^= rb
	}

	return out
}

// xorBlock XORs two equal-length blocks.
func xorBlock(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}

	return out
}

