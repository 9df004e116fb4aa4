package dukpt

// Deriver is the key derivation surface consumed by host logic and the CLI.
type Deriver interface {
	DeriveInitialKeyByBDK(bdk []byte, keyType KeyType, initialKeyID []byte) ([]byte, error)
	DeriveWorkingKeyByInitialKey(
		initialKey []byte,
		deriveKeyType KeyType,
		workingUsage KeyUsage,
		workingKeyType KeyType,
		ksn KSN,
	) ([]byte, error)
	DeriveWorkingKeyByBDK(
		bdk []byte,
		bdkKeyType KeyType,
		workingKeyType KeyType,
		workingUsage KeyUsage,
		ksn KSN,
	) ([]byte, error)
}

// Engine implements Deriver with the package-level functions. It holds no state
// and is safe for concurrent use.
type Engine struct{}

var _ Deriver = Engine{}

// NewEngine returns a derivation engine.
func NewEngine() Engine { return Engine{} }

func (Engine) DeriveKey(derivationKey []byte, keyType KeyType, derivationData []byte) ([]byte, error) {
	return DeriveKey(derivationKey, keyType, derivationData)
}

func (Engine) CreateDerivationData(
	usage KeyUsage,
	keyType KeyType,
	initialKeyID []byte,
	counter uint32,
) ([]byte, error) {
	return CreateDerivationData(usage, keyType, initialKeyID, counter)
}

func (Engine) DeriveInitialKeyByBDK(bdk []byte, keyType KeyType, initialKeyID []byte) ([]byte, error) {
	return DeriveInitialKeyByBDK(bdk, keyType, initialKeyID)
}

func (Engine) DeriveWorkingKeyByInitialKey(
	initialKey []byte,
	deriveKeyType KeyType,
	workingUsage KeyUsage,
	workingKeyType KeyType,
	ksn KSN,
) ([]byte, error) {
	return DeriveWorkingKeyByInitialKey(initialKey, deriveKeyType, workingUsage, workingKeyType, ksn)
}

func (Engine) DeriveWorkingKeyByBDK(
	bdk []byte,
	bdkKeyType KeyType,
	workingKeyType KeyType,
	workingUsage KeyUsage,
	ksn KSN,
) ([]byte, error) {
	return DeriveWorkingKeyByBDK(bdk, bdkKeyType, workingKeyType, workingUsage, ksn)
}
