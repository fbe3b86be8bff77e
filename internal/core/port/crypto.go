package port

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicy rejects passwords that do not meet the configured strength rules.
type PasswordPolicy interface {
	Validate(password string, userInputs ...string) error
}
