package repository

import "errors"

var (
	// ErrNotFound indica que el registro no existe (o que la consulta no identifica uno solo).
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indica colisión de clave primaria (code, jti, client_id, me).
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyUsed indica que un authorization code ya fue canjeado.
	ErrAlreadyUsed = errors.New("authorization code already used")

	// ErrBackendIO indica fallo de lectura/escritura/conexión del backend.
	ErrBackendIO = errors.New("backend i/o failure")

	// ErrCodeExpired indica que un authorization code venció antes del canje.
	ErrCodeExpired = errors.New("authorization code expired")

	// ErrVerifierMismatch indica que el code_verifier (PKCE) o los datos del
	// cliente no coinciden con los del code.
	ErrVerifierMismatch = errors.New("code verifier mismatch")

	// ErrConflict indica una mutación concurrente detectada por el backend.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVerificationFailed indica que un JWT no pasó la verificación.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrSigningFailed indica que no se pudo firmar un JWT.
	ErrSigningFailed = errors.New("signing failed")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists verifica si el error es ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsAlreadyUsed verifica si el error es ErrAlreadyUsed.
func IsAlreadyUsed(err error) bool {
	return errors.Is(err, ErrAlreadyUsed)
}

// IsBackendIO verifica si el error es ErrBackendIO.
func IsBackendIO(err error) bool {
	return errors.Is(err, ErrBackendIO)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
