package credentials

// IssueStatus es el resultado de registrar un token emitido.
type IssueStatus string

const (
	Added        IssueStatus = "added"
	AlreadyAdded IssueStatus = "already_added"
)

// IssueOutcome: registrar dos veces el mismo jti no es error.
type IssueOutcome struct {
	Status  IssueStatus
	Message string
}

// RevocationStatus distingue los tres resultados exitosos de una revocación.
type RevocationStatus string

const (
	Revoked                     RevocationStatus = "revoked"
	AlreadyRevoked              RevocationStatus = "already_revoked"
	NotFoundButTreatedAsSuccess RevocationStatus = "not_found_treated_as_success"
)

// RevocationOutcome describe qué pasó al revocar. Reason es la razón que
// quedó persistida (la original si ya estaba revocado).
type RevocationOutcome struct {
	Status  RevocationStatus
	Reason  string
	Message string
}

// Found reporta si el token existía.
func (o RevocationOutcome) Found() bool {
	return o.Status != NotFoundButTreatedAsSuccess
}

// RevokeAllResult cuenta los registros que pasaron a REVOKED en esta llamada.
type RevokeAllResult struct {
	AccessTokens  int
	RefreshTokens int
}
