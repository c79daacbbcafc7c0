package validation

import (
	"regexp"
	"strings"
)

// Reglas de nombre de scope:
// - solo minúsculas
// - empieza y termina con [a-z0-9]
// - en el medio admite [a-z0-9:_.-]
// - largo 1..64
//
// Válidos: create, profile:read, a_b-c.d:scope2. Inválidos: ;hack, BAD, :leader, trailer:.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reporta si name cumple el patrón permitido.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidScope valida un scope IndieAuth: nombres separados por espacios.
// El scope vacío es válido (sin permisos).
func ValidScope(scope string) bool {
	for _, s := range strings.Fields(scope) {
		if !ValidScopeName(s) {
			return false
		}
	}
	return true
}

// HasScope reporta si scope incluye name.
func HasScope(scope, name string) bool {
	for _, s := range strings.Fields(scope) {
		if s == name {
			return true
		}
	}
	return false
}
