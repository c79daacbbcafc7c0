package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - CREDENCIALES
// =================================================================================

// JTI crea un campo para el ID de un token.
func JTI(v string) zap.Field {
	return zap.String("jti", v)
}

// Code crea un campo para un authorization code. Solo se loguea un prefijo.
func Code(v string) zap.Field {
	if len(v) > 6 {
		v = v[:6] + "…"
	}
	return zap.String("code", v)
}

// Me crea un campo para la URL canónica del usuario.
func Me(v string) zap.Field {
	return zap.String("me", v)
}

// ClientID crea un campo para el ID del cliente.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// Reason crea un campo para el motivo de una revocación.
func Reason(v string) zap.Field {
	return zap.String("reason", v)
}

// Kind crea un campo para el tipo de token (access | refresh).
func Kind(v string) zap.Field {
	return zap.String("kind", v)
}

// Outcome crea un campo para el resultado de una operación tolerante.
func Outcome(v string) zap.Field {
	return zap.String("outcome", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - STORAGE
// =================================================================================

// Table crea un campo para la tabla.
func Table(v string) zap.Field {
	return zap.String("table", v)
}

// Backend crea un campo para el adapter de storage.
func Backend(v string) zap.Field {
	return zap.String("backend", v)
}

// Duration crea un campo para la duración de una operación.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (service, store, cli).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DATOS
// =================================================================================

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave primaria.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
